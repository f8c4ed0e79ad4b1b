package index

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scampagna/ftsearch/document"
	"github.com/scampagna/ftsearch/schema"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	dir := t.TempDir()
	reg, err := NewRegistry(dir, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.CloseAll() })
	return reg
}

var titleFields = []FieldSpec{{Name: "title", Type: schema.Text, Indexed: true, Stored: true}}

func TestRegistryCreateThenGet(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, "articles", titleFields)
	require.NoError(t, err)

	idx, err := reg.Get("articles")
	require.NoError(t, err)
	assert.Equal(t, "articles", idx.Name)
}

func TestRegistryCreateRejectsDuplicateName(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, "articles", titleFields)
	require.NoError(t, err)

	_, err = reg.Create(ctx, "articles", titleFields)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRegistryGetUnknownIndexErrors(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryOpenReattachesExistingOnDiskIndex(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	reg1, err := NewRegistry(dir, nil, nil)
	require.NoError(t, err)
	_, err = reg1.Create(ctx, "articles", titleFields)
	require.NoError(t, err)
	require.NoError(t, reg1.CloseAll())

	reg2, err := NewRegistry(dir, nil, nil)
	require.NoError(t, err)
	defer reg2.CloseAll()

	idx, err := reg2.Open(ctx, "articles", titleFields)
	require.NoError(t, err)
	assert.Equal(t, "articles", idx.Name)
}

func TestRegistryOpenUnknownOnDiskIndexErrors(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.Open(context.Background(), "missing", titleFields)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryDeleteOpenIndex(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, "articles", titleFields)
	require.NoError(t, err)

	require.NoError(t, reg.Delete("articles"))
	_, err = reg.Get("articles")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryDeleteClosedIndexFromDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	reg1, err := NewRegistry(dir, nil, nil)
	require.NoError(t, err)
	_, err = reg1.Create(ctx, "articles", titleFields)
	require.NoError(t, err)
	require.NoError(t, reg1.CloseAll())

	reg2, err := NewRegistry(dir, nil, nil)
	require.NoError(t, err)
	defer reg2.CloseAll()

	require.NoError(t, reg2.Delete("articles"))
	_, err = os.Stat(filepath.Join(dir, "articles.rsi"))
	assert.True(t, os.IsNotExist(err))
}

func TestRegistryDeleteUnknownIndexErrors(t *testing.T) {
	reg := newTestRegistry(t)
	assert.ErrorIs(t, reg.Delete("missing"), ErrNotFound)
}

func TestRegistryNamesListsOpenIndices(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()
	_, err := reg.Create(ctx, "a", titleFields)
	require.NoError(t, err)
	_, err = reg.Create(ctx, "b", titleFields)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"a", "b"}, reg.Names())
}

func bulkSrc(indexName, key, title string) BulkLine {
	raw, _ := json.Marshal(title)
	return BulkLine{
		IndexName: indexName,
		Source:    document.Source{Key: key, Fields: map[string]json.RawMessage{"title": raw}},
	}
}

func TestBulkIndexGroupsByIndexName(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, "a", titleFields)
	require.NoError(t, err)
	_, err = reg.Create(ctx, "b", titleFields)
	require.NoError(t, err)

	lines := []BulkLine{
		bulkSrc("a", "doc-1", "hello"),
		bulkSrc("b", "doc-2", "world"),
		bulkSrc("a", "doc-3", "again"),
	}
	results := reg.BulkIndex(ctx, lines)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}

	idxA, err := reg.Get("a")
	require.NoError(t, err)
	resp, err := idxA.Query(ctx, json.RawMessage(`{"match_all": {}}`), 10)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), resp.Hits.Total)
}

func TestBulkIndexUnknownIndexSurfacesPerLineError(t *testing.T) {
	reg := newTestRegistry(t)
	lines := []BulkLine{bulkSrc("ghost", "doc-1", "hi")}
	results := reg.BulkIndex(context.Background(), lines)
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, ErrNotFound)
}

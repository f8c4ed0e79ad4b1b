package termdict

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scampagna/ftsearch/kvstore/memstore"
	"github.com/scampagna/ftsearch/term"
)

func TestGetOrCreateAllocatesOncePerTerm(t *testing.T) {
	ctx := context.Background()
	d := &Dictionary{store: memstore.New(), byTerm: make(map[term.Term]term.Ref)}

	ref1, err := d.GetOrCreate(ctx, term.String("cat"))
	require.NoError(t, err)
	assert.NotEqual(t, term.Invalid, ref1)

	ref2, err := d.GetOrCreate(ctx, term.String("cat"))
	require.NoError(t, err)
	assert.Equal(t, ref1, ref2)

	ref3, err := d.GetOrCreate(ctx, term.String("dog"))
	require.NoError(t, err)
	assert.NotEqual(t, ref1, ref3)
}

func TestGetReturnsInvalidForUnseenTerm(t *testing.T) {
	d := &Dictionary{store: memstore.New(), byTerm: make(map[term.Term]term.Ref)}
	assert.Equal(t, term.Invalid, d.Get(term.String("nope")))
}

func TestLoadReplaysPersistedTerms(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()

	d1 := &Dictionary{store: store, byTerm: make(map[term.Term]term.Ref)}
	ref, err := d1.GetOrCreate(ctx, term.String("persisted"))
	require.NoError(t, err)

	d2, err := Load(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, ref, d2.Get(term.String("persisted")))
	assert.Equal(t, 1, d2.Len())
}

func TestSelectPrefix(t *testing.T) {
	ctx := context.Background()
	d := &Dictionary{store: memstore.New(), byTerm: make(map[term.Term]term.Ref)}

	for _, s := range []string{"data", "database", "databases", "cat"} {
		_, err := d.GetOrCreate(ctx, term.String(s))
		require.NoError(t, err)
	}

	encoded := term.String("data").Encode()
	sel := term.Selector{Kind: term.SelectPrefix, Pfx: encoded[1:]}
	refs := d.Select(sel)
	assert.Len(t, refs, 3, "expected data, database and databases to match the \"data\" prefix")
}

type fakeClearer struct {
	cleared []DocRef
}

func (f *fakeClearer) PrepareClearLiveBit(ctx context.Context, ref DocRef) ([]byte, []byte, error) {
	f.cleared = append(f.cleared, ref)
	return []byte(fmt.Sprintf("v:%d", ref.SegmentID)), []byte{byte(ref.Ordinal)}, nil
}

func TestDocKeyIndexInsertOrReplaceClearsPreviousRef(t *testing.T) {
	ctx := context.Background()
	clearer := &fakeClearer{}
	idx := NewDocKeyIndex(memstore.New(), clearer)

	require.NoError(t, idx.InsertOrReplace(ctx, "doc-1", DocRef{SegmentID: 1, Ordinal: 0}))
	assert.Empty(t, clearer.cleared, "first insert has nothing to clear")

	require.NoError(t, idx.InsertOrReplace(ctx, "doc-1", DocRef{SegmentID: 2, Ordinal: 5}))
	require.Len(t, clearer.cleared, 1)
	assert.Equal(t, DocRef{SegmentID: 1, Ordinal: 0}, clearer.cleared[0])

	ref, ok, err := idx.Lookup(ctx, "doc-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, DocRef{SegmentID: 2, Ordinal: 5}, ref)
}

func TestDocKeyIndexDelete(t *testing.T) {
	ctx := context.Background()
	clearer := &fakeClearer{}
	idx := NewDocKeyIndex(memstore.New(), clearer)

	require.NoError(t, idx.InsertOrReplace(ctx, "doc-1", DocRef{SegmentID: 1, Ordinal: 0}))
	require.NoError(t, idx.Delete(ctx, "doc-1"))

	_, ok, err := idx.Lookup(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Len(t, clearer.cleared, 1)
}

func TestDocKeyIndexDeleteUnknownKeyIsNoop(t *testing.T) {
	ctx := context.Background()
	idx := NewDocKeyIndex(memstore.New(), &fakeClearer{})
	assert.NoError(t, idx.Delete(ctx, "missing"))
}

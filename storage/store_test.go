package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scampagna/ftsearch/analysis"
	"github.com/scampagna/ftsearch/document"
	"github.com/scampagna/ftsearch/kvstore/memstore"
	"github.com/scampagna/ftsearch/schema"
	"github.com/scampagna/ftsearch/term"
	"github.com/scampagna/ftsearch/termdict"
)

func prepare(t *testing.T, ref schema.Ref, key, text string, stored bool) document.Analyzed {
	t.Helper()
	reg := analysis.NewRegistry()
	a, err := reg.Get("standard")
	require.NoError(t, err)

	out := document.Analyzed{
		Key:     key,
		Indexed: map[schema.Ref][]analysis.Token{ref: a.Analyze(text)},
		Stored:  map[schema.Ref]json.RawMessage{},
	}
	if stored {
		raw, _ := json.Marshal(text)
		out.Stored[ref] = raw
	}
	return out
}

func TestWriteSegmentAndReadBack(t *testing.T) {
	ctx := context.Background()
	kv := memstore.New()
	dict, err := termdict.Load(ctx, kv)
	require.NoError(t, err)
	store := NewSegmentStore(kv, dict)

	b := NewSegmentBuilder()
	ord, err := b.AddDocument(prepare(t, 0, "doc-1", "hello world", true))
	require.NoError(t, err)
	assert.Equal(t, uint16(0), ord)
	ord, err = b.AddDocument(prepare(t, 0, "doc-2", "hello there", true))
	require.NoError(t, err)
	assert.Equal(t, uint16(1), ord)

	segID, keys, err := store.WriteSegment(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-1", "doc-2"}, keys)

	helloRef := dict.Get(term.String("hello"))
	require.NotEqual(t, term.Invalid, helloRef)

	block, ok, err := store.ReadPostingBlock(ctx, segID, 0, uint32(helloRef))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 2, block.Ordinals.Cardinality())
	assert.True(t, block.Ordinals.Contains(0))
	assert.True(t, block.Ordinals.Contains(1))

	df, err := store.ReadDocFrequency(ctx, segID, 0, uint32(helloRef))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), df)

	worldRef := dict.Get(term.String("world"))
	block, ok, err = store.ReadPostingBlock(ctx, segID, 0, uint32(worldRef))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, block.Ordinals.Cardinality())
	assert.True(t, block.Ordinals.Contains(0))

	stored, err := store.ReadStoredFields(ctx, segID, 0)
	require.NoError(t, err)
	assert.Equal(t, "doc-1", stored.Key)

	lengths, err := store.ReadFieldLengths(ctx, segID, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), lengths[0])
}

func TestClearLiveBitRetiresOrdinalOnly(t *testing.T) {
	ctx := context.Background()
	kv := memstore.New()
	dict, err := termdict.Load(ctx, kv)
	require.NoError(t, err)
	store := NewSegmentStore(kv, dict)

	b := NewSegmentBuilder()
	_, err = b.AddDocument(prepare(t, 0, "doc-1", "alpha", true))
	require.NoError(t, err)
	_, err = b.AddDocument(prepare(t, 0, "doc-2", "beta", true))
	require.NoError(t, err)
	segID, _, err := store.WriteSegment(ctx, b)
	require.NoError(t, err)

	require.NoError(t, store.ClearLiveBit(ctx, termdict.DocRef{SegmentID: segID, Ordinal: 0}))

	live, err := store.ReadLiveDocs(ctx, segID)
	require.NoError(t, err)
	assert.False(t, live.Contains(0))
	assert.True(t, live.Contains(1))

	alphaRef := dict.Get(term.String("alpha"))
	block, ok, err := store.ReadPostingBlock(ctx, segID, 0, uint32(alphaRef))
	require.NoError(t, err)
	require.True(t, ok, "posting data survives a live-bit clear")
	assert.True(t, block.Ordinals.Contains(0))
}

func TestListSegmentIDs(t *testing.T) {
	ctx := context.Background()
	kv := memstore.New()
	dict, err := termdict.Load(ctx, kv)
	require.NoError(t, err)
	store := NewSegmentStore(kv, dict)

	for i := 0; i < 3; i++ {
		b := NewSegmentBuilder()
		_, err := b.AddDocument(prepare(t, 0, "doc", "x", false))
		require.NoError(t, err)
		_, _, err = store.WriteSegment(ctx, b)
		require.NoError(t, err)
	}

	ids, err := store.ListSegmentIDs(ctx)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}

func TestPostingBlockRoundTrip(t *testing.T) {
	encoded, err := EncodePostingBlock([]uint32{0, 2, 5}, [][]uint32{{1}, {1, 3}, {2}})
	require.NoError(t, err)

	block, err := DecodePostingBlock(encoded)
	require.NoError(t, err)

	positions, ok := block.PositionsForOrdinal(2)
	require.True(t, ok)
	assert.Equal(t, []uint32{1, 3}, positions)

	assert.Equal(t, uint32(1), block.TermFrequency(5))
	assert.Equal(t, uint32(0), block.TermFrequency(99))
}

func TestEncodePostingBlockMismatchedLengths(t *testing.T) {
	_, err := EncodePostingBlock([]uint32{1, 2}, [][]uint32{{1}})
	assert.Error(t, err)
}

// TestSegmentBuilderEnforcesCapacity checks the ordinal-range boundary:
// once a builder already holds MaxDocumentsPerSegment documents (ordinals
// 0..65535 assigned), the next AddDocument call — the one that would
// assign ordinal 65536 — returns ErrSegmentFull.
func TestSegmentBuilderEnforcesCapacity(t *testing.T) {
	b := &SegmentBuilder{postings: make(map[postingKeyMem]*postingBuilder)}
	b.lengths = make([]map[schema.Ref]uint32, MaxDocumentsPerSegment)
	_, err := b.AddDocument(prepare(t, 0, "overflow", "x", false))
	assert.ErrorIs(t, err, ErrSegmentFull)
}

package query

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
	"github.com/scampagna/ftsearch/storage"
	"github.com/scampagna/ftsearch/term"
	"github.com/scampagna/ftsearch/termdict"
)

type fixture struct {
	engine *Engine
	schema *schema.Schema
	title  schema.Ref
}

func newFixture(t *testing.T, docs map[string]string) *fixture {
	t.Helper()
	ctx := context.Background()
	kv := memstore.New()

	s := schema.New()
	titleRef, err := s.AddField("title", schema.Text, schema.Indexed|schema.Stored)
	require.NoError(t, err)

	dict, err := termdict.Load(ctx, kv)
	require.NoError(t, err)
	store := storage.NewSegmentStore(kv, dict)

	reg := analysis.NewRegistry()
	analyzer, err := reg.Get("standard")
	require.NoError(t, err)

	b := storage.NewSegmentBuilder()
	for key, text := range docs {
		raw, _ := json.Marshal(text)
		_, err := b.AddDocument(document.Analyzed{
			Key:     key,
			Indexed: map[schema.Ref][]analysis.Token{titleRef: analyzer.Analyze(text)},
			Stored:  map[schema.Ref]json.RawMessage{titleRef: raw},
		})
		require.NoError(t, err)
	}
	_, _, err = store.WriteSegment(ctx, b)
	require.NoError(t, err)

	return &fixture{
		engine: &Engine{Schema: s, Dict: dict, Store: store},
		schema: s,
		title:  titleRef,
	}
}

func hitIDs(r *Response) []string {
	out := make([]string, len(r.Hits.Hits))
	for i, h := range r.Hits.Hits {
		out[i] = h.ID
	}
	return out
}

func TestExecuteMatchTermExact(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a": "the quick brown fox",
		"b": "the lazy dog",
	})

	tree := MatchTerm("title", term.String("fox"), MatchExact, DefaultScorer)
	resp, err := f.engine.Execute(context.Background(), tree, Options{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), resp.Hits.Total)
	assert.Equal(t, []string{"a"}, hitIDs(resp))
}

func TestExecuteConjunctionRequiresBoth(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a": "quick brown fox",
		"b": "quick turtle",
		"c": "brown bear",
	})

	tree := Conjunction(
		MatchTerm("title", term.String("quick"), MatchExact, DefaultScorer),
		MatchTerm("title", term.String("brown"), MatchExact, DefaultScorer),
	)
	resp, err := f.engine.Execute(context.Background(), tree, Options{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, hitIDs(resp))
}

func TestExecuteDisjunctionUnionsMatches(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a": "quick fox",
		"b": "lazy dog",
		"c": "unrelated text",
	})

	tree := Disjunction(
		MatchTerm("title", term.String("quick"), MatchExact, DefaultScorer),
		MatchTerm("title", term.String("lazy"), MatchExact, DefaultScorer),
	)
	resp, err := f.engine.Execute(context.Background(), tree, Options{Size: 10})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, hitIDs(resp))
}

func TestExecuteMatchNoneReturnsNothing(t *testing.T) {
	f := newFixture(t, map[string]string{"a": "anything"})
	resp, err := f.engine.Execute(context.Background(), MatchNone(), Options{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), resp.Hits.Total)
}

func TestExecuteMatchAllReturnsEverything(t *testing.T) {
	f := newFixture(t, map[string]string{"a": "one", "b": "two", "c": "three"})
	resp, err := f.engine.Execute(context.Background(), MatchAll(), Options{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), resp.Hits.Total)
}

func TestExecuteFilterExcludesNonMatchingPredicate(t *testing.T) {
	f := newFixture(t, map[string]string{
		"a": "quick fox",
		"b": "quick dog",
	})

	tree := Filter(
		MatchTerm("title", term.String("quick"), MatchExact, DefaultScorer),
		MatchTerm("title", term.String("fox"), MatchExact, DefaultScorer),
	)
	resp, err := f.engine.Execute(context.Background(), tree, Options{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, hitIDs(resp))
}

func TestExecuteSizeZeroReturnsTotalOnly(t *testing.T) {
	f := newFixture(t, map[string]string{"a": "fox", "b": "fox"})
	resp, err := f.engine.Execute(context.Background(), MatchAll(), Options{Size: 0})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), resp.Hits.Total)
	assert.Empty(t, resp.Hits.Hits)
}

func TestExecuteUnknownFieldErrors(t *testing.T) {
	f := newFixture(t, map[string]string{"a": "fox"})
	tree := MatchTerm("nosuchfield", term.String("fox"), MatchExact, DefaultScorer)
	_, err := f.engine.Execute(context.Background(), tree, Options{Size: 10})
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestExecuteCancelledContext(t *testing.T) {
	f := newFixture(t, map[string]string{"a": "fox"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.engine.Execute(ctx, MatchAll(), Options{Size: 10})
	assert.ErrorIs(t, err, ErrCancelled)
}

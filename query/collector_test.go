package query

import (
	"testing"

	"github.com/scampagna/ftsearch/termdict"
)

func TestCollectorKeepsTopK(t *testing.T) {
	c := newCollector(2)
	c.Collect(termdict.DocRef{SegmentID: 0, Ordinal: 0}, 1.0)
	c.Collect(termdict.DocRef{SegmentID: 0, Ordinal: 1}, 3.0)
	c.Collect(termdict.DocRef{SegmentID: 0, Ordinal: 2}, 2.0)

	if c.Total() != 3 {
		t.Fatalf("expected total 3, got %d", c.Total())
	}
	results := c.Results()
	if len(results) != 2 {
		t.Fatalf("expected 2 retained hits, got %d", len(results))
	}
	if results[0].Score != 3.0 || results[1].Score != 2.0 {
		t.Errorf("expected descending [3.0, 2.0], got [%v, %v]", results[0].Score, results[1].Score)
	}
}

func TestCollectorZeroSizeOnlyCountsTotal(t *testing.T) {
	c := newCollector(0)
	c.Collect(termdict.DocRef{SegmentID: 0, Ordinal: 0}, 5.0)
	c.Collect(termdict.DocRef{SegmentID: 0, Ordinal: 1}, 1.0)

	if c.Total() != 2 {
		t.Fatalf("expected total 2, got %d", c.Total())
	}
	if len(c.Results()) != 0 {
		t.Error("expected no retained hits with k=0")
	}
}

func TestCollectorTieBreaksBySegmentThenOrdinal(t *testing.T) {
	c := newCollector(1)
	c.Collect(termdict.DocRef{SegmentID: 1, Ordinal: 0}, 1.0)
	c.Collect(termdict.DocRef{SegmentID: 0, Ordinal: 5}, 1.0)

	results := c.Results()
	if len(results) != 1 {
		t.Fatalf("expected 1 retained hit, got %d", len(results))
	}
	if results[0].Ref.SegmentID != 1 {
		t.Errorf("expected the higher segment_id to win an exact score tie, got segment %d", results[0].Ref.SegmentID)
	}
}

func TestCollectorFewerHitsThanK(t *testing.T) {
	c := newCollector(5)
	c.Collect(termdict.DocRef{SegmentID: 0, Ordinal: 0}, 1.0)
	if len(c.Results()) != 1 {
		t.Error("expected exactly the offered hits when fewer than k were collected")
	}
}

package query

import (
	"container/heap"

	"github.com/scampagna/ftsearch/termdict"
)

// Hit is one collected match, score paired with the DocRef needed to
// resolve stored fields and the external key.
type Hit struct {
	Ref   termdict.DocRef
	Score float64
}

// collector keeps the top-K hits seen so far in a min-heap, so that a
// lower-scoring hit is evicted the moment a better one arrives (spec.md
// §4.6's top-K semantics). Ties break on (segment_id desc, ordinal desc)
// so that results are deterministic regardless of segment scan order.
type collector struct {
	k     int
	total uint64
	h     hitHeap
}

func newCollector(k int) *collector {
	return &collector{k: k}
}

// Collect offers one hit to the collector. total is incremented for every
// offer regardless of whether it is retained, since spec.md's response
// envelope reports a total match count independent of the page size.
func (c *collector) Collect(ref termdict.DocRef, score float64) {
	c.total++
	hit := Hit{Ref: ref, Score: score}
	if c.k <= 0 {
		return
	}
	if len(c.h) < c.k {
		heap.Push(&c.h, hit)
		return
	}
	if less(hit, c.h[0]) {
		return
	}
	c.h[0] = hit
	heap.Fix(&c.h, 0)
}

// Results drains the collector into descending-score order.
func (c *collector) Results() []Hit {
	out := make([]Hit, len(c.h))
	cp := make(hitHeap, len(c.h))
	copy(cp, c.h)
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&cp).(Hit)
	}
	return out
}

// Total returns the number of hits offered to the collector, whether or
// not they were retained in the top-K.
func (c *collector) Total() uint64 { return c.total }

// less reports whether a ranks below b: lower score loses, and on a score
// tie the hit with the smaller (segment_id, ordinal) loses, so the
// min-heap's root is always the weakest surviving hit.
func less(a, b Hit) bool {
	if a.Score != b.Score {
		return a.Score < b.Score
	}
	if a.Ref.SegmentID != b.Ref.SegmentID {
		return a.Ref.SegmentID < b.Ref.SegmentID
	}
	return a.Ref.Ordinal < b.Ref.Ordinal
}

type hitHeap []Hit

func (h hitHeap) Len() int            { return len(h) }
func (h hitHeap) Less(i, j int) bool  { return less(h[i], h[j]) }
func (h hitHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *hitHeap) Push(x interface{}) { *h = append(*h, x.(Hit)) }
func (h *hitHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

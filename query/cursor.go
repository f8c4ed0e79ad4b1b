package query

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/scampagna/ftsearch/bitmap"
	"github.com/scampagna/ftsearch/schema"
	"github.com/scampagna/ftsearch/storage"
)

// Cursor is the uniform evaluation contract every query node compiles
// down to within one segment (spec.md §4.6, §9's "closed tagged-variant
// set plus a shared capability: {doc(), advance(target), score()}").
type Cursor interface {
	// Doc returns the current ordinal. Valid only after Next/Advance
	// returns true.
	Doc() uint32
	// Next advances to the next matching ordinal.
	Next() bool
	// Advance moves to the first matching ordinal >= target.
	Advance(target uint32) bool
	// Score returns the current ordinal's score.
	Score() float64
}

// segmentScope is the per-segment context instantiate needs: its live-docs
// set (non-live ordinals are never visited) and access to its posting
// data.
type segmentScope struct {
	ctx       context.Context
	segmentID uint32
	live      *bitmap.Bitmap
	store     *storage.SegmentStore
}

// instantiate builds a Cursor for p scoped to one segment. A nil return
// means the clause has no possible matches in this segment (callers treat
// it as emptyCursor).
func instantiate(scope *segmentScope, p *plan) (Cursor, error) {
	switch p.kind {
	case KindMatchAll:
		return newLiveCursor(scope.live, Scorer{Kind: ScorerConstant, C: 1}), nil

	case KindMatchNone:
		return emptyCursor{}, nil

	case KindMatchTerm:
		return instantiateMatchTerm(scope, p)

	case KindConjunction:
		return instantiateConjunction(scope, p)

	case KindDisjunction:
		return instantiateDisjunction(scope, p, 1)

	case KindNDisjunction:
		min := p.minimumShouldMatch
		if min < 1 {
			min = 1
		}
		return instantiateDisjunction(scope, p, min)

	case KindDisjunctionMax:
		return instantiateDisjunctionMax(scope, p)

	case KindFilter:
		return instantiateFilter(scope, p)

	case KindScore:
		return instantiateScore(scope, p)

	case kindNegation:
		return instantiateNegation(scope, p)

	default:
		return nil, fmt.Errorf("query: cannot instantiate kind %v", p.kind)
	}
}

func instantiateMatchTerm(scope *segmentScope, p *plan) (Cursor, error) {
	var sub []Cursor
	for _, ref := range p.termRefs {
		block, ok, err := scope.store.ReadPostingBlock(scope.ctx, scope.segmentID, uint32(p.fieldRef), uint32(ref))
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		sub = append(sub, &termCursor{
			ctx:       scope.ctx,
			segmentID: scope.segmentID,
			fieldRef:  p.fieldRef,
			store:     scope.store,
			it:        bitmap.NewIterator(block.Ordinals),
			block:     block,
			live:      scope.live,
			scorer:    p.scorer,
			df:        p.df[ref],
			n:         p.n,
		})
	}
	if len(sub) == 0 {
		return emptyCursor{}, nil
	}
	if len(sub) == 1 {
		return sub[0], nil
	}
	return newDisjunctionCursor(sub, 1), nil
}

// termCursor walks one term's posting block within a segment, skipping
// ordinals whose live bit is clear (spec.md §3's DocRef validity
// invariant).
type termCursor struct {
	ctx       context.Context
	segmentID uint32
	fieldRef  schema.Ref
	store     *storage.SegmentStore

	it     *bitmap.Iterator
	block  *storage.PostingBlock
	live   *bitmap.Bitmap
	scorer Scorer
	df, n  uint64
	valid  bool
}

func (c *termCursor) Doc() uint32 { return c.it.Value() }

func (c *termCursor) Next() bool {
	for c.it.Next() {
		if c.live.Contains(c.it.Value()) {
			c.valid = true
			return true
		}
	}
	c.valid = false
	return false
}

func (c *termCursor) Advance(target uint32) bool {
	if !c.it.Advance(target) {
		c.valid = false
		return false
	}
	if c.live.Contains(c.it.Value()) {
		c.valid = true
		return true
	}
	return c.Next()
}

func (c *termCursor) Score() float64 {
	tf := float64(c.block.TermFrequency(c.it.Value()))
	var fieldLength uint32
	if c.scorer.Kind == ScorerTFIDF && c.scorer.B != 0 {
		ordinal := c.it.Value()
		if ordinal <= 0xFFFF {
			if lengths, err := c.store.ReadFieldLengths(c.ctx, c.segmentID, uint16(ordinal)); err == nil {
				fieldLength = lengths[c.fieldRef]
			}
		}
	}
	return scoreHit(c.scorer, tf, c.df, c.n, fieldLength)
}

// liveCursor walks every live ordinal in the segment, used by MatchAll.
type liveCursor struct {
	it     *bitmap.Iterator
	scorer Scorer
}

func newLiveCursor(live *bitmap.Bitmap, scorer Scorer) *liveCursor {
	return &liveCursor{it: bitmap.NewIterator(live), scorer: scorer}
}

func (c *liveCursor) Doc() uint32               { return c.it.Value() }
func (c *liveCursor) Next() bool                { return c.it.Next() }
func (c *liveCursor) Advance(target uint32) bool { return c.it.Advance(target) }
func (c *liveCursor) Score() float64            { return c.scorer.C }

// emptyCursor never matches.
type emptyCursor struct{}

func (emptyCursor) Doc() uint32                { return 0 }
func (emptyCursor) Next() bool                 { return false }
func (emptyCursor) Advance(uint32) bool        { return false }
func (emptyCursor) Score() float64             { return 0 }

func instantiateConjunction(scope *segmentScope, p *plan) (Cursor, error) {
	subs, err := instantiateAll(scope, p.clauses)
	if err != nil {
		return nil, err
	}
	for _, s := range subs {
		if _, ok := s.(emptyCursor); ok {
			return emptyCursor{}, nil
		}
	}
	if len(subs) == 0 {
		return emptyCursor{}, nil
	}
	return &conjunctionCursor{subs: subs}, nil
}

// conjunctionCursor implements leapfrog-join conjunction: repeatedly
// advance the cursor furthest behind until all agree.
type conjunctionCursor struct {
	subs    []Cursor
	current uint32
	started bool
}

func (c *conjunctionCursor) Doc() uint32 { return c.current }

func (c *conjunctionCursor) Next() bool {
	if !c.started {
		c.started = true
		if !c.subs[0].Next() {
			return false
		}
	} else {
		if !c.subs[0].Advance(c.current + 1) {
			return false
		}
	}
	return c.converge(c.subs[0].Doc())
}

func (c *conjunctionCursor) Advance(target uint32) bool {
	if !c.subs[0].Advance(target) {
		return false
	}
	return c.converge(c.subs[0].Doc())
}

func (c *conjunctionCursor) converge(candidate uint32) bool {
	for {
		agree := true
		for _, s := range c.subs[1:] {
			if !s.Advance(candidate) {
				return false
			}
			if s.Doc() != candidate {
				agree = false
				if !c.subs[0].Advance(s.Doc()) {
					return false
				}
				candidate = c.subs[0].Doc()
				break
			}
		}
		if agree {
			c.current = candidate
			return true
		}
	}
}

func (c *conjunctionCursor) Score() float64 {
	var total float64
	for _, s := range c.subs {
		total += s.Score()
	}
	return total
}

// heapEntry is one live cursor tracked by a disjunction's min-heap,
// grounded on the teacher's blockEntry/minBlockHeap in
// weaviate/engine/engine.go.
type heapEntry struct {
	cur Cursor
	doc uint32
}

type cursorHeap []*heapEntry

func (h cursorHeap) Len() int            { return len(h) }
func (h cursorHeap) Less(i, j int) bool  { return h[i].doc < h[j].doc }
func (h cursorHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x interface{}) { *h = append(*h, x.(*heapEntry)) }
func (h *cursorHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func instantiateDisjunction(scope *segmentScope, p *plan, minimumShouldMatch int) (Cursor, error) {
	subs, err := instantiateAll(scope, p.clauses)
	if err != nil {
		return nil, err
	}
	return newDisjunctionCursor(subs, minimumShouldMatch), nil
}

func newDisjunctionCursor(subs []Cursor, minimumShouldMatch int) Cursor {
	var live []Cursor
	for _, s := range subs {
		if _, ok := s.(emptyCursor); !ok {
			live = append(live, s)
		}
	}
	if len(live) == 0 {
		return emptyCursor{}
	}
	if minimumShouldMatch < 1 {
		minimumShouldMatch = 1
	}
	return &disjunctionCursor{subs: live, minimumShouldMatch: minimumShouldMatch}
}

// disjunctionCursor unions its sub-cursors via a min-heap keyed by current
// doc, matching once at least minimumShouldMatch sub-cursors agree on the
// same ordinal (spec.md §4.6 Disjunction/NDisjunction).
type disjunctionCursor struct {
	subs               []Cursor
	minimumShouldMatch int
	h                  cursorHeap
	initialized        bool
	current            uint32
	matching           []Cursor
}

func (c *disjunctionCursor) init() {
	c.h = make(cursorHeap, 0, len(c.subs))
	for _, s := range c.subs {
		if s.Next() {
			heap.Push(&c.h, &heapEntry{cur: s, doc: s.Doc()})
		}
	}
	c.initialized = true
}

func (c *disjunctionCursor) Doc() uint32 { return c.current }

func (c *disjunctionCursor) Next() bool {
	if !c.initialized {
		c.init()
	}
	for c.h.Len() > 0 {
		doc := c.h[0].doc
		c.matching = c.matching[:0]
		for c.h.Len() > 0 && c.h[0].doc == doc {
			entry := heap.Pop(&c.h).(*heapEntry)
			c.matching = append(c.matching, entry.cur)
			if entry.cur.Next() {
				heap.Push(&c.h, &heapEntry{cur: entry.cur, doc: entry.cur.Doc()})
			}
		}
		if len(c.matching) >= c.minimumShouldMatch {
			c.current = doc
			return true
		}
	}
	return false
}

func (c *disjunctionCursor) Advance(target uint32) bool {
	if !c.initialized {
		c.init()
	}
	for c.h.Len() > 0 && c.h[0].doc < target {
		entry := heap.Pop(&c.h).(*heapEntry)
		if entry.cur.Advance(target) {
			heap.Push(&c.h, &heapEntry{cur: entry.cur, doc: entry.cur.Doc()})
		}
	}
	return c.Next()
}

func (c *disjunctionCursor) Score() float64 {
	var total float64
	for _, s := range c.matching {
		total += s.Score()
	}
	return total
}

func instantiateDisjunctionMax(scope *segmentScope, p *plan) (Cursor, error) {
	subs, err := instantiateAll(scope, p.clauses)
	if err != nil {
		return nil, err
	}
	inner := newDisjunctionCursor(subs, 1)
	if _, ok := inner.(emptyCursor); ok {
		return inner, nil
	}
	return &dismaxCursor{inner: inner.(*disjunctionCursor), tieBreaker: p.tieBreaker}, nil
}

// dismaxCursor rescores a disjunctionCursor's matches as max(sub scores)
// plus tieBreaker times the sum of the rest (spec.md §4.6 DisjunctionMax).
type dismaxCursor struct {
	inner      *disjunctionCursor
	tieBreaker float64
}

func (c *dismaxCursor) Doc() uint32                { return c.inner.Doc() }
func (c *dismaxCursor) Next() bool                 { return c.inner.Next() }
func (c *dismaxCursor) Advance(target uint32) bool { return c.inner.Advance(target) }

func (c *dismaxCursor) Score() float64 {
	var max, sum float64
	for i, s := range c.inner.matching {
		sc := s.Score()
		sum += sc
		if i == 0 || sc > max {
			max = sc
		}
	}
	return max + c.tieBreaker*(sum-max)
}

func instantiateFilter(scope *segmentScope, p *plan) (Cursor, error) {
	q, err := instantiate(scope, p.filterQ)
	if err != nil {
		return nil, err
	}
	pred, err := instantiate(scope, p.filterPred)
	if err != nil {
		return nil, err
	}
	if _, ok := q.(emptyCursor); ok {
		return emptyCursor{}, nil
	}
	if _, ok := pred.(emptyCursor); ok {
		return emptyCursor{}, nil
	}
	return &filterCursor{q: q, pred: pred}, nil
}

// filterCursor scores from q but only visits ordinals pred also matches
// (spec.md §4.6 Filter).
type filterCursor struct {
	q, pred Cursor
	current uint32
}

func (c *filterCursor) Doc() uint32 { return c.current }

func (c *filterCursor) Next() bool {
	if !c.q.Next() {
		return false
	}
	return c.seek(c.q.Doc())
}

func (c *filterCursor) Advance(target uint32) bool {
	if !c.q.Advance(target) {
		return false
	}
	return c.seek(c.q.Doc())
}

func (c *filterCursor) seek(candidate uint32) bool {
	for {
		if !c.pred.Advance(candidate) {
			return false
		}
		if c.pred.Doc() == candidate {
			c.current = candidate
			return true
		}
		if !c.q.Advance(c.pred.Doc()) {
			return false
		}
		candidate = c.q.Doc()
	}
}

func (c *filterCursor) Score() float64 { return c.q.Score() }

func instantiateScore(scope *segmentScope, p *plan) (Cursor, error) {
	q, err := instantiate(scope, p.scoreQ)
	if err != nil {
		return nil, err
	}
	if _, ok := q.(emptyCursor); ok {
		return q, nil
	}
	return &scoreCursor{inner: q, mul: p.scoreMul, add: p.scoreAdd}, nil
}

// scoreCursor rescores its child linearly (spec.md §4.6 Score, used by
// function_score).
type scoreCursor struct {
	inner    Cursor
	mul, add float64
}

func (c *scoreCursor) Doc() uint32                { return c.inner.Doc() }
func (c *scoreCursor) Next() bool                 { return c.inner.Next() }
func (c *scoreCursor) Advance(target uint32) bool { return c.inner.Advance(target) }
func (c *scoreCursor) Score() float64             { return c.inner.Score()*c.mul + c.add }

func instantiateNegation(scope *segmentScope, p *plan) (Cursor, error) {
	excluded, err := instantiate(scope, p.negated)
	if err != nil {
		return nil, err
	}
	return &negationCursor{live: bitmap.NewIterator(scope.live), excluded: excluded}, nil
}

// negationCursor walks every live ordinal, skipping those excluded
// matches. Used only as the predicate half of a Filter compiled from a
// bool query's must_not clauses; its own score is always 0 since a
// predicate's score is discarded by filterCursor.
type negationCursor struct {
	live     *bitmap.Iterator
	excluded Cursor
}

func (c *negationCursor) Doc() uint32 { return c.live.Value() }

func (c *negationCursor) Next() bool {
	for c.live.Next() {
		if !c.matchesExcluded(c.live.Value()) {
			return true
		}
	}
	return false
}

func (c *negationCursor) Advance(target uint32) bool {
	if !c.live.Advance(target) {
		return false
	}
	if !c.matchesExcluded(c.live.Value()) {
		return true
	}
	return c.Next()
}

func (c *negationCursor) matchesExcluded(doc uint32) bool {
	return c.excluded.Advance(doc) && c.excluded.Doc() == doc
}

func (c *negationCursor) Score() float64 { return 0 }

func instantiateAll(scope *segmentScope, plans []*plan) ([]Cursor, error) {
	out := make([]Cursor, 0, len(plans))
	for _, p := range plans {
		c, err := instantiate(scope, p)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

package query

import (
	"context"
	"encoding/json"
	"errors"
	"sort"

	"github.com/scampagna/ftsearch/bitmap"
	"github.com/scampagna/ftsearch/schema"
	"github.com/scampagna/ftsearch/storage"
	"github.com/scampagna/ftsearch/termdict"
)

// ErrCancelled is returned when ctx is cancelled mid-execution, per
// spec.md §5's cancellation contract: cancelled queries return an error
// without partial results.
var ErrCancelled = errors.New("query: cancelled")

// cancelCheckInterval is how often, in candidate documents visited within
// one segment, Execute rechecks ctx for cancellation (spec.md §5:
// "between every 1024 candidate documents within a segment").
const cancelCheckInterval = 1024

// Engine evaluates compiled Query trees against one index's segments.
type Engine struct {
	Schema *schema.Schema
	Dict   *termdict.Dictionary
	Store  *storage.SegmentStore
}

// Options controls one Execute call.
type Options struct {
	Size int // top-K; 0 returns only Total with no hits
}

// Response is the top-level result envelope (spec.md §4.6: `{"hits":
// {"total": N, "hits": [{"_id","_score","_source"}, ...]}}`).
type Response struct {
	Hits HitsEnvelope `json:"hits"`
}

// HitsEnvelope holds the total match count and the returned page of
// scored hits.
type HitsEnvelope struct {
	Total uint64     `json:"total"`
	Hits  []ScoredHit `json:"hits"`
}

// ScoredHit is one rendered hit.
type ScoredHit struct {
	ID     string          `json:"_id"`
	Score  float64         `json:"_score"`
	Source json.RawMessage `json:"_source"`
}

// Execute compiles tree, evaluates it across every segment in ascending
// segment_id order, and returns the top opts.Size hits by score (spec.md
// §4.6's "Cross-segment execution").
func (e *Engine) Execute(ctx context.Context, tree Query, opts Options) (*Response, error) {
	segmentIDs, err := e.Store.ListSegmentIDs(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(segmentIDs, func(i, j int) bool { return segmentIDs[i] < segmentIDs[j] })

	var totalLive uint64
	liveBySegment := make(map[uint32]*bitmap.Bitmap, len(segmentIDs))
	for _, id := range segmentIDs {
		bm, err := e.Store.ReadLiveDocs(ctx, id)
		if err != nil {
			return nil, err
		}
		liveBySegment[id] = bm
		totalLive += uint64(bm.Cardinality())
	}

	pl := &planner{schema: e.Schema, dict: e.Dict, store: e.Store, segmentIDs: segmentIDs, totalLive: totalLive}
	p, err := pl.build(ctx, tree)
	if err != nil {
		return nil, err
	}

	coll := newCollector(opts.Size)

	for _, segID := range segmentIDs {
		if err := checkContext(ctx); err != nil {
			return nil, err
		}

		scope := &segmentScope{ctx: ctx, segmentID: segID, live: liveBySegment[segID], store: e.Store}
		cur, err := instantiate(scope, p)
		if err != nil {
			return nil, err
		}

		var visited int
		for cur.Next() {
			visited++
			if visited%cancelCheckInterval == 0 {
				if err := checkContext(ctx); err != nil {
					return nil, err
				}
			}
			coll.Collect(termdict.DocRef{SegmentID: segID, Ordinal: uint16(cur.Doc())}, cur.Score())
		}
	}

	hits := coll.Results()
	out := make([]ScoredHit, 0, len(hits))
	for _, h := range hits {
		stored, err := e.Store.ReadStoredFields(ctx, h.Ref.SegmentID, h.Ref.Ordinal)
		if err != nil {
			return nil, err
		}
		source, err := renderSource(e.Schema, stored)
		if err != nil {
			return nil, err
		}
		out = append(out, ScoredHit{ID: stored.Key, Score: h.Score, Source: source})
	}

	return &Response{Hits: HitsEnvelope{Total: coll.Total(), Hits: out}}, nil
}

// renderSource re-keys a stored document's schema.Ref-keyed fields back
// to their field names for the JSON response's "_source" object.
func renderSource(s *schema.Schema, stored storage.StoredDocument) (json.RawMessage, error) {
	named := make(map[string]json.RawMessage, len(stored.Fields))
	for ref, raw := range stored.Fields {
		def, ok := s.FieldByRef(ref)
		if !ok {
			continue
		}
		named[def.Name] = raw
	}
	return json.Marshal(named)
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ErrCancelled
	default:
		return nil
	}
}


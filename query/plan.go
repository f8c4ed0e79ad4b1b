package query

import (
	"context"
	"fmt"

	"github.com/scampagna/ftsearch/schema"
	"github.com/scampagna/ftsearch/storage"
	"github.com/scampagna/ftsearch/term"
	"github.com/scampagna/ftsearch/termdict"
)

// ErrUnknownField is returned when a MatchTerm leaf names a field the
// schema does not recognize (spec.md §4.6 parser error UnknownField,
// reused here for compile-time field resolution).
var ErrUnknownField = fmt.Errorf("query: unknown field")

// plan is a Query tree with every field/term name resolved to refs and
// every leaf's document frequency aggregated across the whole index, so
// that the same IDF applies uniformly no matter which segment is being
// scanned (spec.md §4.6's scorers are corpus-relative, not
// segment-relative). Built once per Execute call; instantiated into a
// Cursor once per segment.
type plan struct {
	kind Kind

	fieldRef schema.Ref
	termRefs []term.Ref
	matcher  Matcher
	scorer   Scorer
	df       map[term.Ref]uint64
	n        uint64

	clauses            []*plan
	minimumShouldMatch int
	tieBreaker         float64

	filterQ, filterPred *plan
	scoreQ              *plan
	scoreMul, scoreAdd  float64

	negated *plan
}

// planner resolves schema/term names against one index snapshot.
type planner struct {
	schema     *schema.Schema
	dict       *termdict.Dictionary
	store      *storage.SegmentStore
	segmentIDs []uint32
	totalLive  uint64
}

func (p *planner) build(ctx context.Context, q Query) (*plan, error) {
	switch q.Kind {
	case KindMatchAll, KindMatchNone:
		return &plan{kind: q.Kind}, nil

	case KindMatchTerm:
		def, ok := p.schema.FieldByName(q.Field)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, q.Field)
		}

		var refs []term.Ref
		switch q.Matcher {
		case MatchExact:
			if ref := p.dict.Get(q.Term); ref != term.Invalid {
				refs = []term.Ref{ref}
			}
		case MatchPrefix:
			enc := q.Term.Encode()
			sel := term.Selector{Kind: term.SelectPrefix, Pfx: enc[1:]}
			refs = p.dict.Select(sel)
		default:
			return nil, fmt.Errorf("query: unknown matcher %v", q.Matcher)
		}

		df := make(map[term.Ref]uint64, len(refs))
		for _, ref := range refs {
			var total uint64
			for _, segID := range p.segmentIDs {
				count, err := p.store.ReadDocFrequency(ctx, segID, uint32(def.Ref), uint32(ref))
				if err != nil {
					return nil, fmt.Errorf("query: aggregate document frequency: %w", err)
				}
				total += uint64(count)
			}
			df[ref] = total
		}

		return &plan{
			kind:     KindMatchTerm,
			fieldRef: def.Ref,
			termRefs: refs,
			matcher:  q.Matcher,
			scorer:   q.Scorer,
			df:       df,
			n:        p.totalLive,
		}, nil

	case KindConjunction, KindDisjunction:
		clauses, err := p.buildAll(ctx, q.Clauses)
		if err != nil {
			return nil, err
		}
		return &plan{kind: q.Kind, clauses: clauses}, nil

	case KindNDisjunction:
		clauses, err := p.buildAll(ctx, q.Clauses)
		if err != nil {
			return nil, err
		}
		return &plan{kind: q.Kind, clauses: clauses, minimumShouldMatch: q.MinimumShouldMatch}, nil

	case KindDisjunctionMax:
		clauses, err := p.buildAll(ctx, q.Clauses)
		if err != nil {
			return nil, err
		}
		return &plan{kind: q.Kind, clauses: clauses, tieBreaker: q.TieBreaker}, nil

	case KindFilter:
		qp, err := p.build(ctx, *q.Filtered.Q)
		if err != nil {
			return nil, err
		}
		pp, err := p.build(ctx, *q.Filtered.Predicate)
		if err != nil {
			return nil, err
		}
		return &plan{kind: KindFilter, filterQ: qp, filterPred: pp}, nil

	case KindScore:
		qp, err := p.build(ctx, *q.Scored.Q)
		if err != nil {
			return nil, err
		}
		return &plan{kind: KindScore, scoreQ: qp, scoreMul: q.Scored.Mul, scoreAdd: q.Scored.Add}, nil

	case kindNegation:
		np, err := p.build(ctx, *q.Negated)
		if err != nil {
			return nil, err
		}
		return &plan{kind: kindNegation, negated: np}, nil

	default:
		return nil, fmt.Errorf("query: unknown query kind %v", q.Kind)
	}
}

func (p *planner) buildAll(ctx context.Context, qs []Query) ([]*plan, error) {
	out := make([]*plan, 0, len(qs))
	for _, q := range qs {
		pp, err := p.build(ctx, q)
		if err != nil {
			return nil, err
		}
		out = append(out, pp)
	}
	return out, nil
}

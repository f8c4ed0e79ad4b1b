package storage

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/scampagna/ftsearch/document"
	"github.com/scampagna/ftsearch/schema"
	"github.com/scampagna/ftsearch/term"
)

// MaxDocumentsPerSegment is u16::MAX + 1: the number of ordinals a single
// segment can hold (spec.md §3 "Segment", §4.4: "ordinal would exceed
// u16::MAX"). A segment holds MaxDocumentsPerSegment documents at ordinals
// 0..65535; the call that would assign ordinal 65536 is the one that
// returns ErrSegmentFull. Counting only calls that successfully add a
// document, that is the 65,537th AddDocument call on one builder — one
// past spec.md §8's literal "65,536th call" phrasing, which this resolves
// in favor of §3/§4.4's explicit ordinal-range language.
const MaxDocumentsPerSegment = 1 << 16

// ErrSegmentFull is returned by AddDocument once the builder already holds
// MaxDocumentsPerSegment documents.
var ErrSegmentFull = fmt.Errorf("storage: segment full")

// postingKeyMem identifies one (field, term) posting list while a segment
// is being built, before any TermRef has been resolved.
type postingKeyMem struct {
	Field schema.Ref
	Term  term.Term
}

type postingBuilder struct {
	ordinals  []uint32 // strictly ascending; AddDocument is called in ordinal order
	positions [][]uint32
}

// SegmentBuilder accumulates analyzed documents entirely in memory before a
// SegmentStore flushes them to the KV store in one batch (spec.md §4.4).
type SegmentBuilder struct {
	postings map[postingKeyMem]*postingBuilder
	lengths  []map[schema.Ref]uint32
	stored   []StoredDocument
	keys     []string
}

// StoredDocument is the value persisted under "s:<segment>:<ordinal>": the
// external key (needed to render "_id" in query responses without a
// reverse DocRef index) plus the stored-field values.
type StoredDocument struct {
	Key    string                     `json:"key"`
	Fields map[schema.Ref]json.RawMessage `json:"fields"`
}

// NewSegmentBuilder returns an empty SegmentBuilder.
func NewSegmentBuilder() *SegmentBuilder {
	return &SegmentBuilder{postings: make(map[postingKeyMem]*postingBuilder)}
}

// AddDocument assigns doc the next 0-based ordinal, indexes its tokens and
// records its stored fields, returning the assigned ordinal or
// ErrSegmentFull if the builder is already at capacity.
func (b *SegmentBuilder) AddDocument(doc document.Analyzed) (uint16, error) {
	if len(b.lengths) >= MaxDocumentsPerSegment {
		return 0, ErrSegmentFull
	}
	ordinal := uint16(len(b.lengths))

	lengths := make(map[schema.Ref]uint32, len(doc.Indexed))
	for field, tokens := range doc.Indexed {
		lengths[field] = uint32(len(tokens))

		byTerm := make(map[term.Term][]uint32)
		for _, tok := range tokens {
			byTerm[tok.Term] = append(byTerm[tok.Term], tok.Position)
		}

		for t, positions := range byTerm {
			sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
			key := postingKeyMem{Field: field, Term: t}
			pb, ok := b.postings[key]
			if !ok {
				pb = &postingBuilder{}
				b.postings[key] = pb
			}
			pb.ordinals = append(pb.ordinals, uint32(ordinal))
			pb.positions = append(pb.positions, positions)
		}
	}

	fields := make(map[schema.Ref]json.RawMessage, len(doc.Stored))
	for field, raw := range doc.Stored {
		fields[field] = raw
	}

	b.lengths = append(b.lengths, lengths)
	b.stored = append(b.stored, StoredDocument{Key: doc.Key, Fields: fields})
	b.keys = append(b.keys, doc.Key)
	return ordinal, nil
}

// DocumentCount returns the number of documents accumulated so far as a
// uint16, so a builder holding MaxDocumentsPerSegment documents reports 0.
func (b *SegmentBuilder) DocumentCount() uint16 {
	return uint16(len(b.lengths))
}

// Package storage owns the on-disk segment format: the KV key layout,
// posting-block encoding, the in-memory SegmentBuilder, and the
// SegmentStore that flushes a builder to the KV store in one atomic batch
// (spec.md §4.4). Grounded on the teacher's weaviate/storage package,
// which this replaces: the teacher kept one in-memory Segment struct per
// index; here a segment is a batch of KV entries under a reserved key
// prefix, letting many segments share one embedded store.
package storage

import "encoding/binary"

// Reserved single-byte KV key prefixes (spec.md §4.4, §4.5, §9's KV key
// layout table).
const (
	prefixMeta     = '.'
	prefixTermDict = 't'
	prefixDocKey   = 'k'
	prefixPosting  = 'p'
	prefixDocFreq  = 'd'
	prefixLength   = 'l'
	prefixStored   = 's'
	prefixLiveDocs = 'v'
)

// NextSegmentIDCounterKey is the durable counter key for segment_id
// allocation (spec.md §4.4 step 1).
var NextSegmentIDCounterKey = []byte(".next_segment_id")

func be32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return buf
}

func be16(v uint16) []byte {
	buf := make([]byte, 2)
	binary.BigEndian.PutUint16(buf, v)
	return buf
}

// postingKey returns "p:<segment_id>:<field_ref>:<term_ref>".
func postingKey(segmentID, fieldRef, termRef uint32) []byte {
	key := make([]byte, 0, 13)
	key = append(key, prefixPosting)
	key = append(key, be32(segmentID)...)
	key = append(key, be32(fieldRef)...)
	key = append(key, be32(termRef)...)
	return key
}

// docFreqKey returns "d:<segment_id>:<field_ref>:<term_ref>".
func docFreqKey(segmentID, fieldRef, termRef uint32) []byte {
	key := make([]byte, 0, 13)
	key = append(key, prefixDocFreq)
	key = append(key, be32(segmentID)...)
	key = append(key, be32(fieldRef)...)
	key = append(key, be32(termRef)...)
	return key
}

// lengthKey returns "l:<segment_id>:<ordinal>".
func lengthKey(segmentID uint32, ordinal uint16) []byte {
	key := make([]byte, 0, 7)
	key = append(key, prefixLength)
	key = append(key, be32(segmentID)...)
	key = append(key, be16(ordinal)...)
	return key
}

// storedKey returns "s:<segment_id>:<ordinal>".
func storedKey(segmentID uint32, ordinal uint16) []byte {
	key := make([]byte, 0, 7)
	key = append(key, prefixStored)
	key = append(key, be32(segmentID)...)
	key = append(key, be16(ordinal)...)
	return key
}

// liveDocsKey returns "v:<segment_id>".
func liveDocsKey(segmentID uint32) []byte {
	key := make([]byte, 0, 5)
	key = append(key, prefixLiveDocs)
	key = append(key, be32(segmentID)...)
	return key
}

// postingPrefix returns the "p:<segment_id>:<field_ref>:" prefix used to
// scan every term posting for one field within a segment.
func postingPrefix(segmentID, fieldRef uint32) []byte {
	key := make([]byte, 0, 9)
	key = append(key, prefixPosting)
	key = append(key, be32(segmentID)...)
	key = append(key, be32(fieldRef)...)
	return key
}

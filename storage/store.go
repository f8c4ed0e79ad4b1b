package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/scampagna/ftsearch/bitmap"
	"github.com/scampagna/ftsearch/kvstore"
	"github.com/scampagna/ftsearch/schema"
	"github.com/scampagna/ftsearch/termdict"
)

// SegmentStore flushes SegmentBuilders to the KV store and serves reads
// back out of them (spec.md §4.4). It is the sole writer of segment data
// and the sole implementer of termdict.LiveBitClearer, since clearing a
// live bit means rewriting a "v:<segment_id>" value.
type SegmentStore struct {
	store kvstore.Store
	dict  *termdict.Dictionary
}

// NewSegmentStore returns a SegmentStore over store, resolving term
// references through dict.
func NewSegmentStore(store kvstore.Store, dict *termdict.Dictionary) *SegmentStore {
	return &SegmentStore{store: store, dict: dict}
}

// WriteSegment persists builder atomically, returning the segment_id it
// was assigned. The returned keys slice is builder's external document
// keys indexed by ordinal, for the caller (the index package) to install
// into the document-key index once the segment is durable.
func (s *SegmentStore) WriteSegment(ctx context.Context, builder *SegmentBuilder) (uint32, []string, error) {
	prevID, err := s.store.FetchAddCounter(ctx, NextSegmentIDCounterKey, 1)
	if err != nil {
		return 0, nil, fmt.Errorf("storage: reserve segment id: %w", err)
	}
	segmentID := uint32(prevID)

	type resolved struct {
		field, termRef uint32
		block          []byte
		docFreq        uint32
	}
	var blocks []resolved
	for key, pb := range builder.postings {
		ref, err := s.dict.GetOrCreate(ctx, key.Term)
		if err != nil {
			return 0, nil, fmt.Errorf("storage: resolve term ref: %w", err)
		}
		encoded, err := EncodePostingBlock(pb.ordinals, pb.positions)
		if err != nil {
			return 0, nil, fmt.Errorf("storage: encode posting block: %w", err)
		}
		blocks = append(blocks, resolved{
			field:   uint32(key.Field),
			termRef: uint32(ref),
			block:   encoded,
			docFreq: uint32(len(pb.ordinals)),
		})
	}

	liveDocs := bitmap.New()
	for ordinal := range builder.lengths {
		liveDocs.Add(uint32(ordinal))
	}
	var liveDocsBuf sliceWriter
	if err := liveDocs.Serialize(&liveDocsBuf); err != nil {
		return 0, nil, fmt.Errorf("storage: serialize live docs: %w", err)
	}

	err = s.store.Batch(ctx, func(batch kvstore.Batch) error {
		for _, b := range blocks {
			batch.Set(postingKey(segmentID, b.field, b.termRef), b.block)
			df := make([]byte, 4)
			binary.BigEndian.PutUint32(df, b.docFreq)
			batch.Set(docFreqKey(segmentID, b.field, b.termRef), df)
		}

		for ordinal, lengths := range builder.lengths {
			encoded, err := encodeLengthVector(lengths)
			if err != nil {
				return err
			}
			batch.Set(lengthKey(segmentID, uint16(ordinal)), encoded)
		}

		for ordinal, stored := range builder.stored {
			encoded, err := json.Marshal(stored)
			if err != nil {
				return fmt.Errorf("storage: marshal stored fields: %w", err)
			}
			batch.Set(storedKey(segmentID, uint16(ordinal)), encoded)
		}

		batch.Set(liveDocsKey(segmentID), liveDocsBuf.buf)
		return nil
	})
	if err != nil {
		return 0, nil, fmt.Errorf("storage: write segment batch: %w", err)
	}

	return segmentID, builder.keys, nil
}

// PrepareClearLiveBit implements termdict.LiveBitClearer: it reads ref's
// segment's live-docs bitmap, flips ref's bit off, and returns the
// resulting key/value pair without writing it, so the caller can commit it
// atomically alongside the doc-key write it accompanies in a single
// kvstore.Batch (spec.md §4.5).
func (s *SegmentStore) PrepareClearLiveBit(ctx context.Context, ref termdict.DocRef) (key, value []byte, err error) {
	bm, err := s.ReadLiveDocs(ctx, ref.SegmentID)
	if err != nil {
		return nil, nil, err
	}
	bm.Clear(uint32(ref.Ordinal))
	var buf sliceWriter
	if err := bm.Serialize(&buf); err != nil {
		return nil, nil, fmt.Errorf("storage: serialize live docs: %w", err)
	}
	return liveDocsKey(ref.SegmentID), buf.buf, nil
}

// ClearLiveBit flips a document's bit off in its segment's live-docs
// bitmap as a standalone write, without touching posting data (spec.md
// §4.4's "deletion of a single document"). Callers that need to pair the
// clear with another write in the same atomic commit should use
// PrepareClearLiveBit instead, as termdict.DocKeyIndex does.
func (s *SegmentStore) ClearLiveBit(ctx context.Context, ref termdict.DocRef) error {
	key, value, err := s.PrepareClearLiveBit(ctx, ref)
	if err != nil {
		return err
	}
	return s.store.Set(ctx, key, value)
}

// ReadLiveDocs returns the live-docs bitmap for segmentID.
func (s *SegmentStore) ReadLiveDocs(ctx context.Context, segmentID uint32) (*bitmap.Bitmap, error) {
	raw, err := s.store.Get(ctx, liveDocsKey(segmentID))
	if err != nil {
		return nil, fmt.Errorf("storage: read live docs for segment %d: %w", segmentID, err)
	}
	bm := bitmap.New()
	if err := bm.Deserialize(&sliceReader{buf: raw}); err != nil {
		return nil, fmt.Errorf("storage: decode live docs for segment %d: %w", segmentID, err)
	}
	return bm, nil
}

// ReadPostingBlock returns the decoded posting block for (segmentID,
// fieldRef, termRef), or ok=false if no such posting exists.
func (s *SegmentStore) ReadPostingBlock(ctx context.Context, segmentID, fieldRef, termRef uint32) (*PostingBlock, bool, error) {
	raw, err := s.store.Get(ctx, postingKey(segmentID, fieldRef, termRef))
	if err != nil {
		if err == kvstore.ErrKeyNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}
	pb, err := DecodePostingBlock(raw)
	if err != nil {
		return nil, false, err
	}
	return pb, true, nil
}

// ReadDocFrequency returns the document frequency recorded for (segmentID,
// fieldRef, termRef), or 0 if absent.
func (s *SegmentStore) ReadDocFrequency(ctx context.Context, segmentID, fieldRef, termRef uint32) (uint32, error) {
	raw, err := s.store.Get(ctx, docFreqKey(segmentID, fieldRef, termRef))
	if err != nil {
		if err == kvstore.ErrKeyNotFound {
			return 0, nil
		}
		return 0, err
	}
	if len(raw) != 4 {
		return 0, fmt.Errorf("storage: malformed doc frequency for segment %d", segmentID)
	}
	return binary.BigEndian.Uint32(raw), nil
}

// ReadFieldLengths returns the field-length vector for (segmentID, ordinal).
func (s *SegmentStore) ReadFieldLengths(ctx context.Context, segmentID uint32, ordinal uint16) (map[schema.Ref]uint32, error) {
	raw, err := s.store.Get(ctx, lengthKey(segmentID, ordinal))
	if err != nil {
		if err == kvstore.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}
	return decodeLengthVector(raw)
}

// ReadStoredFields returns the stored document for (segmentID, ordinal).
func (s *SegmentStore) ReadStoredFields(ctx context.Context, segmentID uint32, ordinal uint16) (StoredDocument, error) {
	raw, err := s.store.Get(ctx, storedKey(segmentID, ordinal))
	if err != nil {
		if err == kvstore.ErrKeyNotFound {
			return StoredDocument{}, nil
		}
		return StoredDocument{}, err
	}
	var out StoredDocument
	if err := json.Unmarshal(raw, &out); err != nil {
		return StoredDocument{}, fmt.Errorf("storage: decode stored fields for segment %d ordinal %d: %w", segmentID, ordinal, err)
	}
	return out, nil
}

// ListSegmentIDs returns every segment_id that has a live-docs entry,
// i.e. every segment a completed WriteSegment has produced.
func (s *SegmentStore) ListSegmentIDs(ctx context.Context) ([]uint32, error) {
	var ids []uint32
	err := s.store.IterPrefix(ctx, []byte{prefixLiveDocs}, func(key, _ []byte) (bool, error) {
		if len(key) != 5 {
			return true, nil
		}
		ids = append(ids, binary.BigEndian.Uint32(key[1:]))
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// PostingFieldPrefix scans every term posting recorded for fieldRef within
// segmentID, calling fn with each term_ref and its decoded block.
func (s *SegmentStore) PostingFieldPrefix(ctx context.Context, segmentID, fieldRef uint32, fn func(termRef uint32, block *PostingBlock) (bool, error)) error {
	prefix := postingPrefix(segmentID, fieldRef)
	return s.store.IterPrefix(ctx, prefix, func(key, value []byte) (bool, error) {
		if len(key) != len(prefix)+4 {
			return true, nil
		}
		termRef := binary.BigEndian.Uint32(key[len(prefix):])
		block, err := DecodePostingBlock(value)
		if err != nil {
			return false, err
		}
		return fn(termRef, block)
	})
}

func encodeLengthVector(lengths map[schema.Ref]uint32) ([]byte, error) {
	var buf sliceWriter
	count := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(count, uint64(len(lengths)))
	buf.buf = append(buf.buf, count[:n]...)
	for field, length := range lengths {
		fieldBuf := make([]byte, binary.MaxVarintLen64)
		n := binary.PutUvarint(fieldBuf, uint64(field))
		buf.buf = append(buf.buf, fieldBuf[:n]...)
		lenBuf := make([]byte, binary.MaxVarintLen64)
		n = binary.PutUvarint(lenBuf, uint64(length))
		buf.buf = append(buf.buf, lenBuf[:n]...)
	}
	return buf.buf, nil
}

func decodeLengthVector(data []byte) (map[schema.Ref]uint32, error) {
	count, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, fmt.Errorf("storage: malformed length vector count")
	}
	data = data[n:]
	out := make(map[schema.Ref]uint32, count)
	for i := uint64(0); i < count; i++ {
		field, n := binary.Uvarint(data)
		if n <= 0 {
			return nil, fmt.Errorf("storage: malformed length vector field ref")
		}
		data = data[n:]
		length, n := binary.Uvarint(data)
		if n <= 0 {
			return nil, fmt.Errorf("storage: malformed length vector length")
		}
		data = data[n:]
		out[schema.Ref(field)] = uint32(length)
	}
	return out, nil
}

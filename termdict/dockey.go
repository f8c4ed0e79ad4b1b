package termdict

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/scampagna/ftsearch/kvstore"
)

// DocRef is an internal document identifier: a segment plus a dense
// ordinal within it (spec.md §3 "DocRef").
type DocRef struct {
	SegmentID uint32
	Ordinal   uint16
}

func encodeDocRef(ref DocRef) []byte {
	buf := make([]byte, 6)
	binary.BigEndian.PutUint32(buf[0:4], ref.SegmentID)
	binary.BigEndian.PutUint16(buf[4:6], ref.Ordinal)
	return buf
}

func decodeDocRef(buf []byte) (DocRef, error) {
	if len(buf) != 6 {
		return DocRef{}, fmt.Errorf("termdict: malformed DocRef encoding (len %d)", len(buf))
	}
	return DocRef{
		SegmentID: binary.BigEndian.Uint32(buf[0:4]),
		Ordinal:   binary.BigEndian.Uint16(buf[4:6]),
	}, nil
}

// LiveBitClearer computes the key/value pair that clears a document's live
// bit in its segment's live-docs bitmap, without writing it, so the caller
// can fold the write into a larger atomic batch alongside the doc-key
// entry it accompanies. Implemented by the storage package's SegmentStore;
// declared here to avoid an import cycle between termdict and storage.
type LiveBitClearer interface {
	PrepareClearLiveBit(ctx context.Context, ref DocRef) (key, value []byte, err error)
}

// DocKeyIndex is the persistent map from external document keys to their
// current DocRef, keyed "k<key-bytes>" (spec.md §4.5).
type DocKeyIndex struct {
	store   kvstore.Store
	clearer LiveBitClearer
}

// NewDocKeyIndex returns a DocKeyIndex backed by store. clearer is used by
// InsertOrReplace to retire a previous DocRef's live bit on overwrite.
func NewDocKeyIndex(store kvstore.Store, clearer LiveBitClearer) *DocKeyIndex {
	return &DocKeyIndex{store: store, clearer: clearer}
}

func docKey(key string) []byte {
	return append([]byte(docKeyKeyPrefix), key...)
}

// Lookup returns the current DocRef for key, or ok=false if key has never
// been written or was deleted.
func (idx *DocKeyIndex) Lookup(ctx context.Context, key string) (DocRef, bool, error) {
	raw, err := idx.store.Get(ctx, docKey(key))
	if err != nil {
		if err == kvstore.ErrKeyNotFound {
			return DocRef{}, false, nil
		}
		return DocRef{}, false, err
	}
	ref, err := decodeDocRef(raw)
	if err != nil {
		return DocRef{}, false, err
	}
	return ref, true, nil
}

// InsertOrReplace installs newRef as the current DocRef for key, clearing
// the live bit of any previous DocRef for the same key in the same batch
// (spec.md §3 invariant: "at most one DocRef is reachable from a given
// external document key at any time"; spec.md §4.5: "clear its live-doc
// bit in that segment's bitmap and write the new key→ref — all in one
// batch"). The live-bit clear and the new key mapping are committed by a
// single kvstore.Batch so a crash between them is impossible: either both
// land or neither does.
func (idx *DocKeyIndex) InsertOrReplace(ctx context.Context, key string, newRef DocRef) error {
	prev, existed, err := idx.Lookup(ctx, key)
	if err != nil {
		return fmt.Errorf("termdict: lookup previous ref for %q: %w", key, err)
	}

	var clearKey, clearValue []byte
	if existed {
		clearKey, clearValue, err = idx.clearer.PrepareClearLiveBit(ctx, prev)
		if err != nil {
			return fmt.Errorf("termdict: prepare live bit clear for %q: %w", key, err)
		}
	}

	err = idx.store.Batch(ctx, func(b kvstore.Batch) error {
		if existed {
			b.Set(clearKey, clearValue)
		}
		b.Set(docKey(key), encodeDocRef(newRef))
		return nil
	})
	if err != nil {
		return fmt.Errorf("termdict: persist key %q: %w", key, err)
	}
	return nil
}

// Delete removes key from the index and clears the live bit of its current
// DocRef, if any, in the same batch (spec.md §4.5).
func (idx *DocKeyIndex) Delete(ctx context.Context, key string) error {
	prev, existed, err := idx.Lookup(ctx, key)
	if err != nil {
		return err
	}
	if !existed {
		return nil
	}
	clearKey, clearValue, err := idx.clearer.PrepareClearLiveBit(ctx, prev)
	if err != nil {
		return fmt.Errorf("termdict: prepare live bit clear for %q: %w", key, err)
	}
	return idx.store.Batch(ctx, func(b kvstore.Batch) error {
		b.Set(clearKey, clearValue)
		b.Delete(docKey(key))
		return nil
	})
}

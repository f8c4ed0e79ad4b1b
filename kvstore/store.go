// Package kvstore defines the embedded ordered key-value store abstraction
// the rest of the engine is built against (spec.md §9: "the core should be
// testable against a stub/in-memory KV implementation"). Two
// implementations are provided: badgerstore (github.com/dgraph-io/badger/v4,
// for production) and memstore (github.com/google/btree, for tests and
// small/ephemeral indexes).
//
// Grounded on the teacher's storage package's stated layering ambition
// (weaviate/storage/doc.go's package doc envisions pluggable storage) and
// on AleutianFOSS's badgerstore.DB wrapper
// (services/trace/storage/badger), which this package generalizes from a
// single-purpose cache store into the engine's general-purpose KV
// interface.
package kvstore

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Get when key is absent.
var ErrKeyNotFound = errors.New("kvstore: key not found")

// Store is the ordered KV interface the engine's storage layer is built
// against. Keys sort by unsigned byte comparison; implementations must
// honor that order in IterPrefix.
type Store interface {
	// Get returns the value for key, or ErrKeyNotFound.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Set writes key/value outside of any larger batch.
	Set(ctx context.Context, key, value []byte) error

	// Batch runs fn against a Batch that is committed atomically once fn
	// returns nil; an error from fn aborts the batch (spec.md §4.4 step 4,
	// "readers observe either the entire segment or nothing").
	Batch(ctx context.Context, fn func(Batch) error) error

	// IterPrefix calls fn with every key/value pair whose key has the given
	// prefix, in ascending key order, until fn returns false or an error.
	IterPrefix(ctx context.Context, prefix []byte, fn func(key, value []byte) (bool, error)) error

	// FetchAddCounter atomically adds delta to the uint64 counter stored
	// under key (treated as 0 if absent) and returns the value *before* the
	// add, serializing concurrent callers (spec.md §4.5's
	// `.next_term_ref`/`.next_segment_id` counters).
	FetchAddCounter(ctx context.Context, key []byte, delta uint64) (uint64, error)

	// Close releases any resources held by the store.
	Close() error
}

// Batch accumulates writes for one atomic commit.
type Batch interface {
	Set(key, value []byte)
	Delete(key []byte)
}

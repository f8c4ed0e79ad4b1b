// Package badgerstore implements kvstore.Store on top of
// github.com/dgraph-io/badger/v4, the production embedded KV engine for an
// index. Grounded on AleutianAI-AleutianFOSS's badger wrapper
// (services/trace/storage/badger, consumed via
// services/trace/agent/routing/router_cache.go's WithReadTxn/WithTxn
// pattern), generalized from that package's single cache-entry shape into
// a general-purpose ordered store with prefix iteration and an atomic
// counter.
package badgerstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/scampagna/ftsearch/kvstore"
)

// Store wraps a *badger.DB to satisfy kvstore.Store.
type Store struct {
	db *badger.DB
	// counterMu serializes FetchAddCounter so the read-modify-write is
	// atomic even though Badger's own transaction conflict detection would
	// otherwise require a retry loop (spec.md §4.5's single-writer counter
	// discipline).
	counterMu sync.Mutex
	logger    *slog.Logger
}

// Open opens (creating if necessary) a Badger database rooted at dir.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open %s: %w", dir, err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Get implements kvstore.Store.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return kvstore.ErrKeyNotFound
		}
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Set implements kvstore.Store.
func (s *Store) Set(ctx context.Context, key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Batch implements kvstore.Store.
func (s *Store) Batch(ctx context.Context, fn func(kvstore.Batch) error) error {
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	b := &writeBatch{wb: wb}
	if err := fn(b); err != nil {
		return err
	}
	if b.err != nil {
		return fmt.Errorf("badgerstore: batch: %w", b.err)
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("badgerstore: flush batch: %w", err)
	}
	return nil
}

type writeBatch struct {
	wb  *badger.WriteBatch
	err error
}

func (b *writeBatch) Set(key, value []byte) {
	if b.err != nil {
		return
	}
	b.err = b.wb.Set(key, value)
}

func (b *writeBatch) Delete(key []byte) {
	if b.err != nil {
		return
	}
	b.err = b.wb.Delete(key)
}

// IterPrefix implements kvstore.Store. Badger's default iterator order is
// ascending lexicographic byte order, matching the ordering kvstore.Store
// requires.
func (s *Store) IterPrefix(ctx context.Context, prefix []byte, fn func(key, value []byte) (bool, error)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := append([]byte(nil), item.Key()...)
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			cont, err := fn(key, value)
			if err != nil {
				return err
			}
			if !cont {
				return nil
			}
		}
		return nil
	})
}

// FetchAddCounter implements kvstore.Store.
func (s *Store) FetchAddCounter(ctx context.Context, key []byte, delta uint64) (uint64, error) {
	s.counterMu.Lock()
	defer s.counterMu.Unlock()

	var current uint64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if len(raw) != 8 {
			return fmt.Errorf("badgerstore: counter %q has malformed length %d", key, len(raw))
		}
		current = binary.BigEndian.Uint64(raw)
		return nil
	})
	if err != nil {
		return 0, err
	}

	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, current+delta)
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, next)
	}); err != nil {
		return 0, fmt.Errorf("badgerstore: persist counter %q: %w", key, err)
	}
	return current, nil
}

// Close implements kvstore.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

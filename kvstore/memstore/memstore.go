// Package memstore implements kvstore.Store in memory using
// github.com/google/btree, for tests and the in-process stub the core must
// be testable against (spec.md §9). Grounded on the retrieval pack's use of
// google/btree as an ordered in-memory index structure.
package memstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"sync"

	"github.com/google/btree"

	"github.com/scampagna/ftsearch/kvstore"
)

const degree = 32

// entry is the btree item: key-ordered key/value pair.
type entry struct {
	key   []byte
	value []byte
}

func (e entry) Less(than btree.Item) bool {
	return bytes.Compare(e.key, than.(entry).key) < 0
}

// Store is an in-memory, ordered kvstore.Store.
type Store struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

// New returns an empty Store.
func New() *Store {
	return &Store{tree: btree.New(degree)}
}

// Get implements kvstore.Store.
func (s *Store) Get(ctx context.Context, key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item := s.tree.Get(entry{key: key})
	if item == nil {
		return nil, kvstore.ErrKeyNotFound
	}
	e := item.(entry)
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set implements kvstore.Store.
func (s *Store) Set(ctx context.Context, key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value)
	return nil
}

func (s *Store) setLocked(key, value []byte) {
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	s.tree.ReplaceOrInsert(entry{key: k, value: v})
}

func (s *Store) deleteLocked(key []byte) {
	s.tree.Delete(entry{key: key})
}

// Batch implements kvstore.Store, buffering all writes and applying them
// under one lock only once fn returns nil.
func (s *Store) Batch(ctx context.Context, fn func(kvstore.Batch) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := &memBatch{store: s}
	if err := fn(b); err != nil {
		return err
	}
	for _, op := range b.ops {
		op()
	}
	return nil
}

type memBatch struct {
	store *Store
	ops   []func()
}

func (b *memBatch) Set(key, value []byte) {
	b.ops = append(b.ops, func() { b.store.setLocked(key, value) })
}

func (b *memBatch) Delete(key []byte) {
	b.ops = append(b.ops, func() { b.store.deleteLocked(key) })
}

// IterPrefix implements kvstore.Store.
func (s *Store) IterPrefix(ctx context.Context, prefix []byte, fn func(key, value []byte) (bool, error)) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var iterErr error
	s.tree.AscendGreaterOrEqual(entry{key: prefix}, func(item btree.Item) bool {
		e := item.(entry)
		if !bytes.HasPrefix(e.key, prefix) {
			return false
		}
		cont, err := fn(e.key, e.value)
		if err != nil {
			iterErr = err
			return false
		}
		return cont
	})
	return iterErr
}

// FetchAddCounter implements kvstore.Store.
func (s *Store) FetchAddCounter(ctx context.Context, key []byte, delta uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var current uint64
	if item := s.tree.Get(entry{key: key}); item != nil {
		current = binary.BigEndian.Uint64(item.(entry).value)
	}
	next := make([]byte, 8)
	binary.BigEndian.PutUint64(next, current+delta)
	s.setLocked(key, next)
	return current, nil
}

// Close implements kvstore.Store.
func (s *Store) Close() error { return nil }

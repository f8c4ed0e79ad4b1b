// Package termdict implements the term dictionary and the document-key
// index (spec.md §4.5): the durable, process-wide mapping from typed terms
// to dense TermRefs, and from external document keys to their current
// DocRef. Grounded on the teacher's weaviate/storage term bookkeeping
// (Segment.Terms map[string]*TermMetadata), generalized from a
// per-segment, string-keyed map into a cross-segment, typed dictionary
// backed by the KV store, with the double-checked-locking discipline
// spec.md §4.5 requires.
package termdict

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/scampagna/ftsearch/kvstore"
	"github.com/scampagna/ftsearch/term"
)

const (
	termKeyPrefix    = "t"
	counterKey       = ".next_term_ref"
	docKeyKeyPrefix  = "k"
)

// Dictionary maintains the in-memory term→TermRef map mirrored durably
// under "t<term-encoding>" keys, plus the ".next_term_ref" counter.
type Dictionary struct {
	store kvstore.Store

	// mapMu guards byTerm/byRef for readers; get_or_create's allocate step
	// takes writeMu instead so readers never block on disk I/O (spec.md
	// §4.5 step 2's "distinct from the map's lock").
	mapMu sync.RWMutex
	byTerm map[term.Term]term.Ref

	// writeMu serializes get_or_create's allocate-then-persist sequence: at
	// most one goroutine may hold a reserved-but-unpersisted TermRef at a
	// time (spec.md §3 invariant on the dictionary's narrow
	// allocate/persist window).
	writeMu sync.Mutex
}

// Load opens a Dictionary, replaying every "t…" entry from store into
// memory (spec.md §4.5: "crash recovery reloads the dictionary before
// opening any segment").
func Load(ctx context.Context, store kvstore.Store) (*Dictionary, error) {
	d := &Dictionary{store: store, byTerm: make(map[term.Term]term.Ref)}
	err := store.IterPrefix(ctx, []byte(termKeyPrefix), func(key, value []byte) (bool, error) {
		encoded := key[len(termKeyPrefix):]
		t, err := term.Decode(encoded)
		if err != nil {
			return false, fmt.Errorf("termdict: decode key %x: %w", key, err)
		}
		ref, err := strconv.ParseUint(string(value), 10, 32)
		if err != nil {
			return false, fmt.Errorf("termdict: decode ref for %v: %w", t, err)
		}
		d.byTerm[t] = term.Ref(ref)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

func termKey(t term.Term) []byte {
	return append([]byte(termKeyPrefix), t.Encode()...)
}

// Get returns the TermRef for t under a shared lock, or term.Invalid if t
// has never been seen.
func (d *Dictionary) Get(t term.Term) term.Ref {
	d.mapMu.RLock()
	defer d.mapMu.RUnlock()
	return d.byTerm[t]
}

// GetOrCreate returns the existing TermRef for t, or allocates and
// durably persists a new one (spec.md §4.5's double-checked insertion).
func (d *Dictionary) GetOrCreate(ctx context.Context, t term.Term) (term.Ref, error) {
	d.mapMu.RLock()
	if ref, ok := d.byTerm[t]; ok {
		d.mapMu.RUnlock()
		return ref, nil
	}
	d.mapMu.RUnlock()

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	d.mapMu.RLock()
	if ref, ok := d.byTerm[t]; ok {
		d.mapMu.RUnlock()
		return ref, nil
	}
	d.mapMu.RUnlock()

	prev, err := d.store.FetchAddCounter(ctx, []byte(counterKey), 1)
	if err != nil {
		return 0, fmt.Errorf("termdict: allocate ref: %w", err)
	}
	ref := term.Ref(prev + 1) // counter starts at 0; refs start at 1 (0 is term.Invalid)

	if err := d.store.Set(ctx, termKey(t), []byte(strconv.FormatUint(uint64(ref), 10))); err != nil {
		return 0, fmt.Errorf("termdict: persist ref for %v: %w", t, err)
	}

	d.mapMu.Lock()
	d.byTerm[t] = ref
	d.mapMu.Unlock()

	return ref, nil
}

// Select returns every TermRef whose term matches selector (spec.md §4.5).
// Terms without a stable ordering requirement are returned sorted by
// canonical term order for determinism.
func (d *Dictionary) Select(selector term.Selector) []term.Ref {
	d.mapMu.RLock()
	defer d.mapMu.RUnlock()

	type pair struct {
		t   term.Term
		ref term.Ref
	}
	var matches []pair
	for t, ref := range d.byTerm {
		if selector.Matches(t) {
			matches = append(matches, pair{t, ref})
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].t.Less(matches[j].t) })

	out := make([]term.Ref, len(matches))
	for i, p := range matches {
		out[i] = p.ref
	}
	return out
}

// Len returns the number of distinct terms known to the dictionary.
func (d *Dictionary) Len() int {
	d.mapMu.RLock()
	defer d.mapMu.RUnlock()
	return len(d.byTerm)
}

package bitmap

import "sort"

// Iterator walks the members of a Bitmap in ascending order. Grounded on
// the teacher's RoaringBitmapIterator (weaviate/storage/iterators.go),
// generalized to plain uint32 values (no term/frequency bookkeeping, which
// moves to the query package's cursors) and given an Advance method for
// leapfrog-style conjunction evaluation.
type Iterator struct {
	keys      []uint16
	bitmap    *Bitmap
	keyIdx    int
	values    []uint16 // materialized low-16-bit values of the current container, ascending
	valueIdx  int
	current   uint32
	valid     bool
	exhausted bool
}

// NewIterator returns an Iterator positioned before the first value of b.
func NewIterator(b *Bitmap) *Iterator {
	keys := make([]uint16, 0, len(b.containers))
	for k := range b.containers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return &Iterator{keys: keys, bitmap: b, keyIdx: -1, valueIdx: -1}
}

// Next advances to the next member and reports whether one exists.
func (it *Iterator) Next() bool {
	if it.exhausted {
		return false
	}
	for {
		if it.keyIdx < 0 || it.valueIdx+1 >= len(it.values) {
			it.keyIdx++
			if it.keyIdx >= len(it.keys) {
				it.exhausted = true
				it.valid = false
				return false
			}
			it.values = containerValues(it.bitmap.containers[it.keys[it.keyIdx]])
			it.valueIdx = -1
			continue
		}
		it.valueIdx++
		it.current = uint32(it.keys[it.keyIdx])<<16 | uint32(it.values[it.valueIdx])
		it.valid = true
		return true
	}
}

// Value returns the current member. Valid only after Next returns true.
func (it *Iterator) Value() uint32 { return it.current }

// Advance moves the iterator to the first member >= target, returning
// false if none exists. Used by leapfrog conjunction evaluation to skip
// runs of non-matching ordinals without a full linear scan.
func (it *Iterator) Advance(target uint32) bool {
	if !it.valid && !it.Next() {
		return false
	}
	for it.current < target {
		if !it.Next() {
			return false
		}
	}
	return true
}

func containerValues(c Container) []uint16 {
	switch c := c.(type) {
	case *ArrayContainer:
		return c.values
	case *BitmapContainer:
		var out []uint16
		for i, word := range c.Bitmap {
			if word == 0 {
				continue
			}
			for bit := 0; bit < 64; bit++ {
				if word&(1<<bit) != 0 {
					out = append(out, uint16(i*64+bit))
				}
			}
		}
		return out
	default:
		return nil
	}
}

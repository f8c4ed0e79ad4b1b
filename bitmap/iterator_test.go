package bitmap

import "testing"

func TestIteratorWalksAscending(t *testing.T) {
	bm := New()
	values := []uint32{3, 7, 42, 1000, 70000, 70001}
	for _, v := range values {
		bm.Add(v)
	}

	it := NewIterator(bm)
	var seen []uint32
	for it.Next() {
		seen = append(seen, it.Value())
	}

	if len(seen) != len(values) {
		t.Fatalf("expected %d values, got %d", len(values), len(seen))
	}
	for i, v := range values {
		if seen[i] != v {
			t.Errorf("position %d: expected %d, got %d", i, v, seen[i])
		}
	}
}

func TestIteratorAdvance(t *testing.T) {
	bm := New()
	for _, v := range []uint32{1, 5, 9, 20, 21} {
		bm.Add(v)
	}

	it := NewIterator(bm)
	if !it.Advance(9) {
		t.Fatal("expected Advance(9) to find a match")
	}
	if it.Value() != 9 {
		t.Errorf("expected 9, got %d", it.Value())
	}

	if !it.Advance(10) {
		t.Fatal("expected Advance(10) to land on 20")
	}
	if it.Value() != 20 {
		t.Errorf("expected 20, got %d", it.Value())
	}

	if it.Advance(1000) {
		t.Error("expected Advance past the last value to fail")
	}
}

func TestIteratorAdvanceBeforeNext(t *testing.T) {
	bm := New()
	bm.Add(5)
	bm.Add(15)

	it := NewIterator(bm)
	if !it.Advance(0) {
		t.Fatal("expected Advance on a fresh iterator to behave like Next")
	}
	if it.Value() != 5 {
		t.Errorf("expected 5, got %d", it.Value())
	}
}

func TestIteratorEmptyBitmap(t *testing.T) {
	it := NewIterator(New())
	if it.Next() {
		t.Error("expected Next on an empty bitmap to return false")
	}
}

package bitmap

import (
	"bytes"
	"testing"
)

func TestArrayContainerSerializeRoundTripBelowDeltaMinLen(t *testing.T) {
	ac := NewArrayContainer()
	for _, v := range []uint16{1, 2, 3, 100} {
		ac.Add(v)
	}

	var buf bytes.Buffer
	if err := ac.Serialize(&buf); err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got := NewArrayContainer()
	if err := got.Deserialize(&buf); err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got.Cardinality() != ac.Cardinality() {
		t.Fatalf("cardinality: want %d got %d", ac.Cardinality(), got.Cardinality())
	}
	for _, v := range []uint16{1, 2, 3, 100} {
		if !got.Contains(v) {
			t.Errorf("expected %d to round-trip", v)
		}
	}
}

func TestArrayContainerSerializeRoundTripAboveDeltaMinLen(t *testing.T) {
	ac := NewArrayContainer()
	for i := uint16(0); i < arrayDeltaMinLen+50; i++ {
		ac.Add(i * 3)
	}

	var buf bytes.Buffer
	if err := ac.Serialize(&buf); err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got := NewArrayContainer()
	if err := got.Deserialize(&buf); err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got.Cardinality() != ac.Cardinality() {
		t.Fatalf("cardinality: want %d got %d", ac.Cardinality(), got.Cardinality())
	}
	for i := uint16(0); i < arrayDeltaMinLen+50; i++ {
		if !got.Contains(i * 3) {
			t.Errorf("expected %d to round-trip", i*3)
		}
	}
}

func TestBitmapContainerSerializeRoundTrip(t *testing.T) {
	bc := NewBitmapContainer()
	for _, v := range []uint16{0, 1, 64, 65, 5000, 65535} {
		bc.Add(v)
	}

	var buf bytes.Buffer
	if err := bc.Serialize(&buf); err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got := NewBitmapContainer()
	if err := got.Deserialize(&buf); err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got.Cardinality() != bc.Cardinality() {
		t.Fatalf("cardinality: want %d got %d", bc.Cardinality(), got.Cardinality())
	}
	for _, v := range []uint16{0, 1, 64, 65, 5000, 65535} {
		if !got.Contains(v) {
			t.Errorf("expected %d to round-trip", v)
		}
	}
}

func TestArrayContainerConvertsToBitmapContainerPastThreshold(t *testing.T) {
	bm := New()
	for i := uint32(0); i < ConversionThreshold+10; i++ {
		bm.Add(i)
	}
	if bm.Cardinality() != int(ConversionThreshold+10) {
		t.Fatalf("expected %d members, got %d", ConversionThreshold+10, bm.Cardinality())
	}
	for i := uint32(0); i < ConversionThreshold+10; i++ {
		if !bm.Contains(i) {
			t.Errorf("expected %d to be a member", i)
		}
	}
}

func TestBitmapSerializeRoundTrip(t *testing.T) {
	bm := New()
	for _, v := range []uint32{0, 5, 70000, ConversionThreshold + 100} {
		bm.Add(v)
	}

	var buf bytes.Buffer
	if err := bm.Serialize(&buf); err != nil {
		t.Fatalf("serialize: %v", err)
	}

	got := New()
	if err := got.Deserialize(&buf); err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if got.Cardinality() != bm.Cardinality() {
		t.Fatalf("cardinality: want %d got %d", bm.Cardinality(), got.Cardinality())
	}
	for _, v := range []uint32{0, 5, 70000, ConversionThreshold + 100} {
		if !got.Contains(v) {
			t.Errorf("expected %d to round-trip", v)
		}
	}
}

func TestBitmapUnionAndIntersection(t *testing.T) {
	a := New()
	for _, v := range []uint32{1, 2, 3, 70000} {
		a.Add(v)
	}
	b := New()
	for _, v := range []uint32{2, 3, 4, 70000} {
		b.Add(v)
	}

	union := a.Union(b)
	for _, v := range []uint32{1, 2, 3, 4, 70000} {
		if !union.Contains(v) {
			t.Errorf("expected union to contain %d", v)
		}
	}
	if union.Cardinality() != 5 {
		t.Fatalf("expected union cardinality 5, got %d", union.Cardinality())
	}

	intersection := a.Intersection(b)
	for _, v := range []uint32{2, 3, 70000} {
		if !intersection.Contains(v) {
			t.Errorf("expected intersection to contain %d", v)
		}
	}
	if intersection.Contains(1) || intersection.Contains(4) {
		t.Fatal("intersection must not contain values unique to either operand")
	}
}

func TestBitmapClearRemovesValueOnly(t *testing.T) {
	bm := New()
	for _, v := range []uint32{1, 2, 3} {
		bm.Add(v)
	}
	bm.Clear(2)

	if bm.Contains(2) {
		t.Fatal("expected 2 to be cleared")
	}
	if !bm.Contains(1) || !bm.Contains(3) {
		t.Fatal("expected siblings of the cleared value to remain")
	}
	if bm.Cardinality() != 2 {
		t.Fatalf("expected cardinality 2, got %d", bm.Cardinality())
	}
}

package term

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Term{
		String("hello"),
		String(""),
		Int64(42),
		Int64(-42),
		Int64(0),
		Boolean(true),
		Boolean(false),
		Datetime(1234567890),
		Datetime(-1),
	}
	for _, tc := range cases {
		decoded, err := Decode(tc.Encode())
		if err != nil {
			t.Fatalf("Decode(%v): %v", tc, err)
		}
		if decoded != tc {
			t.Errorf("round trip mismatch: original %+v, decoded %+v", tc, decoded)
		}
	}
}

func TestLessOrdersByTagThenValue(t *testing.T) {
	if !String("a").Less(Int64(0)) {
		t.Error("expected string-tagged terms to sort before int-tagged terms")
	}
	if !Int64(-5).Less(Int64(5)) {
		t.Error("expected -5 to sort before 5")
	}
	if Int64(5).Less(Int64(-5)) {
		t.Error("expected 5 to not sort before -5")
	}
	if !String("apple").Less(String("banana")) {
		t.Error("expected lexicographic string ordering")
	}
}

func TestIntegerOrderingAcrossSignBoundary(t *testing.T) {
	values := []int64{-100, -1, 0, 1, 100}
	for i := 0; i < len(values)-1; i++ {
		a, b := Int64(values[i]), Int64(values[i+1])
		if !a.Less(b) {
			t.Errorf("expected %d < %d to hold after encoding", values[i], values[i+1])
		}
	}
}

func TestSelectorMatches(t *testing.T) {
	exact := Selector{Kind: SelectExact, Term: String("cat")}
	if !exact.Matches(String("cat")) {
		t.Error("expected exact selector to match identical term")
	}
	if exact.Matches(String("dog")) {
		t.Error("expected exact selector to reject different term")
	}

	prefix := Selector{Kind: SelectPrefix, Pfx: []byte("data")}
	if !prefix.Matches(String("database")) {
		t.Error("expected prefix selector to match a term starting with the prefix")
	}
	if prefix.Matches(String("dat")) {
		t.Error("expected prefix selector to reject a term shorter than the prefix")
	}

	rng := Selector{Kind: SelectRange, Low: Int64(10), High: Int64(20)}
	if !rng.Matches(Int64(15)) {
		t.Error("expected 15 to be within [10,20]")
	}
	if rng.Matches(Int64(25)) {
		t.Error("expected 25 to be outside [10,20]")
	}
}

func TestDecodeRejectsEmptyAndUnknownTag(t *testing.T) {
	if _, err := Decode(nil); err == nil {
		t.Error("expected error decoding empty bytes")
	}
	if _, err := Decode([]byte{0xFF}); err == nil {
		t.Error("expected error decoding unknown tag byte")
	}
}

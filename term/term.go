// Package term defines the typed term value, its canonical byte encoding,
// and the dense integer reference issued to each distinct term by the
// term dictionary.
package term

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Kind identifies which variant of Term is populated.
type Kind uint8

const (
	// KindInvalid marks a zero-value Term; never stored.
	KindInvalid Kind = iota
	KindString
	KindInt
	KindBool
	KindDatetime
)

// Tag bytes used as the first byte of a Term's canonical encoding. Lexicographic
// ordering of tag bytes establishes a total order across variants.
const (
	tagString   byte = 0x01
	tagInt      byte = 0x02
	tagBool     byte = 0x03
	tagDatetime byte = 0x04
)

// Term is a typed atomic value, comparable for equality and ordered by its
// canonical byte representation (Encode). All fields are exported so Term
// is usable as a map key.
type Term struct {
	Kind Kind
	Str  string
	Int  int64  // also backs Datetime (epoch nanoseconds)
	Bool bool
}

// String builds a string-valued Term.
func String(s string) Term { return Term{Kind: KindString, Str: s} }

// Int64 builds an integer-valued Term.
func Int64(v int64) Term { return Term{Kind: KindInt, Int: v} }

// Boolean builds a boolean-valued Term.
func Boolean(v bool) Term { return Term{Kind: KindBool, Bool: v} }

// Datetime builds a datetime-valued Term from epoch nanoseconds.
func Datetime(nanos int64) Term { return Term{Kind: KindDatetime, Int: nanos} }

// Encode returns the canonical, order-preserving byte representation used
// both as the term-dictionary key and as KV key suffixes (spec.md §4.1).
func (t Term) Encode() []byte {
	switch t.Kind {
	case KindString:
		buf := make([]byte, 0, 1+len(t.Str))
		buf = append(buf, tagString)
		return append(buf, t.Str...)
	case KindInt:
		buf := make([]byte, 9)
		buf[0] = tagInt
		binary.BigEndian.PutUint64(buf[1:], flipSign(uint64(t.Int)))
		return buf
	case KindBool:
		b := byte(0x00)
		if t.Bool {
			b = 0x01
		}
		return []byte{tagBool, b}
	case KindDatetime:
		buf := make([]byte, 9)
		buf[0] = tagDatetime
		binary.BigEndian.PutUint64(buf[1:], flipSign(uint64(t.Int)))
		return buf
	default:
		return nil
	}
}

// flipSign maps a two's-complement int64 (reinterpreted as uint64) onto an
// order-preserving uint64 by flipping the sign bit: negative numbers sort
// before non-negative ones once compared as unsigned big-endian bytes.
func flipSign(bits uint64) uint64 {
	return bits ^ (uint64(1) << 63)
}

// Decode parses a canonical encoding produced by Encode back into a Term.
func Decode(b []byte) (Term, error) {
	if len(b) == 0 {
		return Term{}, fmt.Errorf("term: empty encoding")
	}
	switch b[0] {
	case tagString:
		return Term{Kind: KindString, Str: string(b[1:])}, nil
	case tagInt:
		if len(b) != 9 {
			return Term{}, fmt.Errorf("term: malformed integer encoding")
		}
		v := flipSign(binary.BigEndian.Uint64(b[1:]))
		return Term{Kind: KindInt, Int: int64(v)}, nil
	case tagBool:
		if len(b) != 2 {
			return Term{}, fmt.Errorf("term: malformed boolean encoding")
		}
		return Term{Kind: KindBool, Bool: b[1] != 0}, nil
	case tagDatetime:
		if len(b) != 9 {
			return Term{}, fmt.Errorf("term: malformed datetime encoding")
		}
		v := flipSign(binary.BigEndian.Uint64(b[1:]))
		return Term{Kind: KindDatetime, Int: int64(v)}, nil
	default:
		return Term{}, fmt.Errorf("term: unknown tag byte 0x%02x", b[0])
	}
}

// Less reports whether t sorts before other under the canonical byte order.
func (t Term) Less(other Term) bool {
	a, b := t.Encode(), other.Encode()
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func (t Term) String() string {
	switch t.Kind {
	case KindString:
		return t.Str
	case KindInt:
		return fmt.Sprintf("%d", t.Int)
	case KindBool:
		return fmt.Sprintf("%t", t.Bool)
	case KindDatetime:
		return fmt.Sprintf("dt:%d", t.Int)
	default:
		return "<invalid-term>"
	}
}

// Ref is a non-zero identifier for a term, unique for the lifetime of an
// index. Ref(0) is reserved and never issued by the dictionary.
type Ref uint32

// Invalid is the reserved, never-issued term reference.
const Invalid Ref = 0

// Selector describes a predicate over terms used at query compile time.
type Selector struct {
	Kind SelectorKind
	Term Term   // for SelectExact
	Low  Term   // for SelectRange (inclusive)
	High Term   // for SelectRange (inclusive)
	Pfx  []byte // for SelectPrefix, the raw encoded prefix bytes (post tag byte)
}

// SelectorKind enumerates the TermSelector variants from spec.md §4.6.
type SelectorKind uint8

const (
	SelectExact SelectorKind = iota
	SelectPrefix
	SelectRange
	SelectAll
)

// Matches reports whether t satisfies the selector. Used by in-memory
// fallback scans; the dictionary's optimized Select uses the same logic
// against its ordered map.
func (s Selector) Matches(t Term) bool {
	switch s.Kind {
	case SelectExact:
		return t == s.Term
	case SelectPrefix:
		enc := t.Encode()
		if len(enc) < 1 {
			return false
		}
		body := enc[1:]
		if len(body) < len(s.Pfx) {
			return false
		}
		for i, b := range s.Pfx {
			if body[i] != b {
				return false
			}
		}
		return true
	case SelectRange:
		return !t.Less(s.Low) && !s.High.Less(t)
	case SelectAll:
		return true
	default:
		return false
	}
}

// MaxUint16Ordinal is the largest valid ordinal within a segment (u16::MAX).
const MaxUint16Ordinal = math.MaxUint16

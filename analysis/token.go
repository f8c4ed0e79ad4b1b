// Package analysis implements the tokenizer/filter pipeline that turns raw
// field text into a stream of positioned terms (spec.md §4.2). Grounded on
// the teacher's hand-rolled scanning in weaviate/fetcher (which only ever
// split on whitespace) generalized into a proper Unicode-aware pipeline
// using the retrieval pack's segmentation and normalization libraries.
package analysis

import "github.com/scampagna/ftsearch/term"

// Token is one analyzed unit: a term plus its position within the field
// being analyzed (spec.md §3 "Token").
type Token struct {
	Term     term.Term
	Position uint32
}

// TokenStream is a lazy, finite, non-restartable sequence of tokens
// (spec.md §4.2). Callers must drain it with Next until it returns false.
type TokenStream interface {
	Next() (Token, bool)
}

// sliceStream adapts a pre-computed slice of tokens to TokenStream; used by
// tokenizers/filters whose output is naturally produced all at once (e.g.
// n-gram expansion, which must see a whole word before it can emit grams).
type sliceStream struct {
	tokens []Token
	pos    int
}

func newSliceStream(tokens []Token) *sliceStream { return &sliceStream{tokens: tokens} }

func (s *sliceStream) Next() (Token, bool) {
	if s.pos >= len(s.tokens) {
		return Token{}, false
	}
	t := s.tokens[s.pos]
	s.pos++
	return t, true
}

// funcStream adapts a pull function to TokenStream, used by tokenizers that
// can genuinely produce tokens one at a time without look-ahead.
type funcStream struct {
	next func() (Token, bool)
}

func (s *funcStream) Next() (Token, bool) { return s.next() }

// Collect drains a TokenStream into a slice. Intended for tests and for the
// document preparer, which must materialize the stream into the analyzed
// document anyway (spec.md §4.3).
func Collect(ts TokenStream) []Token {
	var out []Token
	for {
		tok, ok := ts.Next()
		if !ok {
			return out
		}
		out = append(out, tok)
	}
}

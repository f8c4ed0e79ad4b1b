package analysis

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/scampagna/ftsearch/term"
)

// Filter transforms a TokenStream into another TokenStream: dropping,
// rewriting, or expanding tokens. Filters are chained in declaration order
// by an Analyzer (spec.md §4.2).
type Filter interface {
	Apply(TokenStream) TokenStream
}

// mapStream applies fn to every string-kind token, passing non-string
// tokens (the analysis pipeline only ever produces string-kind tokens, but
// the guard keeps filters total) through unchanged, and drops tokens for
// which fn returns ok=false.
func mapStream(in TokenStream, fn func(string) (string, bool)) TokenStream {
	return &funcStream{next: func() (Token, bool) {
		for {
			tok, ok := in.Next()
			if !ok {
				return Token{}, false
			}
			if tok.Term.Kind != term.KindString {
				return tok, true
			}
			s, keep := fn(tok.Term.Str)
			if !keep {
				continue
			}
			tok.Term = term.String(s)
			return tok, true
		}
	}}
}

// LowercaseFilter applies Unicode default case folding (golang.org/x/text/cases.Fold),
// not simple strings.ToLower, per spec.md §4.2's requirement for
// locale-independent, full Unicode case folding (e.g. German ß ↔ ss).
type LowercaseFilter struct{}

func (LowercaseFilter) Apply(in TokenStream) TokenStream {
	folder := cases.Fold()
	return mapStream(in, func(s string) (string, bool) {
		return folder.String(s), true
	})
}

// ASCIIFoldingFilter strips diacritical marks by decomposing to NFD and
// removing combining marks (golang.org/x/text/unicode/norm + runes),
// folding e.g. "café" to "cafe" (spec.md §4.2).
type ASCIIFoldingFilter struct{}

func (ASCIIFoldingFilter) Apply(in TokenStream) TokenStream {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(combiningMarks)), norm.NFC)
	return mapStream(in, func(s string) (string, bool) {
		out, _, err := transform.String(t, s)
		if err != nil {
			return s, true
		}
		return out, true
	})
}

var combiningMarks = unicode.Mn

// StopFilter drops tokens whose string value is in the configured stop
// word set (case-sensitive match against already-lowercased input, as
// StopFilter is expected to run after LowercaseFilter in the chain).
type StopFilter struct {
	Words map[string]struct{}
}

// NewStopFilter builds a StopFilter from a word list.
func NewStopFilter(words []string) StopFilter {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return StopFilter{Words: set}
}

func (f StopFilter) Apply(in TokenStream) TokenStream {
	return mapStream(in, func(s string) (string, bool) {
		_, stop := f.Words[s]
		return s, !stop
	})
}

// NGramFilter expands each incoming token into its n-grams, preserving the
// source token's position (spec.md §4.2). Distinct from NGramTokenizer,
// which performs its own word segmentation; NGramFilter instead sits
// downstream of another tokenizer (e.g. StandardTokenizer) in a custom
// analyzer chain.
type NGramFilter struct {
	Min, Max int
	Edge     Edge
}

func (f NGramFilter) Apply(in TokenStream) TokenStream {
	return &funcStream{next: tokenExpander(in, func(s string) []string {
		return ngramsOf(s, f.Min, f.Max, f.Edge)
	})}
}

// tokenExpander returns a pull function that, for each source token,
// buffers its expansion and serves grams one at a time before pulling the
// next source token.
func tokenExpander(in TokenStream, expand func(string) []string) func() (Token, bool) {
	var pending []string
	var pendingPos uint32
	return func() (Token, bool) {
		for len(pending) == 0 {
			tok, ok := in.Next()
			if !ok {
				return Token{}, false
			}
			if tok.Term.Kind != term.KindString {
				return tok, true
			}
			pending = expand(tok.Term.Str)
			pendingPos = tok.Position
		}
		gram := pending[0]
		pending = pending[1:]
		return Token{Term: term.String(gram), Position: pendingPos}, true
	}
}

// TrimFilter strips leading/trailing whitespace from each token; grounded
// on the teacher's ad-hoc strings.TrimSpace calls in weaviate/fetcher.
type TrimFilter struct{}

func (TrimFilter) Apply(in TokenStream) TokenStream {
	return mapStream(in, func(s string) (string, bool) {
		return strings.TrimSpace(s), true
	})
}

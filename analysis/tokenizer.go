package analysis

import (
	"bufio"
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/v2/words"
	"github.com/scampagna/ftsearch/term"
)

// Tokenizer splits raw text into a TokenStream of positioned terms.
type Tokenizer interface {
	Tokenize(text string) TokenStream
}

// Edge controls which n-grams NGramTokenizer/NGramFilter emit relative to
// the anchoring ends of a word (spec.md §4.2).
type Edge uint8

const (
	EdgeNeither Edge = iota
	EdgeLeft
	EdgeRight
)

// StandardTokenizer segments text into Unicode words (UAX #29 word
// boundaries) via github.com/clipperhouse/uax29/v2, emitting one token per
// word with positions starting at 1 and incrementing per word (spec.md
// §4.2). Segments that contain no letter/number/underscore (pure
// punctuation or whitespace runs, which UAX#29 also yields as segments)
// are dropped.
type StandardTokenizer struct{}

func (StandardTokenizer) Tokenize(text string) TokenStream {
	seg := words.NewSegmenter([]byte(text))
	position := uint32(0)
	return &funcStream{next: func() (Token, bool) {
		for seg.Next() {
			word := string(seg.Value())
			if !isWordlike(word) {
				continue
			}
			position++
			return Token{Term: term.String(word), Position: position}, true
		}
		return Token{}, false
	}}
}

func isWordlike(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '_' {
			return true
		}
	}
	return false
}

// WhitespaceTokenizer splits on Unicode whitespace only, with no further
// normalization; positions start at 1 and increment per word. Distinct
// from StandardTokenizer because it does not apply UAX#29 word-boundary
// rules (punctuation stays attached to neighboring runes), matching
// spec.md §4.2's requirement for a minimal, fast tokenizer.
type WhitespaceTokenizer struct{}

func (WhitespaceTokenizer) Tokenize(text string) TokenStream {
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Split(bufio.ScanWords)
	position := uint32(0)
	return &funcStream{next: func() (Token, bool) {
		if !scanner.Scan() {
			return Token{}, false
		}
		position++
		return Token{Term: term.String(scanner.Text()), Position: position}, true
	}}
}

// KeywordTokenizer emits the entire input as a single token at position 1,
// used by the `keyword_analyzer` for exact-match fields.
type KeywordTokenizer struct{}

func (KeywordTokenizer) Tokenize(text string) TokenStream {
	if text == "" {
		return newSliceStream(nil)
	}
	return newSliceStream([]Token{{Term: term.String(text), Position: 1}})
}

// NGramTokenizer splits text into Unicode words (reusing StandardTokenizer's
// segmentation) and expands each word directly into n-grams, sharing the
// source word's position (spec.md §4.2's "Position counter... all n-grams
// of a word share that word's position"). Used directly by
// `edgengram_analyzer`, which does not layer a separate NGramFilter on top
// of StandardTokenizer.
type NGramTokenizer struct {
	Min, Max int
	Edge     Edge
}

func (n NGramTokenizer) Tokenize(text string) TokenStream {
	words := Collect(StandardTokenizer{}.Tokenize(text))
	var out []Token
	for _, w := range words {
		for _, gram := range ngramsOf(w.Term.Str, n.Min, n.Max, n.Edge) {
			out = append(out, Token{Term: term.String(gram), Position: w.Position})
		}
	}
	return newSliceStream(out)
}

// ngramsOf returns the substrings of s (by grapheme/rune count) with
// lengths in [min,max] per the anchoring rules of edge (spec.md §4.2):
//
//   - Neither: every substring of lengths min..=max, in left-to-right start
//     order, then by ascending length per start index.
//   - Left: only substrings anchored at index 0.
//   - Right: only substrings ending at the word's final rune, ascending
//     length.
func ngramsOf(s string, min, max int, edge Edge) []string {
	runes := []rune(s)
	n := len(runes)
	if n == 0 || min < 1 {
		return nil
	}
	if max > n {
		max = n
	}
	if min > max {
		return nil
	}

	var out []string
	switch edge {
	case EdgeLeft:
		for l := min; l <= max; l++ {
			out = append(out, string(runes[0:l]))
		}
	case EdgeRight:
		for l := min; l <= max; l++ {
			out = append(out, string(runes[n-l:n]))
		}
	default: // EdgeNeither
		for start := 0; start <= n-min; start++ {
			upper := max
			if start+upper > n {
				upper = n - start
			}
			for l := min; l <= upper; l++ {
				out = append(out, string(runes[start:start+l]))
			}
		}
	}
	return out
}

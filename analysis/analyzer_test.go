package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scampagna/ftsearch/term"
)

func tokenStrings(toks []Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Term.Str
	}
	return out
}

func TestStandardTokenizerLowercasesAndFolds(t *testing.T) {
	reg := NewRegistry()
	a, err := reg.Get("standard")
	require.NoError(t, err)

	toks := a.Analyze("Café DATABASE")
	assert.Equal(t, []string{"cafe", "database"}, tokenStrings(toks))
	assert.Equal(t, uint32(1), toks[0].Position)
	assert.Equal(t, uint32(2), toks[1].Position)
}

func TestStandardTokenizerDropsPunctuation(t *testing.T) {
	reg := NewRegistry()
	a, _ := reg.Get("standard")

	toks := a.Analyze("hello, world!")
	assert.Equal(t, []string{"hello", "world"}, tokenStrings(toks))
}

func TestWhitespaceAnalyzerKeepsPunctuationAttached(t *testing.T) {
	reg := NewRegistry()
	a, err := reg.Get("whitespace_analyzer")
	require.NoError(t, err)

	toks := a.Analyze("hello, world!")
	assert.Equal(t, []string{"hello,", "world!"}, tokenStrings(toks))
}

func TestKeywordAnalyzerEmitsSingleToken(t *testing.T) {
	reg := NewRegistry()
	a, err := reg.Get("keyword_analyzer")
	require.NoError(t, err)

	toks := a.Analyze("US-WEST-1")
	require.Len(t, toks, 1)
	assert.Equal(t, "US-WEST-1", toks[0].Term.Str)
	assert.Equal(t, uint32(1), toks[0].Position)
}

func TestKeywordAnalyzerEmptyText(t *testing.T) {
	reg := NewRegistry()
	a, _ := reg.Get("keyword_analyzer")
	assert.Empty(t, a.Analyze(""))
}

func TestEdgeNgramAnalyzerSharesPositionAcrossGrams(t *testing.T) {
	reg := NewRegistry()
	a, err := reg.Get("edgengram_analyzer")
	require.NoError(t, err)

	toks := a.Analyze("search")
	assert.Equal(t, []string{"se", "sea", "sear", "searc", "search"}, tokenStrings(toks))
	for _, tok := range toks {
		assert.Equal(t, uint32(1), tok.Position)
	}
}

func TestGetUnknownAnalyzer(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get("nonexistent")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownAnalyzer)
}

func TestStopFilterDropsConfiguredWords(t *testing.T) {
	filter := NewStopFilter([]string{"the", "a"})
	in := newSliceStream([]Token{
		{Term: term.String("the"), Position: 1},
		{Term: term.String("cat"), Position: 2},
		{Term: term.String("a"), Position: 3},
		{Term: term.String("dog"), Position: 4},
	})
	out := Collect(filter.Apply(in))
	assert.Equal(t, []string{"cat", "dog"}, tokenStrings(out))
}

func TestNgramsOfEdgeVariants(t *testing.T) {
	assert.Equal(t, []string{"ab", "abc"}, ngramsOf("abc", 2, 3, EdgeLeft))
	assert.Equal(t, []string{"bc", "abc"}, ngramsOf("abc", 2, 3, EdgeRight))
	assert.Equal(t, []string{"ab", "abc", "bc"}, ngramsOf("abc", 2, 3, EdgeNeither))
}

func TestNgramsOfShorterThanMin(t *testing.T) {
	assert.Nil(t, ngramsOf("a", 2, 10, EdgeLeft))
}

package analysis

import "fmt"

// Analyzer is an ordered tokenizer + filter chain, identified by name in
// the schema mapping (spec.md §4.2).
type Analyzer struct {
	Name      string
	Tokenizer Tokenizer
	Filters   []Filter
}

// Analyze runs text through the tokenizer then each filter in order,
// returning the materialized token slice.
func (a Analyzer) Analyze(text string) []Token {
	stream := a.Tokenizer.Tokenize(text)
	for _, f := range a.Filters {
		stream = f.Apply(stream)
	}
	return Collect(stream)
}

// ErrUnknownAnalyzer is returned by Registry.Get for an unregistered name.
var ErrUnknownAnalyzer = fmt.Errorf("analysis: unknown analyzer")

// Registry holds the named analyzers available to a field mapping. Not
// safe for concurrent writes after construction; analyzers are registered
// once at index-create time and only read afterward (mirrors schema.Schema's
// write-once-then-read-mostly field registry).
type Registry struct {
	byName map[string]Analyzer
}

// NewRegistry returns a Registry pre-populated with the four built-in
// analyzers required by spec.md §4.2: "standard", "edgengram_analyzer",
// "whitespace_analyzer" and "keyword_analyzer".
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]Analyzer)}
	r.Register(Analyzer{
		Name:      "standard",
		Tokenizer: StandardTokenizer{},
		Filters:   []Filter{LowercaseFilter{}, ASCIIFoldingFilter{}},
	})
	r.Register(Analyzer{
		Name:      "edgengram_analyzer",
		Tokenizer: NGramTokenizer{Min: 2, Max: 15, Edge: EdgeLeft},
		Filters:   []Filter{LowercaseFilter{}, ASCIIFoldingFilter{}},
	})
	r.Register(Analyzer{
		Name:      "whitespace_analyzer",
		Tokenizer: WhitespaceTokenizer{},
		Filters:   []Filter{LowercaseFilter{}},
	})
	r.Register(Analyzer{
		Name:      "keyword_analyzer",
		Tokenizer: KeywordTokenizer{},
		Filters:   nil,
	})
	return r
}

// Register installs or replaces a named analyzer.
func (r *Registry) Register(a Analyzer) { r.byName[a.Name] = a }

// Get returns the named analyzer, or ErrUnknownAnalyzer if not registered.
func (r *Registry) Get(name string) (Analyzer, error) {
	a, ok := r.byName[name]
	if !ok {
		return Analyzer{}, fmt.Errorf("%w: %q", ErrUnknownAnalyzer, name)
	}
	return a, nil
}

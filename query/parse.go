package query

import (
	"encoding/json"
	"fmt"

	"github.com/scampagna/ftsearch/analysis"
	"github.com/scampagna/ftsearch/document"
	"github.com/scampagna/ftsearch/schema"
	"github.com/scampagna/ftsearch/term"
)

// Parser errors, named per spec.md §4.6's parser error list so the HTTP
// layer can translate them to specific status codes.
var (
	ErrExpectedObject        = fmt.Errorf("query: expected object")
	ErrExpectedArray         = fmt.Errorf("query: expected array")
	ErrExpectedString        = fmt.Errorf("query: expected string")
	ErrExpectedSingleKey     = fmt.Errorf("query: expected a single top-level key")
	ErrUnrecognizedQueryType = fmt.Errorf("query: unrecognized query type")
	ErrInvalidTermValue      = fmt.Errorf("query: invalid term value")
)

// Parser turns the JSON query DSL (spec.md §4.6, a dialect-compatible
// subset of the widely deployed search DSL) into a Query tree, resolving
// field names and analyzers against schema and mapping as it goes.
type Parser struct {
	Schema    *schema.Schema
	Mapping   *schema.Mapping
	Analyzers *analysis.Registry
}

// Parse decodes raw into a Query tree.
func (p *Parser) Parse(raw json.RawMessage) (Query, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Query{}, fmt.Errorf("%w: %v", ErrExpectedObject, err)
	}
	if len(obj) != 1 {
		return Query{}, ErrExpectedSingleKey
	}
	for key, body := range obj {
		switch key {
		case "term":
			return p.parseTerm(body)
		case "terms":
			return p.parseTerms(body)
		case "match":
			return p.parseMatch(body)
		case "prefix":
			return p.parsePrefix(body)
		case "bool":
			return p.parseBool(body)
		case "match_all":
			return MatchAll(), nil
		case "match_none":
			return MatchNone(), nil
		case "filtered":
			return p.parseFiltered(body)
		case "function_score":
			return p.parseFunctionScore(body)
		default:
			return Query{}, fmt.Errorf("%w: %q", ErrUnrecognizedQueryType, key)
		}
	}
	panic("unreachable")
}

func (p *Parser) resolveField(name string) (schema.Def, error) {
	def, ok := p.Schema.FieldByName(name)
	if !ok {
		return schema.Def{}, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return def, nil
}

func (p *Parser) fieldValueTerm(name, value string) (term.Term, schema.Def, error) {
	def, err := p.resolveField(name)
	if err != nil {
		return term.Term{}, def, err
	}
	t, err := document.FieldValueTerm(def.Type, value)
	if err != nil {
		return term.Term{}, def, fmt.Errorf("%w: %v", ErrInvalidTermValue, err)
	}
	return t, def, nil
}

func singleKeyObject(body json.RawMessage) (map[string]json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(body, &m); err != nil || len(m) != 1 {
		return nil, ErrExpectedObject
	}
	return m, nil
}

func (p *Parser) parseTerm(body json.RawMessage) (Query, error) {
	m, err := singleKeyObject(body)
	if err != nil {
		return Query{}, err
	}
	for field, v := range m {
		s, ok := decodeString(v)
		if !ok {
			return Query{}, ErrExpectedString
		}
		t, def, err := p.fieldValueTerm(field, s)
		if err != nil {
			return Query{}, err
		}
		return MatchTerm(def.Name, t, MatchExact, DefaultScorer), nil
	}
	panic("unreachable")
}

func (p *Parser) parseTerms(body json.RawMessage) (Query, error) {
	m, err := singleKeyObject(body)
	if err != nil {
		return Query{}, err
	}
	for field, v := range m {
		var values []string
		if err := json.Unmarshal(v, &values); err != nil {
			return Query{}, ErrExpectedArray
		}
		clauses := make([]Query, 0, len(values))
		for _, s := range values {
			t, def, err := p.fieldValueTerm(field, s)
			if err != nil {
				return Query{}, err
			}
			clauses = append(clauses, MatchTerm(def.Name, t, MatchExact, DefaultScorer))
		}
		if len(clauses) == 0 {
			return MatchNone(), nil
		}
		return Disjunction(clauses...), nil
	}
	panic("unreachable")
}

func (p *Parser) parsePrefix(body json.RawMessage) (Query, error) {
	m, err := singleKeyObject(body)
	if err != nil {
		return Query{}, err
	}
	for field, v := range m {
		s, ok := decodeString(v)
		if !ok {
			return Query{}, ErrExpectedString
		}
		t, def, err := p.fieldValueTerm(field, s)
		if err != nil {
			return Query{}, err
		}
		return MatchTerm(def.Name, t, MatchPrefix, DefaultScorer), nil
	}
	panic("unreachable")
}

// parseMatch analyzes the query text with the field's query analyzer
// (falling back to its index analyzer, then "standard") and ORs a
// MatchTerm leaf per resulting token. Reusing the index analyzer by
// default means an edge-ngram field matches the same way at query time as
// at index time (spec.md §8's edge-ngram prefix-match scenario).
func (p *Parser) parseMatch(body json.RawMessage) (Query, error) {
	m, err := singleKeyObject(body)
	if err != nil {
		return Query{}, err
	}
	for field, v := range m {
		text, ok := decodeString(v)
		if !ok {
			return Query{}, ErrExpectedString
		}
		def, err := p.resolveField(field)
		if err != nil {
			return Query{}, err
		}
		analyzerName := "standard"
		if fm, ok := p.Mapping.Lookup(field); ok {
			switch {
			case fm.QueryAnalyzer != "":
				analyzerName = fm.QueryAnalyzer
			case fm.IndexAnalyzer != "":
				analyzerName = fm.IndexAnalyzer
			}
		}
		a, err := p.Analyzers.Get(analyzerName)
		if err != nil {
			return Query{}, fmt.Errorf("query: %w", err)
		}
		toks := a.Analyze(text)
		clauses := make([]Query, 0, len(toks))
		for _, tok := range toks {
			clauses = append(clauses, MatchTerm(def.Name, tok.Term, MatchExact, DefaultScorer))
		}
		if len(clauses) == 0 {
			return MatchNone(), nil
		}
		return Disjunction(clauses...), nil
	}
	panic("unreachable")
}

func (p *Parser) parseBool(body json.RawMessage) (Query, error) {
	var spec struct {
		Must               []json.RawMessage `json:"must"`
		Should             []json.RawMessage `json:"should"`
		MustNot            []json.RawMessage `json:"must_not"`
		MinimumShouldMatch int               `json:"minimum_should_match"`
	}
	if err := json.Unmarshal(body, &spec); err != nil {
		return Query{}, ErrExpectedObject
	}

	must, err := p.parseAll(spec.Must)
	if err != nil {
		return Query{}, err
	}
	should, err := p.parseAll(spec.Should)
	if err != nil {
		return Query{}, err
	}
	mustNot, err := p.parseAll(spec.MustNot)
	if err != nil {
		return Query{}, err
	}

	var base *Query
	if len(must) > 0 {
		q := Conjunction(must...)
		base = &q
	}

	if len(should) > 0 {
		min := spec.MinimumShouldMatch
		if min <= 0 && base == nil {
			min = 1
		}
		if min > 0 {
			shouldQ := NDisjunction(min, should...)
			if base != nil {
				combined := Conjunction(*base, shouldQ)
				base = &combined
			} else {
				base = &shouldQ
			}
		}
		// When must is non-empty and minimum_should_match is unset, should
		// clauses are accepted syntax but contribute neither filtering nor
		// scoring -- a deliberate simplification documented in DESIGN.md,
		// since the query algebra has no "optional, scores if present"
		// combinator distinct from NDisjunction's all-or-nothing gating.
	}

	if base == nil {
		q := MatchAll()
		base = &q
	}

	if len(mustNot) > 0 {
		excl := Disjunction(mustNot...)
		filtered := Filter(*base, negation(excl))
		base = &filtered
	}

	return *base, nil
}

func (p *Parser) parseAll(bodies []json.RawMessage) ([]Query, error) {
	out := make([]Query, 0, len(bodies))
	for _, b := range bodies {
		q, err := p.Parse(b)
		if err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	return out, nil
}

func (p *Parser) parseFiltered(body json.RawMessage) (Query, error) {
	var spec struct {
		Query  json.RawMessage `json:"query"`
		Filter json.RawMessage `json:"filter"`
	}
	if err := json.Unmarshal(body, &spec); err != nil {
		return Query{}, ErrExpectedObject
	}
	q, err := p.Parse(spec.Query)
	if err != nil {
		return Query{}, err
	}
	f, err := p.Parse(spec.Filter)
	if err != nil {
		return Query{}, err
	}
	// spec.md §4.6: "Filter pushes the filter into its child when the
	// child is a Filter (merge via AND)" -- avoids nesting
	// Filter(Filter(...)) which would otherwise discard the outer
	// predicate's exclusivity.
	if q.Kind == KindFilter {
		merged := Conjunction(*q.Filtered.Predicate, f)
		return Filter(*q.Filtered.Q, merged), nil
	}
	return Filter(q, f), nil
}

func (p *Parser) parseFunctionScore(body json.RawMessage) (Query, error) {
	var spec struct {
		Query     json.RawMessage `json:"query"`
		Boost     float64         `json:"boost"`
		BoostMode string          `json:"boost_mode"`
	}
	if err := json.Unmarshal(body, &spec); err != nil {
		return Query{}, ErrExpectedObject
	}
	q, err := p.Parse(spec.Query)
	if err != nil {
		return Query{}, err
	}
	boost := spec.Boost
	if boost == 0 {
		boost = 1
	}
	switch spec.BoostMode {
	case "", "multiply":
		return Score(q, boost, 0), nil
	case "sum":
		return Score(q, 1, boost), nil
	default:
		return Query{}, fmt.Errorf("%w: boost_mode %q", ErrUnrecognizedQueryType, spec.BoostMode)
	}
}

func decodeString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

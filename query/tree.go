// Package query implements the query algebra, its JSON DSL parser, a
// per-segment cursor-based evaluator, and a top-K collector (spec.md
// §4.6). Grounded on the teacher's weaviate/engine package: the
// heap-based multi-term conjunctive matcher in weaviate/engine/engine.go
// is generalized from one fixed query shape (AND of terms) into the full
// closed query-tree algebra the spec requires, and its min-heap technique
// is reused for Disjunction/NDisjunction evaluation.
package query

import "github.com/scampagna/ftsearch/term"

// Matcher selects which postings a MatchTerm leaf considers.
type Matcher uint8

const (
	MatchExact Matcher = iota
	MatchPrefix
)

// ScorerKind identifies which Scorer variant a MatchTerm leaf uses.
type ScorerKind uint8

const (
	ScorerTF ScorerKind = iota
	ScorerTFIDF
	ScorerConstant
)

// Scorer parametrizes how a MatchTerm leaf turns a hit into a score.
type Scorer struct {
	Kind ScorerKind
	K1   float64 // TFIDF
	B    float64 // TFIDF
	C    float64 // Constant
}

// DefaultScorer is TFIDF{1.2, 0.75}, the query algebra's default
// (spec.md §4.6).
var DefaultScorer = Scorer{Kind: ScorerTFIDF, K1: 1.2, B: 0.75}

// Query is the closed tagged-variant query tree (spec.md §4.6). Exactly
// one of the typed fields is meaningful, selected by Kind.
type Query struct {
	Kind Kind

	// MatchTerm
	Field   string
	Term    term.Term
	Matcher Matcher
	Scorer  Scorer

	// Conjunction / Disjunction / NDisjunction / DisjunctionMax
	Clauses []Query

	// NDisjunction
	MinimumShouldMatch int

	// DisjunctionMax
	TieBreaker float64

	// Filter
	Filtered Filtered

	// Score
	Scored Scored

	// Negation
	Negated *Query
}

// Filtered holds the two sub-trees of a Filter node: Q contributes score,
// Predicate only gates membership.
type Filtered struct {
	Q         *Query
	Predicate *Query
}

// Scored holds a Score node's linear rescoring of its child.
type Scored struct {
	Q   *Query
	Mul float64
	Add float64
}

// Kind enumerates the Query tree's variants.
type Kind uint8

const (
	KindMatchAll Kind = iota
	KindMatchNone
	KindMatchTerm
	KindConjunction
	KindDisjunction
	KindNDisjunction
	KindDisjunctionMax
	KindFilter
	KindScore

	// kindNegation is not part of the spec's closed query-tree algebra; the
	// parser uses it internally to compile a bool query's must_not clauses
	// into a Filter predicate (spec.md §4.6 names must/should/must_not but
	// the published algebra has no standalone negation operator).
	kindNegation
)

// MatchAll returns the query matching every live document with a constant
// score of 1.
func MatchAll() Query { return Query{Kind: KindMatchAll} }

// MatchNone returns the query matching no documents.
func MatchNone() Query { return Query{Kind: KindMatchNone} }

// MatchTerm returns a leaf matching field against t using matcher and
// scorer.
func MatchTerm(field string, t term.Term, matcher Matcher, scorer Scorer) Query {
	return Query{Kind: KindMatchTerm, Field: field, Term: t, Matcher: matcher, Scorer: scorer}
}

// Conjunction returns the AND of clauses.
func Conjunction(clauses ...Query) Query {
	return Query{Kind: KindConjunction, Clauses: clauses}
}

// Disjunction returns the OR of clauses.
func Disjunction(clauses ...Query) Query {
	return Query{Kind: KindDisjunction, Clauses: clauses}
}

// NDisjunction returns the OR of clauses requiring at least
// minimumShouldMatch of them to match.
func NDisjunction(minimumShouldMatch int, clauses ...Query) Query {
	return Query{Kind: KindNDisjunction, Clauses: clauses, MinimumShouldMatch: minimumShouldMatch}
}

// DisjunctionMax returns the max-score-plus-tiebreak union of clauses.
func DisjunctionMax(tieBreaker float64, clauses ...Query) Query {
	return Query{Kind: KindDisjunctionMax, Clauses: clauses, TieBreaker: tieBreaker}
}

// Filter returns a query scored by q but restricted to documents also
// matched by predicate.
func Filter(q, predicate Query) Query {
	return Query{Kind: KindFilter, Filtered: Filtered{Q: &q, Predicate: &predicate}}
}

// Score returns q rescored as q.Score()*mul + add.
func Score(q Query, mul, add float64) Query {
	return Query{Kind: KindScore, Scored: Scored{Q: &q, Mul: mul, Add: add}}
}

// negation returns the query matching every live document q does not
// match. Unexported: only the bool-query compiler in parse.go builds one,
// always as the predicate half of a Filter.
func negation(q Query) Query {
	return Query{Kind: kindNegation, Negated: &q}
}

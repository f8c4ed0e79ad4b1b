// Package document implements the document preparer (spec.md §4.3): it
// coerces a raw JSON document into the typed, analyzed form the segment
// builder consumes. Grounded on the teacher's weaviate/fetcher.JsonDocument
// decoding, generalized from fetcher's single implicit text field into the
// spec's typed, multi-field coercion rules.
package document

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/scampagna/ftsearch/analysis"
	"github.com/scampagna/ftsearch/schema"
	"github.com/scampagna/ftsearch/term"
)

// DefaultPositionGap is inserted between the token streams of successive
// array elements of the same field when none is configured (spec.md §4.3).
const DefaultPositionGap = 100

// Source is an external document as read off the wire: a key plus a JSON
// object of field name to raw value (spec.md §3 "Document (source)").
type Source struct {
	Key    string
	Fields map[string]json.RawMessage
}

// Analyzed is the prepared form the segment builder consumes: the external
// key, a token sequence per indexed field, and raw bytes per stored field
// (spec.md §3 "Document (analyzed)").
type Analyzed struct {
	Key     string
	Indexed map[schema.Ref][]analysis.Token
	Stored  map[schema.Ref]json.RawMessage
}

// ErrFieldCoercion is returned when a JSON value cannot be coerced to its
// mapped field's type; it aborts preparation of the whole document
// (spec.md §4.3).
var ErrFieldCoercion = fmt.Errorf("document: field coercion failed")

// Preparer turns Source documents into Analyzed ones using a schema, a
// field mapping, and an analyzer registry.
type Preparer struct {
	Schema    *schema.Schema
	Mapping   *schema.Mapping
	Analyzers *analysis.Registry
}

// NewPreparer builds a Preparer from its three collaborators.
func NewPreparer(s *schema.Schema, m *schema.Mapping, a *analysis.Registry) *Preparer {
	return &Preparer{Schema: s, Mapping: m, Analyzers: a}
}

// Prepare coerces and analyzes src, skipping JSON fields the mapping does
// not recognize (spec.md §4.3's "ignored silently").
func (p *Preparer) Prepare(src Source) (Analyzed, error) {
	out := Analyzed{
		Key:     src.Key,
		Indexed: make(map[schema.Ref][]analysis.Token),
		Stored:  make(map[schema.Ref]json.RawMessage),
	}

	for name, raw := range src.Fields {
		fm, ok := p.Mapping.Lookup(name)
		if !ok {
			continue // unknown field: ignored silently
		}
		def, ok := p.Schema.FieldByRef(fm.Field)
		if !ok {
			continue
		}

		if def.Flags.Has(schema.Stored) {
			out.Stored[def.Ref] = raw
		}

		if !def.Flags.Has(schema.Indexed) {
			continue
		}

		strs, err := coerceToStrings(raw, def.Type)
		if err != nil {
			return Analyzed{}, fmt.Errorf("%w: field %q: %w", ErrFieldCoercion, name, err)
		}

		analyzerName := fm.IndexAnalyzer
		if analyzerName == "" {
			analyzerName = "standard"
		}
		analyzer, err := p.Analyzers.Get(analyzerName)
		if err != nil {
			return Analyzed{}, fmt.Errorf("document: field %q: %w", name, err)
		}

		gap := fm.PositionGap
		if gap == 0 {
			gap = DefaultPositionGap
		}

		out.Indexed[def.Ref] = append(out.Indexed[def.Ref], analyzeConcatenated(analyzer, strs, gap)...)
	}

	return out, nil
}

// analyzeConcatenated analyzes each element of strs independently and
// concatenates the resulting token streams, inserting gap between the last
// position of one element and the first position of the next (spec.md
// §4.3).
func analyzeConcatenated(a analysis.Analyzer, strs []string, gap uint32) []analysis.Token {
	var out []analysis.Token
	var offset uint32
	for _, s := range strs {
		toks := a.Analyze(s)
		var maxPos uint32
		for _, t := range toks {
			t.Position += offset
			out = append(out, t)
			if t.Position > maxPos {
				maxPos = t.Position
			}
		}
		offset = maxPos + gap - 1
	}
	return out
}

// coerceToStrings coerces raw into the string(s) to feed the analyzer,
// according to typ's coercion rules (spec.md §4.3). text/keyword accept a
// string or array of strings; integer accepts a number or numeric string;
// boolean accepts bool or "true"/"false"; datetime accepts RFC 3339 or an
// epoch number, always rendered back to a string for the tokenizer.
func coerceToStrings(raw json.RawMessage, typ schema.FieldType) ([]string, error) {
	switch typ {
	case schema.Text, schema.Keyword:
		if s, ok := decodeString(raw); ok {
			return []string{s}, nil
		}
		if arr, ok := decodeStringArray(raw); ok {
			return arr, nil
		}
		return nil, fmt.Errorf("expected string or string array")

	case schema.Integer:
		if n, ok := decodeNumber(raw); ok {
			return []string{fmt.Sprintf("%d", int64(n))}, nil
		}
		if s, ok := decodeString(raw); ok {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("not a numeric string: %q", s)
			}
			return []string{fmt.Sprintf("%d", v)}, nil
		}
		return nil, fmt.Errorf("expected number or numeric string")

	case schema.Boolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil {
			return []string{fmt.Sprintf("%t", b)}, nil
		}
		if s, ok := decodeString(raw); ok {
			switch s {
			case "true", "false":
				return []string{s}, nil
			}
		}
		return nil, fmt.Errorf("expected bool or \"true\"/\"false\"")

	case schema.Datetime:
		if s, ok := decodeString(raw); ok {
			if _, err := time.Parse(time.RFC3339, s); err != nil {
				return nil, fmt.Errorf("not RFC 3339: %q", s)
			}
			return []string{s}, nil
		}
		if n, ok := decodeNumber(raw); ok {
			t := time.Unix(0, int64(n)).UTC()
			return []string{t.Format(time.RFC3339Nano)}, nil
		}
		return nil, fmt.Errorf("expected RFC 3339 string or epoch number")

	default:
		return nil, fmt.Errorf("unsupported field type %v", typ)
	}
}

func decodeString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func decodeStringArray(raw json.RawMessage) ([]string, bool) {
	var arr []string
	if err := json.Unmarshal(raw, &arr); err != nil {
		return nil, false
	}
	return arr, true
}

func decodeNumber(raw json.RawMessage) (float64, bool) {
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

// FieldValueTerm converts a coerced field value string into the typed
// term.Term used by the posting key (used at query-compile time for
// keyword/integer/boolean/datetime exact matches, e.g. terms filters).
func FieldValueTerm(typ schema.FieldType, s string) (term.Term, error) {
	switch typ {
	case schema.Text, schema.Keyword:
		return term.String(s), nil
	case schema.Integer:
		var v int64
		if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
			return term.Term{}, fmt.Errorf("not an integer: %q", s)
		}
		return term.Int64(v), nil
	case schema.Boolean:
		return term.Boolean(s == "true"), nil
	case schema.Datetime:
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return term.Term{}, fmt.Errorf("not RFC 3339: %q", s)
		}
		return term.Datetime(t.UnixNano()), nil
	default:
		return term.Term{}, fmt.Errorf("unsupported field type %v", typ)
	}
}

package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scampagna/ftsearch/analysis"
	"github.com/scampagna/ftsearch/schema"
	"github.com/scampagna/ftsearch/term"
)

func newPreparer(t *testing.T, fields []schema.FieldType, flags []schema.Flags, analyzers map[string]string) (*Preparer, *schema.Schema) {
	t.Helper()
	s := schema.New()
	m := schema.NewMapping()
	names := []string{"title", "body", "tag", "count", "active", "when"}
	for i, typ := range fields {
		ref, err := s.AddField(names[i], typ, flags[i])
		require.NoError(t, err)
		m.Bind(names[i], schema.FieldMapping{Field: ref, IndexAnalyzer: analyzers[names[i]]})
	}
	return NewPreparer(s, m, analysis.NewRegistry()), s
}

func TestPrepareTextFieldTokenizesAndStores(t *testing.T) {
	p, s := newPreparer(t,
		[]schema.FieldType{schema.Text},
		[]schema.Flags{schema.Indexed | schema.Stored},
		map[string]string{"title": "standard"})

	src := Source{Key: "doc-1", Fields: map[string]json.RawMessage{
		"title": json.RawMessage(`"Hello World"`),
	}}

	out, err := p.Prepare(src)
	require.NoError(t, err)

	ref, _ := s.FieldByName("title")
	assert.Equal(t, "doc-1", out.Key)
	require.Len(t, out.Indexed[ref], 2)
	assert.Equal(t, "hello", out.Indexed[ref][0].Term.Str)
	assert.Equal(t, "world", out.Indexed[ref][1].Term.Str)
	assert.Contains(t, out.Stored, ref)
}

func TestPrepareUnknownFieldIgnoredSilently(t *testing.T) {
	p, _ := newPreparer(t,
		[]schema.FieldType{schema.Text},
		[]schema.Flags{schema.Indexed},
		map[string]string{"title": "standard"})

	src := Source{Key: "doc-1", Fields: map[string]json.RawMessage{
		"title":   json.RawMessage(`"hi"`),
		"mystery": json.RawMessage(`42`),
	}}

	out, err := p.Prepare(src)
	require.NoError(t, err)
	assert.Len(t, out.Indexed, 1)
}

func TestPrepareNonIndexedFieldOnlyStored(t *testing.T) {
	p, s := newPreparer(t,
		[]schema.FieldType{schema.Text},
		[]schema.Flags{schema.Stored},
		map[string]string{"title": "standard"})

	src := Source{Key: "doc-1", Fields: map[string]json.RawMessage{
		"title": json.RawMessage(`"hi there"`),
	}}

	out, err := p.Prepare(src)
	require.NoError(t, err)
	ref, _ := s.FieldByName("title")
	assert.Empty(t, out.Indexed[ref])
	assert.Contains(t, out.Stored, ref)
}

func TestPrepareArrayFieldInsertsPositionGap(t *testing.T) {
	p, s := newPreparer(t,
		[]schema.FieldType{schema.Text},
		[]schema.Flags{schema.Indexed},
		map[string]string{"title": "standard"})

	src := Source{Key: "doc-1", Fields: map[string]json.RawMessage{
		"title": json.RawMessage(`["one two", "three"]`),
	}}

	out, err := p.Prepare(src)
	require.NoError(t, err)
	ref, _ := s.FieldByName("title")
	toks := out.Indexed[ref]
	require.Len(t, toks, 3)
	assert.Equal(t, uint32(1), toks[0].Position)
	assert.Equal(t, uint32(2), toks[1].Position)
	assert.Equal(t, uint32(2+DefaultPositionGap), toks[2].Position)
}

func TestPrepareRejectsBadCoercion(t *testing.T) {
	p, _ := newPreparer(t,
		[]schema.FieldType{schema.Integer},
		[]schema.Flags{schema.Indexed},
		map[string]string{"title": ""})

	src := Source{Key: "doc-1", Fields: map[string]json.RawMessage{
		"title": json.RawMessage(`"not a number"`),
	}}

	_, err := p.Prepare(src)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFieldCoercion)
}

func TestFieldValueTermConversions(t *testing.T) {
	tm, err := FieldValueTerm(schema.Keyword, "us-west")
	require.NoError(t, err)
	assert.Equal(t, term.String("us-west"), tm)

	tm, err = FieldValueTerm(schema.Integer, "42")
	require.NoError(t, err)
	assert.Equal(t, term.Int64(42), tm)

	tm, err = FieldValueTerm(schema.Boolean, "true")
	require.NoError(t, err)
	assert.Equal(t, term.Boolean(true), tm)

	_, err = FieldValueTerm(schema.Integer, "not-a-number")
	assert.Error(t, err)
}

func TestFieldValueTermDatetime(t *testing.T) {
	tm, err := FieldValueTerm(schema.Datetime, "2024-01-15T10:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, term.KindDatetime, tm.Kind)
}

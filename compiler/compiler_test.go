package compiler

import (
	"testing"
	"time"

	"github.com/poiesic/ontoquery/core"
	"github.com/poiesic/ontoquery/expand"
	"github.com/poiesic/ontoquery/predicate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)
}

func newTestCompiler(t *testing.T) *Compiler {
	t.Helper()
	c, err := New(WithClock(fixedClock))
	require.NoError(t, err)
	return c
}

func conceptExpansion(raw string, ids ...core.ConceptID) expand.Expansion {
	return expand.Expansion{Term: core.QueryTerm{Raw: []string{raw}}, IDs: ids}
}

func textExpansion(raw string) expand.Expansion {
	return expand.Expansion{Term: core.QueryTerm{Raw: []string{raw}}}
}

func TestCompile_SingleConcept(t *testing.T) {
	q, err := newTestCompiler(t).Compile([]expand.Expansion{conceptExpansion("C1", "C1")}, core.FilterBlock{}, nil)
	require.NoError(t, err)
	assert.Equal(t, predicate.And{Predicates: []predicate.Predicate{predicate.ConceptContains{ID: "C1"}}}, q.Where)
	assert.Equal(t, []string{core.FieldSOPInstanceUID}, q.Fields)
	assert.True(t, q.Distinct)
}

func TestCompile_OverlapKeepsDuplicates(t *testing.T) {
	q, err := newTestCompiler(t).Compile(
		[]expand.Expansion{conceptExpansion("C1,fractures", "C1", "C2", "C1")}, core.FilterBlock{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "and(overlap[3](C1,C2,C1))", predicate.Debug(q.Where))
}

func TestCompile_FreeText(t *testing.T) {
	q, err := newTestCompiler(t).Compile([]expand.Expansion{textExpansion("Pleural Effusion")}, core.FilterBlock{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "and(text(pleural effusion))", predicate.Debug(q.Where))
}

func TestCompile_TermsAreAnded(t *testing.T) {
	q, err := newTestCompiler(t).Compile([]expand.Expansion{
		conceptExpansion("C1", "C1", "C2"),
		textExpansion("lung"),
	}, core.FilterBlock{}, []string{"SOPInstanceUID", "ContentDate"})
	require.NoError(t, err)
	assert.Equal(t, "and(overlap[2](C1,C2), text(lung))", predicate.Debug(q.Where))
	assert.Equal(t, "select distinct SOPInstanceUID,ContentDate where and(overlap[2](C1,C2), text(lung))", Describe(q))
}

func TestCompile_QualifierUsesFirstConcept(t *testing.T) {
	exp := conceptExpansion("C1", "C1", "C2")
	exp.Term.Negation = core.Constrain("Affirmed")
	exp.Term.Temporality = core.Constrain("Recent", "historical")
	exp.Term.Experiencer = core.Constrain("Patient")

	q, err := newTestCompiler(t).Compile([]expand.Expansion{exp}, core.FilterBlock{}, nil)
	require.NoError(t, err)
	assert.Equal(t,
		"and(overlap[2](C1,C2), annotation(cui=C1,negation=Affirmed,temporality=Recent,experiencer=Patient))",
		predicate.Debug(q.Where))
}

func TestCompile_QualifierOnFreeText(t *testing.T) {
	exp := textExpansion("lung")
	exp.Term.Negation = core.Constrain("Negated")

	q, err := newTestCompiler(t).Compile([]expand.Expansion{exp}, core.FilterBlock{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "and(text(lung), annotation(pref=lung,negation=Negated))", predicate.Debug(q.Where))
}

func TestCompile_AnyQualifierAddsNothing(t *testing.T) {
	exp := conceptExpansion("C1", "C1")
	exp.Term.Negation = core.Constrain(core.Any)

	q, err := newTestCompiler(t).Compile([]expand.Expansion{exp}, core.FilterBlock{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "and(contains(C1))", predicate.Debug(q.Where))
}

func TestCompile_Filter(t *testing.T) {
	filter := core.FilterBlock{
		Modalities:         core.Constrain("CT,MR", "DX"),
		StartDate:          "2019-01-01",
		EndDate:            "2020-06-30",
		SOPInstanceUIDs:    []string{"1.2.3"},
		SeriesInstanceUIDs: []string{"1.2"},
		StudyInstanceUIDs:  []string{"1"},
	}
	q, err := newTestCompiler(t).Compile([]expand.Expansion{conceptExpansion("C1", "C1")}, filter, nil)
	require.NoError(t, err)
	assert.Equal(t,
		"and(contains(C1), modality(CT,MR,DX), date(20190101..20200630), "+
			"SOPInstanceUID in (1.2.3), SeriesInstanceUID in (1.2), StudyInstanceUID in (1))",
		predicate.Debug(q.Where))
}

func TestCompile_DateDefaults(t *testing.T) {
	c := newTestCompiler(t)
	terms := []expand.Expansion{conceptExpansion("C1", "C1")}

	q, err := c.Compile(terms, core.FilterBlock{StartDate: "2020-01-01"}, nil)
	require.NoError(t, err)
	assert.Contains(t, predicate.Debug(q.Where), "date(20200101..20240517)")

	q, err = c.Compile(terms, core.FilterBlock{EndDate: "2000-12-31"}, nil)
	require.NoError(t, err)
	assert.Contains(t, predicate.Debug(q.Where), "date(19900101..20001231)")
}

func TestCompile_FilterOnly(t *testing.T) {
	q, err := newTestCompiler(t).Compile(nil, core.FilterBlock{StudyInstanceUIDs: []string{"1.2.840"}}, nil)
	require.NoError(t, err)
	assert.Equal(t, "and(StudyInstanceUID in (1.2.840))", predicate.Debug(q.Where))
}

func TestCompile_EmptyQuery(t *testing.T) {
	_, err := newTestCompiler(t).Compile(nil, core.FilterBlock{}, nil)
	assert.ErrorIs(t, err, core.ErrEmptyQuery)

	_, err = newTestCompiler(t).Compile(nil, core.FilterBlock{Modalities: core.Constrain(core.Any)}, nil)
	assert.ErrorIs(t, err, core.ErrEmptyQuery)
}

func TestCompile_InvalidInput(t *testing.T) {
	c := newTestCompiler(t)
	terms := []expand.Expansion{conceptExpansion("C1", "C1")}

	_, err := c.Compile(terms, core.FilterBlock{}, []string{"SOPInstanceUID", "bad-field"})
	assert.ErrorIs(t, err, core.ErrInvalidField)

	_, err = c.Compile(terms, core.FilterBlock{StartDate: "01/02/2020"}, nil)
	assert.ErrorIs(t, err, core.ErrInvalidDate)
}

func TestCompile_FieldsAreCopied(t *testing.T) {
	fields := []string{"SOPInstanceUID", "StudyInstanceUID"}
	q, err := newTestCompiler(t).Compile([]expand.Expansion{conceptExpansion("C1", "C1")}, core.FilterBlock{}, fields)
	require.NoError(t, err)
	fields[0] = "Changed"
	assert.Equal(t, "SOPInstanceUID", q.Fields[0])
}

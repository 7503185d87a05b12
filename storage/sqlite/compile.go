package sqlite

import (
	"fmt"
	"strings"

	"github.com/poiesic/ontoquery/core"
	"github.com/poiesic/ontoquery/predicate"
	"github.com/poiesic/ontoquery/storage"
)

// identifierColumns maps identifier fields to their indexed columns.
var identifierColumns = map[string]string{
	core.FieldSOPInstanceUID:    "documents.sop_instance_uid",
	core.FieldSeriesInstanceUID: "documents.series_instance_uid",
	core.FieldStudyInstanceUID:  "documents.study_instance_uid",
}

// annotationKeys are the annotation qualifier keys in predicate order.
var annotationKeys = [...]string{"negation", "temporality", "experiencer"}

// Compile converts a compiled query to parameterized SQL.
// A nil page selects every row; otherwise LIMIT and OFFSET are bound.
func Compile(q *predicate.CompiledQuery, page *storage.Page) (string, []any, error) {
	if q == nil || q.Where == nil {
		return "", nil, fmt.Errorf("%w: query has no predicate", storage.ErrInvalidQuery)
	}
	if len(q.Fields) == 0 {
		return "", nil, fmt.Errorf("%w: query has no fields", storage.ErrInvalidQuery)
	}

	var (
		params  []any
		columns = make([]string, len(q.Fields))
		order   = make([]string, len(q.Fields))
	)
	for i, field := range q.Fields {
		columns[i] = fmt.Sprintf("json_extract(documents.doc, ?) AS f%d", i)
		order[i] = fmt.Sprintf("f%d COLLATE BINARY", i)
		params = append(params, "$."+field)
	}
	if !q.Distinct {
		order = append(order, "documents.sop_instance_uid COLLATE BINARY")
	}

	b := &builder{}
	where, err := b.predicate(q.Where)
	if err != nil {
		return "", nil, err
	}
	params = append(params, b.params...)

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if q.Distinct {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(strings.Join(columns, ", "))
	sb.WriteString(" FROM documents WHERE ")
	sb.WriteString(where)
	sb.WriteString(" ORDER BY ")
	sb.WriteString(strings.Join(order, ", "))

	if page != nil {
		limit := page.Limit
		if limit <= 0 {
			limit = -1
		}
		skip := max(page.Skip, 0)
		sb.WriteString(" LIMIT ? OFFSET ?")
		params = append(params, limit, skip)
	}
	return sb.String(), params, nil
}

// builder accumulates bound parameters in placeholder order.
type builder struct {
	params []any
}

func (b *builder) placeholders(values ...any) string {
	b.params = append(b.params, values...)
	return strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
}

func (b *builder) predicate(p predicate.Predicate) (string, error) {
	switch pred := p.(type) {
	case predicate.And:
		if len(pred.Predicates) == 0 {
			return "1 = 1", nil
		}
		parts := make([]string, 0, len(pred.Predicates))
		for _, sub := range pred.Predicates {
			sql, err := b.predicate(sub)
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+sql+")")
		}
		return strings.Join(parts, " AND "), nil

	case predicate.ConceptContains:
		return "EXISTS (SELECT 1 FROM json_each(documents.concepts) WHERE value = " +
			b.placeholders(string(pred.ID)) + ")", nil

	case predicate.ConceptOverlap:
		if len(pred.IDs) == 0 {
			return "0", nil
		}
		ids := make([]any, len(pred.IDs))
		for i, id := range pred.IDs {
			ids[i] = string(id)
		}
		return "EXISTS (SELECT 1 FROM json_each(documents.concepts) WHERE value IN (" +
			b.placeholders(ids...) + "))", nil

	case predicate.TextMatch:
		// A query of only stop words matches nothing.
		if len(pred.Words) == 0 {
			return "0", nil
		}
		parts := make([]string, len(pred.Words))
		for i, w := range pred.Words {
			parts[i] = "(' ' || documents.pref_text || ' ') LIKE " + b.placeholders("% "+w+" %")
		}
		return strings.Join(parts, " AND "), nil

	case predicate.AnnotationMatch:
		var conds []string
		if pred.ConceptID != "" {
			conds = append(conds, "json_extract(ann.value, '$.cui') = "+b.placeholders(string(pred.ConceptID)))
		} else {
			conds = append(conds, "json_extract(ann.value, '$.pref') = "+b.placeholders(pred.Pref))
		}
		for i, v := range [...]string{pred.Negation, pred.Temporality, pred.Experiencer} {
			if v != "" {
				conds = append(conds, fmt.Sprintf("json_extract(ann.value, '$.%s') = ", annotationKeys[i])+b.placeholders(v))
			}
		}
		return "EXISTS (SELECT 1 FROM json_each(documents.annotations) AS ann WHERE " +
			strings.Join(conds, " AND ") + ")", nil

	case predicate.ModalityOverlap:
		if len(pred.Values) == 0 {
			return "0", nil
		}
		values := make([]any, len(pred.Values))
		for i, v := range pred.Values {
			values[i] = v
		}
		return "EXISTS (SELECT 1 FROM json_each(documents.modalities) WHERE value IN (" +
			b.placeholders(values...) + "))", nil

	case predicate.DateRange:
		return "documents.content_date BETWEEN " + b.placeholders(pred.From) + " AND " + b.placeholders(pred.To), nil

	case predicate.IdentifierIn:
		column, ok := identifierColumns[pred.Field]
		if !ok {
			return "", fmt.Errorf("%w: identifier field %q", storage.ErrUnsupportedPredicate, pred.Field)
		}
		if len(pred.Values) == 0 {
			return "0", nil
		}
		values := make([]any, len(pred.Values))
		for i, v := range pred.Values {
			values[i] = v
		}
		return column + " IN (" + b.placeholders(values...) + ")", nil

	default:
		return "", fmt.Errorf("%w: %T", storage.ErrUnsupportedPredicate, p)
	}
}

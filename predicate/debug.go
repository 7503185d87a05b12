package predicate

import (
	"fmt"
	"strings"
)

// Debug renders a predicate as a compact, deterministic string for logs and
// traces. Concept id lists are printed as given, duplicates included.
func Debug(p Predicate) string {
	var b strings.Builder
	writeDebug(&b, p)
	return b.String()
}

func writeDebug(b *strings.Builder, p Predicate) {
	switch pred := p.(type) {
	case nil:
		b.WriteString("true")
	case And:
		b.WriteString("and(")
		for i, sub := range pred.Predicates {
			if i > 0 {
				b.WriteString(", ")
			}
			writeDebug(b, sub)
		}
		b.WriteString(")")
	case ConceptContains:
		fmt.Fprintf(b, "contains(%s)", pred.ID)
	case ConceptOverlap:
		ids := make([]string, len(pred.IDs))
		for i, id := range pred.IDs {
			ids[i] = string(id)
		}
		fmt.Fprintf(b, "overlap[%d](%s)", len(ids), strings.Join(ids, ","))
	case TextMatch:
		fmt.Fprintf(b, "text(%s)", strings.Join(pred.Words, " "))
	case AnnotationMatch:
		parts := make([]string, 0, 4)
		if pred.ConceptID != "" {
			parts = append(parts, "cui="+string(pred.ConceptID))
		} else {
			parts = append(parts, "pref="+pred.Pref)
		}
		if pred.Negation != "" {
			parts = append(parts, "negation="+pred.Negation)
		}
		if pred.Temporality != "" {
			parts = append(parts, "temporality="+pred.Temporality)
		}
		if pred.Experiencer != "" {
			parts = append(parts, "experiencer="+pred.Experiencer)
		}
		fmt.Fprintf(b, "annotation(%s)", strings.Join(parts, ","))
	case ModalityOverlap:
		fmt.Fprintf(b, "modality(%s)", strings.Join(pred.Values, ","))
	case DateRange:
		fmt.Fprintf(b, "date(%s..%s)", pred.From, pred.To)
	case IdentifierIn:
		fmt.Fprintf(b, "%s in (%s)", pred.Field, strings.Join(pred.Values, ","))
	default:
		fmt.Fprintf(b, "unknown(%T)", p)
	}
}

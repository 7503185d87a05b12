package predicate

import "github.com/poiesic/ontoquery/core"

// Predicate is a document filter condition.
//
// This is a sealed interface; only types in this package implement it, so
// backend compilers can switch over every case.
//
// Predicate types:
//   - And: all predicates must hold
//   - ConceptContains: the document's annotated concepts contain one id
//   - ConceptOverlap: the document's annotated concepts intersect a list of ids
//   - TextMatch: every normalised query word occurs in the annotation preferred labels
//   - AnnotationMatch: one annotation matches a concept (or label) and qualifiers
//   - ModalityOverlap: the document's modalities intersect a list
//   - DateRange: the document date lies in an inclusive range
//   - IdentifierIn: an identifier field is one of a list
//
// There is no Or: query terms are always conjunctive.
type Predicate interface {
	predicateNode()
}

// And holds when every predicate holds. An empty And always holds.
type And struct {
	Predicates []Predicate
}

// ConceptContains is the single-id form of concept membership.
type ConceptContains struct {
	ID core.ConceptID
}

// ConceptOverlap is the multi-id form of concept membership.
// IDs may contain duplicates; they do not change which documents match.
type ConceptOverlap struct {
	IDs []core.ConceptID
}

// TextMatch matches free text against annotation preferred labels.
// Words are already normalised with Normalize and stop words removed.
type TextMatch struct {
	Query string
	Words []string
}

// AnnotationMatch requires a single annotation object carrying all the given
// fields. Exactly one of ConceptID or Pref is set; empty qualifier fields are
// not constrained.
type AnnotationMatch struct {
	ConceptID   core.ConceptID
	Pref        string
	Negation    string
	Temporality string
	Experiencer string
}

// ModalityOverlap holds when the document modalities intersect Values.
type ModalityOverlap struct {
	Values []string
}

// DateRange holds when From <= date <= To. Bounds are YYYYMMDD strings.
type DateRange struct {
	From string
	To   string
}

// IdentifierIn holds when the identifier Field is one of Values.
type IdentifierIn struct {
	Field  string
	Values []string
}

func (And) predicateNode()             {}
func (ConceptContains) predicateNode() {}
func (ConceptOverlap) predicateNode()  {}
func (TextMatch) predicateNode()       {}
func (AnnotationMatch) predicateNode() {}
func (ModalityOverlap) predicateNode() {}
func (DateRange) predicateNode()       {}
func (IdentifierIn) predicateNode()    {}

// Concepts returns the membership predicate for ids: the containment form
// for exactly one id, the overlap form otherwise. It returns nil for no ids.
func Concepts(ids []core.ConceptID) Predicate {
	switch len(ids) {
	case 0:
		return nil
	case 1:
		return ConceptContains{ID: ids[0]}
	default:
		return ConceptOverlap{IDs: append([]core.ConceptID(nil), ids...)}
	}
}

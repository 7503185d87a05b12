// Package concept holds the concept hierarchy: external code resolution,
// semantic type groups, labels and depth-bounded narrower closure, plus
// the phenotype mappings used by query expansion.
package concept

import (
	"context"

	"github.com/poiesic/ontoquery/core"
)

// ClosureOptions bounds a narrower closure.
type ClosureOptions struct {
	// MaxDepth is the number of narrower levels to follow. Zero returns the
	// root alone.
	MaxDepth int
	// SameTypeOnly admits only children sharing a semantic type group with the root.
	SameTypeOnly bool
	// Prune lists concepts that are neither returned nor traversed.
	Prune []core.ConceptID
}

// Source answers concept lookups for query expansion. Implementations are
// read-only after construction and safe for concurrent use.
type Source interface {
	// ResolveExternalCode maps an external code (for example SNOMED) to a concept.
	ResolveExternalCode(code string) (core.ConceptID, bool)

	// SemanticTypeGroups returns the concept's semantic type groups, or an
	// empty list for unknown concepts.
	SemanticTypeGroups(ctx context.Context, id core.ConceptID) ([]string, error)

	// Label returns the concept's preferred label, or "" if unknown.
	Label(ctx context.Context, id core.ConceptID) (string, error)

	// NarrowerClosure returns the root followed by every admitted narrower
	// concept within MaxDepth levels, in breadth-first discovery order.
	// The result never holds duplicates and always starts with the root.
	NarrowerClosure(ctx context.Context, id core.ConceptID, opts ClosureOptions) ([]core.ConceptID, error)
}

package concept

import (
	"context"
	"slices"
	"strings"

	"github.com/poiesic/ontoquery/core"
)

// SemanticType describes one semantic type row from sty.csv.
type SemanticType struct {
	TUI        string
	Group      string
	GroupLabel string
}

// Graph is the eager Source: every concept row lives in memory.
type Graph struct {
	concepts      map[core.ConceptID]*core.Concept
	narrower      map[core.ConceptID][]core.ConceptID
	codes         map[string]core.ConceptID
	semanticTypes map[string]SemanticType
	edges         int
}

var _ Source = (*Graph)(nil)

// NewGraph builds an eager graph from loaded tables.
func NewGraph(tables *Tables) (*Graph, error) {
	if tables == nil {
		return nil, ErrTablesRequired
	}
	g := &Graph{
		concepts:      make(map[core.ConceptID]*core.Concept, len(tables.Concepts)),
		narrower:      tables.Narrower,
		codes:         tables.Codes,
		semanticTypes: tables.SemanticTypes,
	}
	for _, c := range tables.Concepts {
		g.concepts[c.ID] = c
	}
	for _, children := range g.narrower {
		g.edges += len(children)
	}
	return g, nil
}

// ResolveExternalCode maps an external code to a concept id.
func (g *Graph) ResolveExternalCode(code string) (core.ConceptID, bool) {
	id, ok := g.codes[strings.TrimSpace(code)]
	return id, ok
}

// SemanticTypeGroups returns the concept's semantic type groups.
func (g *Graph) SemanticTypeGroups(_ context.Context, id core.ConceptID) ([]string, error) {
	if c, ok := g.concepts[id]; ok {
		return slices.Clone(c.SemanticGroups), nil
	}
	return nil, nil
}

// Label returns the concept's preferred label.
func (g *Graph) Label(_ context.Context, id core.ConceptID) (string, error) {
	if c, ok := g.concepts[id]; ok {
		return c.Label, nil
	}
	return "", nil
}

// NarrowerClosure computes the bounded narrower closure of id.
func (g *Graph) NarrowerClosure(ctx context.Context, id core.ConceptID, opts ClosureOptions) ([]core.ConceptID, error) {
	return narrowerClosure(ctx, id, opts, g.Children, g.SemanticTypeGroups)
}

// Concept returns the concept row for id.
func (g *Graph) Concept(id core.ConceptID) (*core.Concept, bool) {
	c, ok := g.concepts[id]
	return c, ok
}

// Children returns the direct narrower concepts of id.
func (g *Graph) Children(id core.ConceptID) []core.ConceptID {
	return g.narrower[id]
}

// SemanticTypeInfo returns the sty.csv row for a semantic type id.
func (g *Graph) SemanticTypeInfo(tui string) (SemanticType, bool) {
	st, ok := g.semanticTypes[tui]
	return st, ok
}

// Stats reports table sizes for logging.
func (g *Graph) Stats() Stats {
	return Stats{
		Concepts:      len(g.concepts),
		Edges:         g.edges,
		Codes:         len(g.codes),
		SemanticTypes: len(g.semanticTypes),
	}
}

// Stats holds the loaded table sizes.
type Stats struct {
	Concepts      int
	Edges         int
	Codes         int
	SemanticTypes int
}

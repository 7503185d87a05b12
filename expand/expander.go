// Package expand turns query terms into concept id lists using the concept
// hierarchy and phenotype mappings.
package expand

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/ontoquery/concept"
	"github.com/poiesic/ontoquery/core"
)

// ErrSourceRequired is returned when an Expander is built without a concept source.
var ErrSourceRequired = errors.New("concept source is required")

// Expansion is the expanded form of one query term.
type Expansion struct {
	Term   core.QueryTerm
	Tokens []string
	Kinds  []Kind
	// IDs concatenates every token's concepts in token order. Duplicates
	// across tokens are kept.
	IDs []core.ConceptID
}

// FreeText reports whether the term expanded to no concepts and must be
// matched as text.
func (e Expansion) FreeText() bool {
	return len(e.IDs) == 0
}

// Expander expands query terms.
type Expander struct {
	source   concept.Source
	mappings *concept.Mappings
	filter   Filter
	logger   *slog.Logger
}

// Option configures an Expander.
type Option func(*Expander) error

// WithMappings sets the phenotype mappings consulted for mapping names.
func WithMappings(m *concept.Mappings) Option {
	return func(e *Expander) error {
		e.mappings = m
		return nil
	}
}

// WithFilter sets the corpus presence filter applied to each expansion.
// Default is PassThrough.
func WithFilter(f Filter) Option {
	return func(e *Expander) error {
		if f == nil {
			f = PassThrough
		}
		e.filter = f
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Expander) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewExpander creates an expander over source.
func NewExpander(source concept.Source, opts ...Option) (*Expander, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	e := &Expander{
		source:   source,
		mappings: concept.NewMappings(nil),
		filter:   PassThrough,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Classify classifies token against the expander's mappings.
func (e *Expander) Classify(token string) Kind {
	return Classify(token, e.mappings)
}

// Expand expands one term. Unresolvable codes, unknown names and free
// text contribute no concepts; they are not errors.
func (e *Expander) Expand(ctx context.Context, term core.QueryTerm) (Expansion, error) {
	opts := concept.ClosureOptions{
		MaxDepth:     term.Depth,
		SameTypeOnly: term.SameTypeOnly,
		Prune:        term.Prune,
	}
	exp := Expansion{Term: term, Tokens: Tokens(term.Raw)}
	exp.Kinds = make([]Kind, len(exp.Tokens))

	for i, tok := range exp.Tokens {
		kind := e.Classify(tok)
		var ids []core.ConceptID
		switch kind {
		case ExternalCode:
			id, ok := e.source.ResolveExternalCode(externalCode(tok))
			if !ok {
				e.logger.Debug("external code not resolved", "code", tok)
				if e.mappings.Has(tok) {
					kind = MappingName
					ids = e.mappings.Concepts(tok)
				}
				break
			}
			closure, err := e.source.NarrowerClosure(ctx, id, opts)
			if err != nil {
				return Expansion{}, fmt.Errorf("expand %s: %w", tok, err)
			}
			ids = closure
		case ConceptCode:
			closure, err := e.source.NarrowerClosure(ctx, core.ConceptID(conceptCode(tok)), opts)
			if err != nil {
				return Expansion{}, fmt.Errorf("expand %s: %w", tok, err)
			}
			ids = closure
		case MappingName:
			ids = e.mappings.Concepts(tok)
		}
		exp.Kinds[i] = kind
		exp.IDs = append(exp.IDs, ids...)
	}

	filtered, err := e.filter.Filter(ctx, exp.IDs)
	if err != nil {
		return Expansion{}, fmt.Errorf("filter expansion: %w", err)
	}
	exp.IDs = filtered

	e.logger.Debug("expanded term", "term", term.Text(), "tokens", len(exp.Tokens), "concepts", len(exp.IDs))
	return exp, nil
}

// ExpandAll expands every term in order.
func (e *Expander) ExpandAll(ctx context.Context, terms []core.QueryTerm) ([]Expansion, error) {
	out := make([]Expansion, 0, len(terms))
	for _, term := range terms {
		exp, err := e.Expand(ctx, term)
		if err != nil {
			return nil, err
		}
		out = append(out, exp)
	}
	return out, nil
}

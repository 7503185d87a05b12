package concept

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/ontoquery/core"
	"github.com/poiesic/ontoquery/storage"
)

// defaultImportBatch is the number of concepts written per repository call.
const defaultImportBatch = 5000

// LazySource keeps narrower edges and external codes in memory and reads
// concept rows from a repository on demand.
type LazySource struct {
	repo     storage.ConceptRepository
	narrower map[core.ConceptID][]core.ConceptID
	codes    map[string]core.ConceptID
}

var _ Source = (*LazySource)(nil)

// NewLazySource builds a source over repo using the edge and code tables.
// Concept rows in tables are ignored; import them with Import.
func NewLazySource(repo storage.ConceptRepository, tables *Tables) (*LazySource, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	if tables == nil {
		return nil, ErrTablesRequired
	}
	return &LazySource{
		repo:     repo,
		narrower: tables.Narrower,
		codes:    tables.Codes,
	}, nil
}

// ResolveExternalCode maps an external code to a concept id.
func (s *LazySource) ResolveExternalCode(code string) (core.ConceptID, bool) {
	id, ok := s.codes[strings.TrimSpace(code)]
	return id, ok
}

func (s *LazySource) concept(ctx context.Context, id core.ConceptID) (*core.Concept, error) {
	c, err := s.repo.GetConcept(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load concept %s: %w", id, err)
	}
	return c, nil
}

// SemanticTypeGroups fetches the concept row and returns its groups.
func (s *LazySource) SemanticTypeGroups(ctx context.Context, id core.ConceptID) ([]string, error) {
	c, err := s.concept(ctx, id)
	if c == nil || err != nil {
		return nil, err
	}
	return c.SemanticGroups, nil
}

// Label fetches the concept row and returns its label.
func (s *LazySource) Label(ctx context.Context, id core.ConceptID) (string, error) {
	c, err := s.concept(ctx, id)
	if c == nil || err != nil {
		return "", err
	}
	return c.Label, nil
}

// NarrowerClosure computes the bounded narrower closure of id. Group
// lookups are memoised for the duration of the call only.
func (s *LazySource) NarrowerClosure(ctx context.Context, id core.ConceptID, opts ClosureOptions) ([]core.ConceptID, error) {
	memo := make(map[core.ConceptID][]string)
	groups := func(ctx context.Context, id core.ConceptID) ([]string, error) {
		if gs, ok := memo[id]; ok {
			return gs, nil
		}
		gs, err := s.SemanticTypeGroups(ctx, id)
		if err != nil {
			return nil, err
		}
		memo[id] = gs
		return gs, nil
	}
	children := func(id core.ConceptID) []core.ConceptID { return s.narrower[id] }
	return narrowerClosure(ctx, id, opts, children, groups)
}

// Import writes every concept row in tables to repo in batches.
func Import(ctx context.Context, repo storage.ConceptRepository, tables *Tables, logger *slog.Logger) (int, error) {
	if repo == nil {
		return 0, ErrRepositoryRequired
	}
	if tables == nil {
		return 0, ErrTablesRequired
	}
	if logger == nil {
		logger = slog.Default()
	}

	written := 0
	for start := 0; start < len(tables.Concepts); start += defaultImportBatch {
		end := min(start+defaultImportBatch, len(tables.Concepts))
		if err := repo.AddConcepts(ctx, tables.Concepts[start:end]...); err != nil {
			return written, fmt.Errorf("import concepts %d-%d: %w", start, end, err)
		}
		written = end
		logger.Debug("imported concept batch", "written", written, "total", len(tables.Concepts))
	}
	logger.Info("imported concepts", "count", written)
	return written, nil
}

package expand

import (
	"context"

	"github.com/poiesic/ontoquery/core"
)

// Filter narrows an expansion to concepts present in the corpus.
type Filter interface {
	Filter(ctx context.Context, ids []core.ConceptID) ([]core.ConceptID, error)
}

// FilterFunc adapts a function to Filter.
type FilterFunc func(ctx context.Context, ids []core.ConceptID) ([]core.ConceptID, error)

// Filter calls f.
func (f FilterFunc) Filter(ctx context.Context, ids []core.ConceptID) ([]core.ConceptID, error) {
	return f(ctx, ids)
}

// PassThrough returns expansions unchanged.
var PassThrough Filter = FilterFunc(func(_ context.Context, ids []core.ConceptID) ([]core.ConceptID, error) {
	return ids, nil
})

package search

import (
	"context"
	"fmt"

	"github.com/poiesic/ontoquery/compiler"
	"github.com/poiesic/ontoquery/core"
	"github.com/poiesic/ontoquery/storage"
)

// Cursor reads pages of a completed query.
// The compiled predicate is re-executed for every page, so pages follow the
// current corpus while the transaction snapshot does not.
type Cursor struct {
	store  storage.DocumentStore
	query  *compiler.CompiledQuery
	total  int
	handle string
}

// Query returns the compiled query behind the cursor.
func (c *Cursor) Query() *compiler.CompiledQuery {
	return c.query
}

// Len returns the number of rows of the unpaginated result.
func (c *Cursor) Len() int {
	return c.total
}

// Handle returns the transaction handle of the originating query.
func (c *Cursor) Handle() string {
	return c.handle
}

// Fetch returns rows skip through skip+limit of the result.
// A zero limit returns every row after skip.
func (c *Cursor) Fetch(ctx context.Context, skip, limit int) (*core.Projection, error) {
	if skip < 0 || limit < 0 {
		return nil, fmt.Errorf("%w: skip %d limit %d", ErrInvalidPage, skip, limit)
	}
	rows, err := c.store.Execute(ctx, c.query, &storage.Page{Skip: skip, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	return Project(c.query.Fields, rows), nil
}

package storage

import (
	"context"

	"github.com/poiesic/ontoquery/core"
	"github.com/poiesic/ontoquery/predicate"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close closes the storage backend and releases resources.
	Close() error
}

// Page is an absolute result window. A nil *Page means unpaginated.
type Page struct {
	Skip  int
	Limit int
}

// DocumentStore executes compiled queries against the annotated corpus.
type DocumentStore interface {
	Repository

	// Execute runs a compiled query and returns one row per distinct
	// projected tuple, values in field order. Row order is deterministic
	// for an unchanged corpus. A nil page returns every row.
	Execute(ctx context.Context, q *predicate.CompiledQuery, page *Page) ([][]any, error)

	// AddDocuments inserts or replaces documents keyed by SOPInstanceUID.
	AddDocuments(ctx context.Context, docs ...*core.Document) error

	// GetDocument retrieves one document by SOPInstanceUID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, sopInstanceUID string) (*core.Document, error)

	// CountDocuments returns the number of stored documents.
	CountDocuments(ctx context.Context) (int, error)
}

// ConceptRepository stores concept rows for the lazily loaded concept source.
type ConceptRepository interface {
	Repository

	// AddConcepts inserts or replaces concepts keyed by ID.
	AddConcepts(ctx context.Context, concepts ...*core.Concept) error

	// GetConcept retrieves a single concept by ID.
	// Returns ErrNotFound if the concept doesn't exist.
	GetConcept(ctx context.Context, id core.ConceptID) (*core.Concept, error)

	// GetConcepts retrieves multiple concepts by their IDs.
	// Returns only the concepts that exist (no error for missing concepts).
	GetConcepts(ctx context.Context, ids ...core.ConceptID) ([]*core.Concept, error)

	// CountConcepts returns the number of stored concepts.
	CountConcepts(ctx context.Context) (int, error)
}

// SnapshotRepository persists transaction snapshots.
type SnapshotRepository interface {
	Repository

	// SaveSnapshot persists a new snapshot.
	// Returns ErrDuplicateKey if the handle already exists; snapshots are immutable.
	SaveSnapshot(ctx context.Context, snapshot *core.Snapshot) error

	// LoadSnapshot retrieves a snapshot by handle.
	// Returns ErrNotFound if the handle doesn't exist.
	LoadSnapshot(ctx context.Context, handle string) (*core.Snapshot, error)

	// DeleteSnapshot removes a snapshot.
	// Returns ErrNotFound if the handle doesn't exist.
	DeleteSnapshot(ctx context.Context, handle string) error

	// ListSnapshots returns every stored handle in key order.
	ListSnapshots(ctx context.Context) ([]string, error)
}

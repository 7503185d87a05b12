package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ontoquery/core"
	"github.com/poiesic/ontoquery/storage"
)

// ConceptRepository implements storage.ConceptRepository for BadgerDB.
type ConceptRepository struct {
	backend *Backend
}

var _ storage.ConceptRepository = (*ConceptRepository)(nil)

// NewConceptRepository creates a new ConceptRepository.
func NewConceptRepository(backend *Backend) (*ConceptRepository, error) {
	if backend == nil {
		return nil, ErrBackendRequired
	}
	return &ConceptRepository{
		backend: backend,
	}, nil
}

// Close releases resources. ConceptRepository has no resources to release.
func (r *ConceptRepository) Close() error {
	return nil
}

// AddConcepts inserts or replaces concepts. Writes go through a badger
// write batch so full terminology imports do not hit transaction limits.
func (r *ConceptRepository) AddConcepts(ctx context.Context, concepts ...*core.Concept) error {
	if r.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	wb := r.backend.db.NewWriteBatch()
	defer wb.Cancel()

	for _, concept := range concepts {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := core.ValidateConcept(concept); err != nil {
			return err
		}
		if err := wb.Set(makeConceptKey(concept.ID), storage.MarshalConcept(concept)); err != nil {
			return fmt.Errorf("write concept %s: %w", concept.ID, err)
		}
	}
	return wb.Flush()
}

// GetConcept retrieves a single concept by ID.
func (r *ConceptRepository) GetConcept(ctx context.Context, id core.ConceptID) (*core.Concept, error) {
	var result *core.Concept
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = readConcept(tx, makeConceptKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetConcepts retrieves multiple concepts by their IDs.
func (r *ConceptRepository) GetConcepts(ctx context.Context, ids ...core.ConceptID) ([]*core.Concept, error) {
	var result []*core.Concept
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			concept, err := readConcept(tx, makeConceptKey(id))
			if err != nil {
				return err
			}
			if concept != nil {
				result = append(result, concept)
			}
		}
		return nil
	}, false)
	return result, err
}

// CountConcepts returns the number of stored concepts.
func (r *ConceptRepository) CountConcepts(ctx context.Context) (int, error) {
	return r.backend.countPrefix([]byte(conceptRecordPrefix))
}

// readConcept reads a concept from the transaction.
// Returns nil, nil when the key is absent.
func readConcept(tx *badger.Txn, key []byte) (*core.Concept, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var concept *core.Concept
	err = item.Value(func(val []byte) error {
		var err error
		concept, err = storage.UnmarshalConcept(val)
		return err
	})
	return concept, err
}

package badger

import "github.com/poiesic/ontoquery/storage"

// NewMemoryRepositories creates in-memory concept and snapshot repositories for testing.
// Returns conceptRepo, snapshotRepo, backend, and error.
// Caller must close the backend when done.
func NewMemoryRepositories() (storage.ConceptRepository, storage.SnapshotRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}

	conceptRepo, err := NewConceptRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	snapshotRepo, err := NewSnapshotRepository(backend)
	if err != nil {
		conceptRepo.Close()
		backend.Close()
		return nil, nil, nil, err
	}

	return conceptRepo, snapshotRepo, backend, nil
}

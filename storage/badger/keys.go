package badger

import "github.com/poiesic/ontoquery/core"

// Key prefixes for different data types
const (
	conceptRecordPrefix  = "concept:"
	snapshotRecordPrefix = "txn:"
)

// makeConceptKey generates a key for a concept by ID.
func makeConceptKey(id core.ConceptID) []byte {
	return []byte(conceptRecordPrefix + string(id))
}

// makeSnapshotKey generates a key for a transaction snapshot by handle.
func makeSnapshotKey(handle string) []byte {
	return []byte(snapshotRecordPrefix + handle)
}

// handleFromKey strips the snapshot prefix from a key.
func handleFromKey(key []byte) string {
	return string(key[len(snapshotRecordPrefix):])
}

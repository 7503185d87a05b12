package ingestion

import "errors"

var (
	// ErrStoreRequired is returned when a document store is not provided.
	ErrStoreRequired = errors.New("document store required")

	// ErrInvalidDocument is returned for input that is not an annotated document.
	ErrInvalidDocument = errors.New("invalid document")
)

package concept

import "errors"

var (
	// ErrTablesDirRequired is returned when no terminology table directory is given.
	ErrTablesDirRequired = errors.New("terminology table directory is required")

	// ErrMalformedRow indicates a table row with too few columns.
	ErrMalformedRow = errors.New("malformed table row")

	// ErrRepositoryRequired is returned when a lazy source is built without a concept repository.
	ErrRepositoryRequired = errors.New("concept repository is required")

	// ErrTablesRequired is returned when a source is built without loaded tables.
	ErrTablesRequired = errors.New("terminology tables are required")

	// ErrInvalidMapping indicates a phenotype mapping file that is not a term to id-list object.
	ErrInvalidMapping = errors.New("invalid phenotype mapping")
)

package badger

import "errors"

// ErrBackendRequired is returned when a repository is built without a backend.
var ErrBackendRequired = errors.New("badger backend is required")

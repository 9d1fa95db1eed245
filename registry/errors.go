package registry

import "errors"

var (
	// ErrNotInitialized is returned when the registry is used before Init or after Shutdown.
	ErrNotInitialized = errors.New("registry: not initialized")
	// ErrAlreadyInitialized is returned by a second Init.
	ErrAlreadyInitialized = errors.New("registry: already initialized")
	// ErrInvalidArgument is returned for empty identifiers, nil payloads and nil entries.
	ErrInvalidArgument = errors.New("registry: invalid argument")
	// ErrNotReferenced is returned when releasing an entry whose count is already zero.
	ErrNotReferenced = errors.New("registry: entry not referenced")
)

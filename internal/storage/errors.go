package storage

import "errors"

// Errors shared by every backend.
var (
	// ErrNotFound is returned when a key or record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when an execution or closed position is
	// journaled twice. The journal is append-only.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned for records that fail validation.
	ErrInvalidInput = errors.New("invalid input")
)

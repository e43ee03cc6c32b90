// Package apperr defines the sentinel errors shared across Munin layers.
package apperr

import "errors"

var (
	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a create collided with an existing document.
	ErrAlreadyExists = errors.New("already exists")
	// ErrConflict indicates an optimistic-concurrency checksum mismatch.
	ErrConflict = errors.New("conflict")
	// ErrSectionNotFound indicates no heading matched the requested section.
	ErrSectionNotFound = errors.New("section not found")
	// ErrIndexNotInitialized indicates a query before any successful rebuild.
	// Distinct from an empty result: "no data yet" is not "no matches".
	ErrIndexNotInitialized = errors.New("index not initialized")
	// ErrIndexCorrupted indicates the index artifact is damaged on disk and
	// must be rebuilt from source files, which remain authoritative.
	ErrIndexCorrupted = errors.New("index corrupted")
	// ErrInvalidFilter indicates a filter combination the backend cannot
	// serve, e.g. a text filter against a backend without full-text support.
	ErrInvalidFilter = errors.New("invalid filter combination")
	// ErrDuplicateID indicates two source files derived the same (kind, id).
	ErrDuplicateID = errors.New("duplicate document id")
	// ErrInvalidTransition indicates a plan status change outside the
	// allowed transition graph.
	ErrInvalidTransition = errors.New("invalid status transition")
)

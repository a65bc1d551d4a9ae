package memory

import "errors"

var (
	// ErrRepositoryRequired indicates a nil record repository was supplied.
	ErrRepositoryRequired = errors.New("record repository is required")

	// ErrEmbedderRequired indicates a nil embedder was supplied.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrEmptySession indicates there are no turns to persist.
	ErrEmptySession = errors.New("session has no turns")
)

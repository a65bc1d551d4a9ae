package reembed

import "errors"

var (
	// ErrRepositoryRequired is returned when no record repository is given.
	ErrRepositoryRequired = errors.New("reembed: record repository is required")

	// ErrEmbedderRequired is returned when no embedder is given.
	ErrEmbedderRequired = errors.New("reembed: embedder is required")

	// ErrInvalidBatchSize is returned when the batch size is below one.
	ErrInvalidBatchSize = errors.New("reembed: batch size must be at least 1")
)

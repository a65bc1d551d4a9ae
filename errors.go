package lexrag

import "errors"

var (
	// ErrEmbedderRequired indicates Dependencies has no embedder.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrCompleterRequired indicates Dependencies has no completer.
	ErrCompleterRequired = errors.New("completer is required")

	// ErrSearcherRequired indicates Dependencies has no passage searcher.
	ErrSearcherRequired = errors.New("passage searcher is required")

	// ErrRepositoryRequired indicates Dependencies has no record repository.
	ErrRepositoryRequired = errors.New("record repository is required")

	// ErrSessionNotFound indicates no short-term buffer exists for the session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrIndexReadOnly indicates the passage searcher cannot be written to.
	ErrIndexReadOnly = errors.New("passage index is read-only")
)

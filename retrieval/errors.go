package retrieval

import "errors"

var (
	// ErrEmbedderRequired indicates a nil embedder was supplied.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrSearcherRequired indicates a nil index searcher was supplied.
	ErrSearcherRequired = errors.New("index searcher is required")
)

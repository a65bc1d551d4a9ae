package reasoning

import "errors"

var (
	// ErrCompleterRequired indicates a nil completer was supplied.
	ErrCompleterRequired = errors.New("completer is required")

	// ErrRetrieverRequired indicates a nil retriever was supplied.
	ErrRetrieverRequired = errors.New("retriever is required")
)

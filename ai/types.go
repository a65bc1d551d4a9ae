package ai

import (
	"errors"

	"github.com/poiesic/lexrag/core"
)

// CompletionOptions tunes a single completion request.
type CompletionOptions struct {
	// System is an optional system prompt sent ahead of the user prompt.
	System string

	// Temperature controls sampling randomness.
	Temperature float64

	// MaxTokens caps the length of the completion. Zero means provider default.
	MaxTokens int
}

// IsTransient reports whether err is an LLM or embedding failure that may
// succeed on retry.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, core.ErrLLMRejected) {
		return false
	}
	return errors.Is(err, core.ErrLLMUnavailable) || errors.Is(err, core.ErrEmbeddingUnavailable)
}

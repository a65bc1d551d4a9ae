package openai

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/poiesic/lexrag/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// classifyCompletionError maps a client error onto core.ErrLLMUnavailable
// or core.ErrLLMRejected. The langchaingo error code decides; errors it
// cannot place are transient only for context and network failures.
func classifyCompletionError(err error) error {
	if err == nil {
		return nil
	}
	mapped := openai.MapError(err)
	if isTransient(mapped) {
		return fmt.Errorf("%w: %w", core.ErrLLMUnavailable, mapped)
	}
	return fmt.Errorf("%w: %w", core.ErrLLMRejected, mapped)
}

// classifyEmbeddingError wraps every embedding failure as unavailable.
func classifyEmbeddingError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", core.ErrEmbeddingUnavailable, openai.MapError(err))
}

func isTransient(err error) bool {
	switch {
	case llms.IsRateLimitError(err), llms.IsTimeoutError(err), llms.IsProviderUnavailableError(err):
		return true
	case llms.IsAuthenticationError(err), llms.IsInvalidRequestError(err), llms.IsContentFilterError(err),
		llms.IsQuotaExceededError(err), llms.IsTokenLimitError(err):
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

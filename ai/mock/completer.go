package mock

import (
	"context"
	"sync"

	"github.com/poiesic/lexrag/ai"
)

// CompletionCall records one request made to a MockCompleter.
type CompletionCall struct {
	Prompt  string
	Options ai.CompletionOptions
}

// MockCompleter is a test double for ai.Completer.
type MockCompleter struct {
	// CompleteFunc is called by Complete if set; scripted responses are ignored.
	CompleteFunc func(ctx context.Context, prompt string, opts ai.CompletionOptions) (string, error)

	mu        sync.Mutex
	responses []string
	calls     []CompletionCall
}

var _ ai.Completer = (*MockCompleter)(nil)

// NewMockCompleter creates a completer that returns responses in order.
// Once the script is exhausted the last response is repeated.
func NewMockCompleter(responses ...string) *MockCompleter {
	return &MockCompleter{responses: responses}
}

// Complete records the call and returns the next scripted response.
func (m *MockCompleter) Complete(ctx context.Context, prompt string, opts ai.CompletionOptions) (string, error) {
	m.mu.Lock()
	idx := len(m.calls)
	m.calls = append(m.calls, CompletionCall{Prompt: prompt, Options: opts})
	fn := m.CompleteFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt, opts)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.responses) == 0 {
		return "", nil
	}
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

// Calls returns a copy of every recorded call.
func (m *MockCompleter) Calls() []CompletionCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionCall(nil), m.calls...)
}

// CallCount returns the number of Complete calls.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears recorded calls and injected behavior.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.CompleteFunc = nil
}

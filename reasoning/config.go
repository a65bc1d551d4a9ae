package reasoning

import (
	"errors"
	"time"
)

// DefaultSystemPrompt frames every stage's completion.
const DefaultSystemPrompt = "Tu es un assistant juridique expert en Code du Travail Tunisien."

// Config tunes the reasoning engine.
type Config struct {
	// RewriteTemperature is used by stage 1. Default: 0.1
	RewriteTemperature float64

	// AnalysisTemperature is used by stage 2. Default: 0.2
	AnalysisTemperature float64

	// SynthesisTemperature is used by stage 3. Default: 0.3
	SynthesisTemperature float64

	// MaxTokens caps each completion. Default: 2048
	MaxTokens int

	// MaxQueries caps the rewritten queries kept from stage 1. Default: 5
	MaxQueries int

	// MaxRetries is the number of retries after a transient LLM failure. Default: 2
	MaxRetries int

	// RetryBaseDelay is the first backoff delay; it doubles on every retry. Default: 500ms
	RetryBaseDelay time.Duration

	// SystemPrompt is sent with every completion.
	SystemPrompt string
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		RewriteTemperature:   0.1,
		AnalysisTemperature:  0.2,
		SynthesisTemperature: 0.3,
		MaxTokens:            2048,
		MaxQueries:           5,
		MaxRetries:           2,
		RetryBaseDelay:       500 * time.Millisecond,
		SystemPrompt:         DefaultSystemPrompt,
	}
}

// Validate checks that the configuration is usable.
// Stage temperatures must increase from rewriting to synthesis.
func (c Config) Validate() error {
	if c.RewriteTemperature < 0 || c.SynthesisTemperature > 2 {
		return errors.New("reasoning config: temperatures must be within [0, 2]")
	}
	if !(c.RewriteTemperature < c.AnalysisTemperature && c.AnalysisTemperature < c.SynthesisTemperature) {
		return errors.New("reasoning config: temperatures must increase from rewriting to synthesis")
	}
	if c.MaxTokens < 1 {
		return errors.New("reasoning config: MaxTokens must be at least 1")
	}
	if c.MaxQueries < 1 {
		return errors.New("reasoning config: MaxQueries must be at least 1")
	}
	if c.MaxRetries < 0 {
		return errors.New("reasoning config: MaxRetries cannot be negative")
	}
	if c.RetryBaseDelay < 0 {
		return errors.New("reasoning config: RetryBaseDelay cannot be negative")
	}
	return nil
}

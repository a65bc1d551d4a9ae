package memory

import "errors"

// Config tunes the memory store.
type Config struct {
	// ShortTermLimit is the number of turns kept per session.
	// Default: 10
	ShortTermLimit int

	// LongTermLimit is the number of long-term records recalled per query.
	// Default: 3
	LongTermLimit int

	// RelevanceThreshold is the minimum similarity for a long-term record to be recalled.
	// Default: 0.6
	RelevanceThreshold float32

	// ContextBudget caps the formatted prompt context, in characters.
	// Default: 4000
	ContextBudget int

	// SummaryLength caps each recalled long-term turn, in characters.
	// Default: 200
	SummaryLength int
}

// DefaultConfig returns the default memory configuration.
func DefaultConfig() Config {
	return Config{
		ShortTermLimit:     10,
		LongTermLimit:      3,
		RelevanceThreshold: 0.6,
		ContextBudget:      4000,
		SummaryLength:      200,
	}
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.ShortTermLimit < 1 {
		return errors.New("memory config: ShortTermLimit must be at least 1")
	}
	if c.LongTermLimit < 0 {
		return errors.New("memory config: LongTermLimit cannot be negative")
	}
	if c.RelevanceThreshold < -1 || c.RelevanceThreshold > 1 {
		return errors.New("memory config: RelevanceThreshold must be between -1 and 1")
	}
	if c.ContextBudget < 1 {
		return errors.New("memory config: ContextBudget must be at least 1")
	}
	if c.SummaryLength < 1 {
		return errors.New("memory config: SummaryLength must be at least 1")
	}
	return nil
}

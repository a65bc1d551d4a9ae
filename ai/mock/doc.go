// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Completer,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
// All mocks are safe for concurrent use.
//
// # Usage in Tests
//
//	// Scripted completions, returned in order (the last one repeats)
//	completer := mock.NewMockCompleter("requête 1\nrequête 2", "analyse", "réponse")
//
//	// Custom behavior injection
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return []float32{1, 0, 0}, nil
//	}
//
//	// Check call counts and recorded prompts
//	count := embedder.CallCount()
//	calls := completer.Calls()
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic unit vectors based on text hash
//   - MockCompleter: Returns its scripted responses, or "" when none are set
//   - MockProvider: Aggregates mock embedder and completer
package mock

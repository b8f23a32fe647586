// Package mock provides test doubles for the ai package interfaces.
//
// Constructors return concrete types so tests can inject behavior and
// inspect call counts:
//
//	mockEmbedder := mock.NewMockEmbedder()
//	mockEmbedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return []float32{0.1, 0.2, 0.3}, nil
//	}
//
//	completer := mock.NewMockCompleter("qwen2.5:7b")
//	completer.CompleteFunc = func(ctx context.Context, prompt string, opts ai.CompletionOptions) (string, error) {
//	    return `{"answer": "..."}`, nil
//	}
//
//	// Check call counts
//	count := completer.CallCount()
//
// # Default Behavior
//
// The mock implementations provide sensible defaults:
//
//   - MockEmbedder: Returns deterministic vectors based on text hash
//   - MockCompleter: Echoes a fixed reply and records every prompt
//   - MockProvider: Aggregates mock embedder and completers
//
// All mocks are safe for concurrent use; specialists call them from a worker pool.
package mock

package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// CompletionOptions tunes a single completion call.
// Zero values leave the model's defaults in place.
type CompletionOptions struct {
	// System is an optional system message sent before the prompt.
	System string

	// Temperature controls sampling randomness.
	Temperature float64

	// TopP enables nucleus sampling when greater than zero.
	TopP float64

	// MaxTokens caps the length of the completion when greater than zero.
	MaxTokens int

	// JSONMode asks the model to emit a single JSON object.
	JSONMode bool
}

// Completer produces text completions. Calls may be slow: local models on
// non-accelerated hardware can take minutes per request.
// Implementations must be thread-safe for concurrent use.
type Completer interface {
	// Complete sends prompt to the model and returns the generated text.
	// Returns an error if the backend is unreachable or replies with nothing.
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)

	// Model names the model answering the calls.
	Model() string
}

// AIProvider aggregates model services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Generator returns the fast local model used for grounded answers.
	Generator() Completer

	// Agents returns the model backing specialist and supervisor agents.
	Agents() Completer

	// Validator returns the cloud validation model, or nil when none is configured.
	Validator() Completer

	// Close releases resources held by the provider and its services.
	Close() error
}

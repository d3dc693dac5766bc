package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity
// search. Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a
	// batch. The returned slice contains embeddings in the same order as the
	// input texts. Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ChatModel generates a completion for a system/user prompt pair.
// Implementations must be thread-safe for concurrent use.
type ChatModel interface {
	// Generate returns the model's text response for the given prompts.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Provider aggregates AI services for convenient initialization and
// lifecycle management. A provider creates and manages Embedder and
// ChatModel instances, ensuring they share configuration appropriately.
type Provider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// ChatModel returns the chat completion service.
	ChatModel() ChatModel

	// Close releases resources held by the provider and its services.
	Close() error
}

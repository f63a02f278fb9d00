package ai

import "context"

// Embedder is the embedding provider: it turns texts into vectors.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// CreateEmbeddings generates one vector per input text. Each result is
	// tagged with the index of the text it belongs to; results may arrive
	// in any order. Returns an error if any embedding generation fails.
	CreateEmbeddings(ctx context.Context, texts []string) ([]IndexedEmbedding, error)
}

// Completer is the LLM text completion service.
// Implementations must be thread-safe for concurrent use.
type Completer interface {
	// Complete runs one bounded completion and returns the generated text.
	Complete(ctx context.Context, req CompletionRequest) (string, error)

	// CompleteStream runs the same completion but delivers text incrementally
	// to onChunk as it is generated. It returns the full text once the stream
	// ends. An error from onChunk aborts the stream.
	CompleteStream(ctx context.Context, req CompletionRequest, onChunk func(chunk string) error) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
type AIProvider interface {
	// Embedder returns the embedding service.
	Embedder() Embedder

	// Completer returns the completion service.
	Completer() Completer

	// EmbeddingModel names the model behind Embedder, recorded on stored embeddings.
	EmbeddingModel() string

	// Close releases resources held by the provider and its services.
	Close() error
}

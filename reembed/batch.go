package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/knowbot/core"
	"github.com/poiesic/knowbot/embedding"
)

// BatchEmbedder embeds many texts in one call.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}

// EmbeddingWriter replaces stored embeddings.
type EmbeddingWriter interface {
	ReplaceEmbeddings(ctx context.Context, embeddings ...*core.Embedding) error
}

// BatchProcessor re-embeds batches of chunks.
type BatchProcessor struct {
	writer         EmbeddingWriter
	embedder       BatchEmbedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each batch
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(writer EmbeddingWriter, embedder BatchEmbedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		writer:         writer,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process embeds the content of chunks and replaces their stored embeddings.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Content
	}

	var vectors [][]float32
	err := embedding.RetryWithBackoff(ctx, func(ctx context.Context) error {
		var err error
		vectors, err = bp.embedder.EmbedBatch(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(chunks), len(vectors))
	}

	model := bp.embedder.Model()
	embeddings := make([]*core.Embedding, len(chunks))
	for i, chunk := range chunks {
		embeddings[i] = &core.Embedding{
			ChunkId: chunk.Id,
			BotId:   chunk.BotId,
			Model:   model,
			Vector:  vectors[i],
		}
	}

	if err := bp.writer.ReplaceEmbeddings(ctx, embeddings...); err != nil {
		return fmt.Errorf("failed to store embeddings: %w", err)
	}
	return nil
}

package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/knowbot/core"
	"github.com/poiesic/knowbot/similarity"
)

// DefaultTopK is the number of chunks retrieved when the caller doesn't say.
const DefaultTopK = 5

// ChunkStore loads a bot's chunk vectors.
type ChunkStore interface {
	FindChunksAndEmbeddingsForBot(ctx context.Context, botID string) ([]*core.ChunkWithEmbedding, error)
}

// QueryEmbedder embeds a single query text.
type QueryEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Result is the retrieved context for one query.
type Result struct {
	Chunks     []similarity.Match
	Confidence float64
}

// Retriever finds the chunks of a bot that best match a query.
type Retriever struct {
	chunks   ChunkStore
	embedder QueryEmbedder
	logger   *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRetriever creates a new retriever.
func NewRetriever(chunks ChunkStore, embedder QueryEmbedder, opts ...Option) (*Retriever, error) {
	if chunks == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	r := &Retriever{
		chunks:   chunks,
		embedder: embedder,
		logger:   slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "retrieval")

	return r, nil
}

// Retrieve returns up to topK chunks of botID ranked by similarity to query.
// A topK of zero or less uses DefaultTopK.
func (r *Retriever) Retrieve(ctx context.Context, botID, query string, topK int) (*Result, error) {
	return r.RetrieveWithMonitor(ctx, botID, query, topK, nil)
}

// RetrieveWithMonitor is Retrieve with callbacks at each stage of the process.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, botID, query string, topK int, monitor RetrievalMonitor) (*Result, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	monitor.Start(botID, query)

	// 1. Embed the query
	queryVector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Error("error generating embedding for query", "bot", botID, "err", err)
		return nil, err
	}
	monitor.AfterQueryEmbedding(len(queryVector))

	// 2. Load candidates, keeping only vectors comparable with the query
	stored, err := r.chunks.FindChunksAndEmbeddingsForBot(ctx, botID)
	if err != nil {
		r.logger.Error("error loading chunk embeddings", "bot", botID, "err", err)
		return nil, err
	}
	candidates := make([]similarity.Candidate, 0, len(stored))
	for _, s := range stored {
		if len(s.Vector) != len(queryVector) {
			continue
		}
		candidates = append(candidates, similarity.Candidate{
			Id:       s.Chunk.Id,
			Content:  s.Chunk.Content,
			Metadata: s.Chunk.Metadata,
			Vector:   s.Vector,
		})
	}
	if dropped := len(stored) - len(candidates); dropped > 0 {
		r.logger.Warn("ignoring embeddings with mismatched dimensions",
			"bot", botID,
			"dropped", dropped,
			"dimensions", len(queryVector))
	}
	monitor.AfterCandidateLoad(len(stored), len(candidates))

	// 3. Rank
	result := &Result{Chunks: similarity.SearchTopK(queryVector, candidates, topK)}
	if len(result.Chunks) > 0 {
		result.Confidence = result.Chunks[0].Similarity
	}
	r.logger.Debug("retrieved context",
		"bot", botID,
		"candidates", len(candidates),
		"matches", len(result.Chunks),
		"confidence", result.Confidence)
	monitor.Finish(result)

	return result, nil
}

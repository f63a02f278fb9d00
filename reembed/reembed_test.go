package reembed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/poiesic/knowbot/ai/mock"
	"github.com/poiesic/knowbot/core"
	"github.com/poiesic/knowbot/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder returns fixed-size vectors and can fail the first calls.
type countingEmbedder struct {
	dim      int
	failures int
	calls    int
	sizes    []int
	short    bool
}

func (e *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	e.sizes = append(e.sizes, len(texts))
	if e.calls <= e.failures {
		return nil, errors.New("temporary failure")
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = mock.DeterministicVector(text, e.dim)
	}
	if e.short {
		vectors = vectors[:len(vectors)-1]
	}
	return vectors, nil
}

func (e *countingEmbedder) Model() string { return "model-v2" }

func seedChunks(t *testing.T, repos *badger.Repositories, n int) *core.Bot {
	t.Helper()
	ctx := t.Context()
	bot, err := repos.Bots.AddBot(ctx, &core.Bot{Name: "Docs"})
	require.NoError(t, err)
	sources, err := repos.Sources.AddSources(ctx, &core.Source{BotId: bot.Id, Kind: core.SourceKindURL, Locator: "https://docs.test/"})
	require.NoError(t, err)

	for i := range n {
		chunk, err := repos.Chunks.CreateChunk(ctx, &core.Chunk{
			BotId:    bot.Id,
			SourceId: sources[0].Id,
			Content:  fmt.Sprintf("chunk number %d", i),
		})
		require.NoError(t, err)
		require.NoError(t, repos.Chunks.CreateEmbedding(ctx, &core.Embedding{
			ChunkId: chunk.Id,
			BotId:   bot.Id,
			Model:   "model-v1",
			Vector:  []float32{1, 0, 0, 0},
		}))
	}
	return bot
}

func setupRepos(t *testing.T) *badger.Repositories {
	t.Helper()
	repos, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })
	return repos
}

func TestChunkIterator_BatchSizes(t *testing.T) {
	repos := setupRepos(t)
	bot := seedChunks(t, repos, 25)

	tests := []struct {
		batchSize int
		want      []int
	}{
		{batchSize: 10, want: []int{10, 10, 5}},
		{batchSize: 25, want: []int{25}},
		{batchSize: 100, want: []int{25}},
		{batchSize: 0, want: []int{25}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("batch %d", tt.batchSize), func(t *testing.T) {
			it := NewChunkIterator(repos.Chunks, tt.batchSize)
			var sizes []int
			var last core.ID
			err := it.ForEach(t.Context(), bot.Id, func(chunks []*core.Chunk) error {
				sizes = append(sizes, len(chunks))
				for _, c := range chunks {
					assert.Greater(t, c.Id, last, "chunks arrive in id order")
					last = c.Id
				}
				return nil
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, sizes)
		})
	}
}

func TestChunkIterator_StopsOnError(t *testing.T) {
	repos := setupRepos(t)
	bot := seedChunks(t, repos, 10)

	boom := errors.New("boom")
	calls := 0
	err := NewChunkIterator(repos.Chunks, 3).ForEach(t.Context(), bot.Id, func([]*core.Chunk) error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestChunkIterator_ContextCancellation(t *testing.T) {
	repos := setupRepos(t)
	bot := seedChunks(t, repos, 10)

	ctx, cancel := context.WithCancel(t.Context())
	calls := 0
	err := NewChunkIterator(repos.Chunks, 3).ForEach(ctx, bot.Id, func([]*core.Chunk) error {
		calls++
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestBatchProcessor_Retry(t *testing.T) {
	repos := setupRepos(t)
	bot := seedChunks(t, repos, 3)
	chunks, err := repos.Chunks.ListChunks(t.Context(), bot.Id, 0, 10)
	require.NoError(t, err)

	embedder := &countingEmbedder{dim: 8, failures: 2}
	bp := NewBatchProcessor(repos.Chunks, embedder, 3, time.Millisecond)
	require.NoError(t, bp.Process(t.Context(), chunks))
	assert.Equal(t, 3, embedder.calls)

	stored, err := repos.Chunks.FindChunksAndEmbeddingsForBot(t.Context(), bot.Id)
	require.NoError(t, err)
	for _, s := range stored {
		assert.Len(t, s.Vector, 8)
	}
}

func TestBatchProcessor_Errors(t *testing.T) {
	repos := setupRepos(t)
	bot := seedChunks(t, repos, 3)
	chunks, err := repos.Chunks.ListChunks(t.Context(), bot.Id, 0, 10)
	require.NoError(t, err)

	t.Run("attempts exhausted", func(t *testing.T) {
		embedder := &countingEmbedder{dim: 8, failures: 10}
		err := NewBatchProcessor(repos.Chunks, embedder, 2, time.Millisecond).Process(t.Context(), chunks)
		assert.ErrorContains(t, err, "after 2 attempts")
		assert.Equal(t, 2, embedder.calls)
	})

	t.Run("count mismatch", func(t *testing.T) {
		embedder := &countingEmbedder{dim: 8, short: true}
		err := NewBatchProcessor(repos.Chunks, embedder, 1, time.Millisecond).Process(t.Context(), chunks)
		assert.ErrorContains(t, err, "count mismatch")
	})

	t.Run("empty batch", func(t *testing.T) {
		embedder := &countingEmbedder{dim: 8}
		require.NoError(t, NewBatchProcessor(repos.Chunks, embedder, 1, time.Millisecond).Process(t.Context(), nil))
		assert.Zero(t, embedder.calls)
	})
}

func TestNewReembedder(t *testing.T) {
	repos := setupRepos(t)
	_, err := NewReembedder(nil, &countingEmbedder{}, nil, nil)
	assert.ErrorIs(t, err, ErrChunkRepositoryRequired)
	_, err = NewReembedder(repos.Chunks, nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}

func TestReembedder_Run(t *testing.T) {
	repos := setupRepos(t)
	bot := seedChunks(t, repos, 23)

	var buf bytes.Buffer
	embedder := &countingEmbedder{dim: 16}
	config := &Config{BatchSize: 10, ReportInterval: 10, MaxRetries: 1, RetryDelay: time.Millisecond}
	r, err := NewReembedder(repos.Chunks, embedder, config, &buf)
	require.NoError(t, err)

	processed, err := r.Run(t.Context(), bot.Id)
	require.NoError(t, err)
	assert.Equal(t, 23, processed)
	assert.Equal(t, []int{10, 10, 3}, embedder.sizes)

	stored, err := repos.Chunks.FindChunksAndEmbeddingsForBot(t.Context(), bot.Id)
	require.NoError(t, err)
	require.Len(t, stored, 23)
	for _, s := range stored {
		assert.Equal(t, mock.DeterministicVector(s.Chunk.Content, 16), s.Vector)
	}

	output := buf.String()
	assert.Contains(t, output, "Re-embedding 23 chunks with model-v2")
	assert.Contains(t, output, "23/23 chunks")
	assert.Contains(t, output, "Re-embedding complete")
}

func TestReembedder_EmptyBot(t *testing.T) {
	repos := setupRepos(t)
	var buf bytes.Buffer
	r, err := NewReembedder(repos.Chunks, &countingEmbedder{dim: 4}, nil, &buf)
	require.NoError(t, err)

	processed, err := r.Run(t.Context(), "no-such-bot")
	require.NoError(t, err)
	assert.Zero(t, processed)
	assert.Contains(t, buf.String(), "No chunks found")
}

func TestReembedder_EmbeddingError(t *testing.T) {
	repos := setupRepos(t)
	bot := seedChunks(t, repos, 5)

	config := &Config{BatchSize: 2, ReportInterval: 2, MaxRetries: 1, RetryDelay: time.Millisecond}
	r, err := NewReembedder(repos.Chunks, &countingEmbedder{dim: 4, failures: 100}, config, io.Discard)
	require.NoError(t, err)

	processed, err := r.Run(t.Context(), bot.Id)
	assert.Error(t, err)
	assert.Zero(t, processed)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()
	assert.Equal(t, DefaultBatchSize, config.BatchSize)
	assert.Equal(t, 3, config.MaxRetries)
	assert.Equal(t, time.Second, config.RetryDelay)
}

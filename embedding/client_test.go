package embedding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/knowbot/ai"
	"github.com/poiesic/knowbot/ai/mock"
	"github.com/poiesic/knowbot/cache"
	"github.com/poiesic/knowbot/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupClient(t *testing.T, opts ...Option) (*Client, *mock.MockEmbedder) {
	t.Helper()
	embedder := mock.NewMockEmbedder()
	embedder.Dimensions = 8
	provider := mock.NewMockProviderWithServices(embedder, mock.NewMockCompleter())

	vectors, err := cache.NewTTL[[]float32](DefaultCacheTTL, 1000)
	require.NoError(t, err)
	t.Cleanup(vectors.Close)

	opts = append([]Option{WithRetry(1, time.Millisecond)}, opts...)
	client, err := NewClient(provider, vectors, opts...)
	require.NoError(t, err)
	return client, embedder
}

func TestNewClient(t *testing.T) {
	vectors, err := cache.NewTTL[[]float32](time.Minute, 10)
	require.NoError(t, err)
	defer vectors.Close()

	t.Run("requires provider", func(t *testing.T) {
		_, err := NewClient(nil, vectors)
		assert.ErrorIs(t, err, ErrAIProviderRequired)
	})

	t.Run("requires cache", func(t *testing.T) {
		_, err := NewClient(mock.NewMockProvider(), nil)
		assert.ErrorIs(t, err, ErrCacheRequired)
	})

	t.Run("rejects invalid options", func(t *testing.T) {
		_, err := NewClient(mock.NewMockProvider(), vectors, WithMaxInputRunes(0))
		assert.Error(t, err)
		_, err = NewClient(mock.NewMockProvider(), vectors, WithRetry(0, time.Second))
		assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
	})

	t.Run("records model", func(t *testing.T) {
		client, err := NewClient(mock.NewMockProvider(), vectors)
		require.NoError(t, err)
		assert.Equal(t, "mock-embedding", client.Model())
	})
}

func TestEmbed_CacheHit(t *testing.T) {
	client, embedder := setupClient(t)

	first, err := client.Embed(t.Context(), "What are your opening hours?")
	require.NoError(t, err)
	second, err := client.Embed(t.Context(), "  what are   your opening HOURS? ")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, embedder.CallCount(), "normalized repeat should hit the cache")
}

func TestEmbed_ReturnsCopies(t *testing.T) {
	client, _ := setupClient(t)

	first, err := client.Embed(t.Context(), "hello")
	require.NoError(t, err)
	first[0] = 42

	second, err := client.Embed(t.Context(), "hello")
	require.NoError(t, err)
	assert.NotEqual(t, float32(42), second[0])
}

func TestEmbed_ConcurrentCallsShareOneUpstreamCall(t *testing.T) {
	client, embedder := setupClient(t)

	release := make(chan struct{})
	embedder.CreateEmbeddingsFunc = func(ctx context.Context, texts []string) ([]ai.IndexedEmbedding, error) {
		<-release
		return []ai.IndexedEmbedding{{Index: 0, Vector: mock.DeterministicVector(texts[0], 8)}}, nil
	}

	const callers = 10
	results := make([][]float32, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = client.Embed(t.Context(), "shared question")
		}(i)
	}

	require.Eventually(t, func() bool { return embedder.CallCount() == 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, 1, embedder.CallCount())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
}

func TestEmbed_CallerCancellationDoesNotAbortUpstream(t *testing.T) {
	client, embedder := setupClient(t)

	release := make(chan struct{})
	embedder.CreateEmbeddingsFunc = func(ctx context.Context, texts []string) ([]ai.IndexedEmbedding, error) {
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return []ai.IndexedEmbedding{{Index: 0, Vector: []float32{1, 2}}}, nil
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		_, err := client.Embed(ctx, "slow")
		done <- err
	}()

	require.Eventually(t, func() bool { return embedder.CallCount() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	close(release)
	assert.Eventually(t, func() bool {
		v, err := client.Embed(t.Context(), "slow")
		return err == nil && len(v) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, embedder.CallCount())
}

func TestEmbed_TruncatesInput(t *testing.T) {
	client, embedder := setupClient(t, WithMaxInputRunes(5))

	_, err := client.Embed(t.Context(), "héllo world")
	require.NoError(t, err)
	assert.Equal(t, []string{"héllo"}, embedder.Texts())
}

func TestEmbed_ProviderError(t *testing.T) {
	client, embedder := setupClient(t)
	cause := errors.New("connection refused")
	embedder.CreateEmbeddingsFunc = func(ctx context.Context, texts []string) ([]ai.IndexedEmbedding, error) {
		return nil, cause
	}

	_, err := client.Embed(t.Context(), "anything")
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbeddingProvider)
	assert.ErrorIs(t, err, cause)

	var providerErr *ProviderError
	assert.ErrorAs(t, err, &providerErr)
}

func TestEmbed_Timeout(t *testing.T) {
	client, embedder := setupClient(t, WithTimeout(10*time.Millisecond))
	embedder.CreateEmbeddingsFunc = func(ctx context.Context, texts []string) ([]ai.IndexedEmbedding, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	_, err := client.Embed(t.Context(), "too slow")
	assert.ErrorIs(t, err, core.ErrEmbeddingProvider)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEmbedBatch_RestoresInputOrder(t *testing.T) {
	client, embedder := setupClient(t)
	embedder.CreateEmbeddingsFunc = func(ctx context.Context, texts []string) ([]ai.IndexedEmbedding, error) {
		results := make([]ai.IndexedEmbedding, 0, len(texts))
		for i := len(texts) - 1; i >= 0; i-- {
			results = append(results, ai.IndexedEmbedding{Index: i, Vector: []float32{float32(i)}})
		}
		return results, nil
	}

	vectors, err := client.EmbedBatch(t.Context(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0}, {1}, {2}}, vectors)
}

func TestEmbedBatch_BypassesCache(t *testing.T) {
	client, embedder := setupClient(t)

	_, err := client.EmbedBatch(t.Context(), []string{"same"})
	require.NoError(t, err)
	_, err = client.EmbedBatch(t.Context(), []string{"same"})
	require.NoError(t, err)
	_, err = client.Embed(t.Context(), "same")
	require.NoError(t, err)

	assert.Equal(t, 3, embedder.CallCount())
}

func TestEmbedBatch_Empty(t *testing.T) {
	client, embedder := setupClient(t)

	vectors, err := client.EmbedBatch(t.Context(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Zero(t, embedder.CallCount())
}

func TestEmbedBatch_Mismatch(t *testing.T) {
	tests := []struct {
		name    string
		results []ai.IndexedEmbedding
	}{
		{"too few", []ai.IndexedEmbedding{{Index: 0, Vector: []float32{1}}}},
		{"duplicate index", []ai.IndexedEmbedding{{Index: 0, Vector: []float32{1}}, {Index: 0, Vector: []float32{2}}}},
		{"out of range", []ai.IndexedEmbedding{{Index: 0, Vector: []float32{1}}, {Index: 5, Vector: []float32{2}}}},
		{"empty vector", []ai.IndexedEmbedding{{Index: 0, Vector: []float32{1}}, {Index: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, embedder := setupClient(t)
			embedder.CreateEmbeddingsFunc = func(ctx context.Context, texts []string) ([]ai.IndexedEmbedding, error) {
				return tt.results, nil
			}

			_, err := client.EmbedBatch(t.Context(), []string{"a", "b"})
			assert.ErrorIs(t, err, ErrResultMismatch)
			assert.ErrorIs(t, err, core.ErrEmbeddingProvider)
		})
	}
}

func TestEmbedBatch_Retries(t *testing.T) {
	client, embedder := setupClient(t, WithRetry(3, time.Millisecond))
	embedder.CreateEmbeddingsFunc = func(ctx context.Context, texts []string) ([]ai.IndexedEmbedding, error) {
		if embedder.CallCount() < 2 {
			return nil, errors.New("rate limited")
		}
		return []ai.IndexedEmbedding{{Index: 0, Vector: []float32{1}}}, nil
	}

	vectors, err := client.EmbedBatch(t.Context(), []string{"retry me"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}}, vectors)
	assert.Equal(t, 2, embedder.CallCount())
}

func TestEmbedBatch_GivesUp(t *testing.T) {
	client, embedder := setupClient(t, WithRetry(2, time.Millisecond))
	embedder.CreateEmbeddingsFunc = func(ctx context.Context, texts []string) ([]ai.IndexedEmbedding, error) {
		return nil, errors.New("down")
	}

	_, err := client.EmbedBatch(t.Context(), []string{"x"})
	assert.ErrorIs(t, err, core.ErrEmbeddingProvider)
	assert.Equal(t, 2, embedder.CallCount())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab", truncate("abc", 2))
	assert.Equal(t, "日本", truncate("日本語", 2))
	assert.Equal(t, strings.Repeat("x", 3), truncate(strings.Repeat("x", 10), 3))
}

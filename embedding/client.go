package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/poiesic/knowbot/ai"
	"github.com/poiesic/knowbot/cache"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultMaxInputRunes is the provider input limit applied to every text.
	DefaultMaxInputRunes = 8000
	// DefaultTimeout bounds each upstream call.
	DefaultTimeout = 20 * time.Second
	// DefaultCacheTTL is how long a query embedding stays cached.
	DefaultCacheTTL = time.Hour

	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
)

// Client embeds texts through an ai.Embedder.
// It is safe for concurrent use by multiple goroutines.
type Client struct {
	embedder       ai.Embedder
	model          string
	cache          *cache.TTL[[]float32]
	group          singleflight.Group
	maxInputRunes  int
	timeout        time.Duration
	maxAttempts    int
	retryBaseDelay time.Duration
	logger         *slog.Logger
}

// Option configures a Client.
type Option func(*Client) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "embedding")
		return nil
	}
}

// WithMaxInputRunes sets the length texts are truncated to before they are sent.
func WithMaxInputRunes(n int) Option {
	return func(c *Client) error {
		if n <= 0 {
			return fmt.Errorf("max input runes must be greater than 0, got %d", n)
		}
		c.maxInputRunes = n
		return nil
	}
}

// WithTimeout sets the deadline of each upstream call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", timeout)
		}
		c.timeout = timeout
		return nil
	}
}

// WithRetry sets how EmbedBatch retries failed calls.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *Client) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		c.maxAttempts = maxAttempts
		c.retryBaseDelay = baseDelay
		return nil
	}
}

// NewClient creates an embedding client for provider's embedder.
// Cached query vectors are stored in embeddings, which is owned by the caller.
func NewClient(provider ai.AIProvider, embeddings *cache.TTL[[]float32], opts ...Option) (*Client, error) {
	if provider == nil {
		return nil, ErrAIProviderRequired
	}
	if embeddings == nil {
		return nil, ErrCacheRequired
	}

	c := &Client{
		embedder:       provider.Embedder(),
		model:          provider.EmbeddingModel(),
		cache:          embeddings,
		maxInputRunes:  DefaultMaxInputRunes,
		timeout:        DefaultTimeout,
		maxAttempts:    defaultMaxAttempts,
		retryBaseDelay: defaultRetryBaseDelay,
		logger:         slog.Default().With("component", "embedding"),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Model names the embedding model behind this client.
func (c *Client) Model() string {
	return c.model
}

// Embed returns the vector for text, served from the cache when possible.
// Concurrent calls whose texts normalize to the same key share one upstream
// call. The upstream call runs to completion even if ctx is canceled, so
// other waiters and the cache still receive its result.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cache.Normalize(text)
	if vector, ok := c.cache.Get(key); ok {
		c.logger.Debug("embedding cache hit", "key_len", len(key))
		return slices.Clone(vector), nil
	}

	detached := context.WithoutCancel(ctx)
	results := c.group.DoChan(key, func() (any, error) {
		if vector, ok := c.cache.Get(key); ok {
			return vector, nil
		}

		callCtx, cancel := context.WithTimeout(detached, c.timeout)
		defer cancel()
		vectors, err := c.call(callCtx, []string{text})
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, vectors[0])
		return vectors[0], nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]float32)), nil
	}
}

// EmbedBatch embeds texts in one upstream call, retrying with exponential
// backoff. Results are in input order. The cache is neither read nor written.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var vectors [][]float32
	err := retryWithBackoff(ctx, c.logger, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		var err error
		vectors, err = c.call(callCtx, texts)
		return err
	}, c.maxAttempts, c.retryBaseDelay)
	if err != nil {
		var providerErr *ProviderError
		if !errors.As(err, &providerErr) {
			err = &ProviderError{Err: err}
		}
		return nil, err
	}
	return vectors, nil
}

// call makes one provider request and returns the vectors in input order.
func (c *Client) call(ctx context.Context, texts []string) ([][]float32, error) {
	inputs := make([]string, len(texts))
	for i, text := range texts {
		inputs[i] = truncate(text, c.maxInputRunes)
	}

	start := time.Now()
	results, err := c.embedder.CreateEmbeddings(ctx, inputs)
	if err != nil {
		c.logger.Error("embedding provider call failed", "texts", len(inputs), "err", err)
		return nil, &ProviderError{Err: err}
	}
	c.logger.Debug("embedding provider call", "texts", len(inputs), "elapsed", time.Since(start))

	if len(results) != len(inputs) {
		return nil, &ProviderError{Err: fmt.Errorf("%w: expected %d vectors, got %d", ErrResultMismatch, len(inputs), len(results))}
	}
	vectors := make([][]float32, len(inputs))
	for _, result := range results {
		if result.Index < 0 || result.Index >= len(inputs) || vectors[result.Index] != nil {
			return nil, &ProviderError{Err: fmt.Errorf("%w: unexpected index %d", ErrResultMismatch, result.Index)}
		}
		if len(result.Vector) == 0 {
			return nil, &ProviderError{Err: fmt.Errorf("%w: empty vector at index %d", ErrResultMismatch, result.Index)}
		}
		vectors[result.Index] = result.Vector
	}
	return vectors, nil
}

func truncate(text string, maxRunes int) string {
	if len(text) <= maxRunes {
		return text
	}
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	return string(runes[:maxRunes])
}

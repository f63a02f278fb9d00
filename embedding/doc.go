// Package embedding wraps the embedding provider with a TTL cache,
// in-flight request coalescing, input truncation and timeouts.
//
// Single-text calls (Embed) serve visitor queries and are cached by
// normalized text: concurrent requests for the same key share one upstream
// call. Batch calls (EmbedBatch) serve training, bypass the cache and retry
// with exponential backoff.
//
// Every provider failure is returned as a *ProviderError, which matches
// core.ErrEmbeddingProvider under errors.Is.
package embedding

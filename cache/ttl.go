package cache

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// ErrInvalidCapacity is returned when a cache is configured without room for entries.
var ErrInvalidCapacity = errors.New("cache capacity must be greater than 0")

// TTL is a concurrency-safe string-keyed cache whose entries expire after a
// fixed time to live. Expired entries are dropped lazily on read.
type TTL[V any] struct {
	cache *ristretto.Cache[string, V]
	ttl   time.Duration
}

// NewTTL creates a cache holding up to maxEntries values for ttl each.
// A ttl of zero keeps entries until they are evicted or deleted.
func NewTTL[V any](ttl time.Duration, maxEntries int64) (*TTL[V], error) {
	if maxEntries <= 0 {
		return nil, ErrInvalidCapacity
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters:        maxEntries * 10,
		MaxCost:            maxEntries,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	return &TTL[V]{cache: c, ttl: ttl}, nil
}

// Get returns the live value stored under key.
func (t *TTL[V]) Get(key string) (V, bool) {
	return t.cache.Get(key)
}

// Set stores value under key. The write is visible to Get once Set returns.
func (t *TTL[V]) Set(key string, value V) {
	t.cache.SetWithTTL(key, value, 1, t.ttl)
	t.cache.Wait()
}

// Delete removes key if present.
func (t *TTL[V]) Delete(key string) {
	t.cache.Del(key)
}

// Clear removes every entry.
func (t *TTL[V]) Clear() {
	t.cache.Clear()
}

// Close stops the cache's background goroutines. The cache must not be used afterwards.
func (t *TTL[V]) Close() {
	t.cache.Close()
}

// Normalize turns text into a cache key: lowercased, trimmed and with every
// whitespace run collapsed to one space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

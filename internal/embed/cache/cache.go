// Package cache provides a bounded in-memory LRU for computed embeddings.
// A popular query or a frequently "find similar" item is embedded once and
// served from memory afterwards; misses only cost one embedding call.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/archivio/semsearch/internal/metrics"
)

// DefaultCapacity bounds the cache when no capacity is configured.
const DefaultCapacity = 1000

// Cache is a fixed-capacity LRU mapping content keys to embedding vectors.
// Capacity is set at construction and not adjustable while running.
// Safe for concurrent use; concurrent GetOrCompute calls with the same key
// coalesce into a single compute.
type Cache struct {
	entries    *lru.Cache[string, []float32]
	group      singleflight.Group
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a Cache. cacheTotal is a counter vec with label "result"
// ("hit"/"miss"), passed explicitly; nil disables metrics.
func New(capacity int, cacheTotal *prometheus.CounterVec, logger *zap.Logger) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := lru.New[string, []float32](capacity)
	if err != nil {
		// lru.New only fails on non-positive size, which is guarded above.
		entries, _ = lru.New[string, []float32](DefaultCapacity)
	}
	return &Cache{
		entries:    entries,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Key derives the cache key for a piece of text: SHA-256 of the content, so
// identical text shares one entry regardless of which item it came from.
func Key(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

// GetOrCompute returns the cached vector for key, marking it most recently
// used, or runs compute, stores the result and evicts the least recently
// used entry if capacity is exceeded. Concurrent calls with the same key run
// compute once; a failed compute caches nothing.
func (c *Cache) GetOrCompute(
	ctx context.Context, key string, compute func(ctx context.Context) ([]float32, error),
) ([]float32, error) {
	if vec, ok := c.entries.Get(key); ok {
		c.inc("hit")
		return vec, nil
	}

	c.inc("miss")

	vec, err, shared := c.group.Do(key, func() (any, error) {
		// A coalesced caller may arrive after the winner stored the entry.
		if vec, ok := c.entries.Get(key); ok {
			return vec, nil
		}

		vec, err := compute(ctx)
		if err != nil {
			return nil, fmt.Errorf("compute embedding: %w", err)
		}

		if evicted := c.entries.Add(key, vec); evicted {
			c.logger.Debug("Evicted least-recently-used embedding", zap.String("key", key))
		}
		metrics.EmbeddingCacheEntries.Set(float64(c.entries.Len()))
		return vec, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("Coalesced concurrent embedding computation", zap.String("key", key))
	}

	return vec.([]float32), nil
}

// Invalidate drops the entry for key, e.g. when the source content changed.
// Reports whether an entry was present.
func (c *Cache) Invalidate(key string) bool {
	removed := c.entries.Remove(key)
	if removed {
		metrics.EmbeddingCacheEntries.Set(float64(c.entries.Len()))
	}
	return removed
}

// Len returns the current number of cached embeddings.
func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) inc(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

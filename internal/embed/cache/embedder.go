package cache

import (
	"context"

	"github.com/archivio/semsearch/internal/domain"
)

// Embedder wraps a domain.Embedder with a Cache. Hits report zero token
// usage since no provider call happened.
type Embedder struct {
	inner domain.Embedder
	cache *Cache
}

// NewEmbedder decorates inner with cache.
func NewEmbedder(inner domain.Embedder, cache *Cache) *Embedder {
	return &Embedder{inner: inner, cache: cache}
}

func (e *Embedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	// On a hit compute never runs, so usage stays zero.
	var usage domain.EmbeddingResult
	vec, err := e.cache.GetOrCompute(ctx, Key(text), func(ctx context.Context) ([]float32, error) {
		res, err := e.inner.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		usage = res
		return res.Embedding, nil
	})
	if err != nil {
		return domain.EmbeddingResult{}, err
	}

	return domain.EmbeddingResult{
		Embedding:    vec,
		PromptTokens: usage.PromptTokens,
		TotalTokens:  usage.TotalTokens,
	}, nil
}

// Invalidate drops the cached embedding for text, if present.
func (e *Embedder) Invalidate(text string) bool {
	return e.cache.Invalidate(Key(text))
}

package embcache

import (
	"context"

	"github.com/quarry-ai/quarry/ai"
	"github.com/quarry-ai/quarry/core"
)

// Embedder decorates an ai.Embedder with the hash-keyed cache. Cache
// failures degrade to pass-through: an unreadable or unwritable cache
// never blocks ingestion.
type Embedder struct {
	inner ai.Embedder
	cache *Cache
}

var _ ai.Embedder = (*Embedder)(nil)

// NewEmbedder wraps inner with cache.
func NewEmbedder(inner ai.Embedder, cache *Cache) *Embedder {
	return &Embedder{inner: inner, cache: cache}
}

// EmbedText returns the cached vector for text when present, otherwise
// embeds through the inner client and stores the result.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	hash := core.HashContent(text)

	if cached, err := e.cache.Get(hash); err != nil {
		e.cache.logger.Warn("embedding cache read failed", "err", err)
	} else if cached != nil {
		return cached, nil
	}

	vector, err := e.inner.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.Put(hash, vector); err != nil {
		e.cache.logger.Warn("embedding cache write failed", "err", err)
	}
	return vector, nil
}

// EmbedTexts embeds a batch, serving each element from the cache where
// possible and embedding only the misses.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/storeloom/searchcore/internal/cache"
)

// CachedEmbedder memoizes query embeddings in redis. Cache failures are
// logged and treated as misses; embedding still happens.
type CachedEmbedder struct {
	inner Embedder
	cache *cache.Cache
	model string
	ttl   time.Duration
}

func NewCachedEmbedder(inner Embedder, c *cache.Cache, model string, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: c, model: model, ttl: ttl}
}

// Embed passes batches straight through. Backfill batches are one-shot per
// product, so caching them buys nothing.
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return e.inner.Embed(ctx, texts)
}

func (e *CachedEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := e.cacheKey(text)

	var vec []float32
	err := e.cache.Get(ctx, key, &vec)
	if err == nil && len(vec) > 0 {
		return vec, nil
	}
	if err != nil && !errors.Is(err, cache.ErrMiss) {
		slog.Warn("embedding cache read failed", "error", err)
	}

	vec, err = e.inner.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.Set(ctx, key, vec, e.ttl); err != nil {
		slog.Warn("embedding cache write failed", "error", err)
	}
	return vec, nil
}

func (e *CachedEmbedder) cacheKey(text string) string {
	sum := sha256.Sum256([]byte(e.model + "\x00" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}

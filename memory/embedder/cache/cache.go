// Package cache decorates an Embedder with a ristretto-backed lookup so
// repeated texts are embedded once. Conversational sessions re-embed the
// same utterances often: every persisted exchange is also the next
// retrieval query, and local ONNX inference is the slowest step in a
// turn.
package cache

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/voxmind/aria/memory"
)

// Config configures the cache.
type Config struct {
	// MaxBytes bounds the total cached vector size. Default: 16 MiB,
	// roughly ten thousand MiniLM vectors.
	MaxBytes int64
}

// Embedder wraps an inner embedder with a cache keyed by exact text.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// New creates a caching embedder around inner.
func New(inner memory.Embedder, cfg Config) (*Embedder, error) {
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 16 << 20
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     cfg.MaxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, or delegates to the inner
// embedder and caches the result. Admission is best-effort: a rejected
// Set only means the next identical text embeds again.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if hit, ok := e.cache.Get(text); ok {
		if vec, ok := hit.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, vec, int64(len(vec)*4))
	return vec, nil
}

// Dimensions returns the inner embedder's vector size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close stops the cache's background goroutines.
func (e *Embedder) Close() error {
	e.cache.Close()
	return nil
}

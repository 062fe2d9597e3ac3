// Package mock provides a deterministic embedder for tests. No model
// files are needed: vectors are derived from token hashes, so identical
// texts embed identically and texts sharing words land closer together
// than unrelated ones.
package mock

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// DefaultDimensions matches all-MiniLM-L6-v2 so mock and ONNX embedders
// are interchangeable in wiring.
const DefaultDimensions = 384

// Embedder is the deterministic test embedder.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder with DefaultDimensions.
func New() *Embedder {
	return NewWithDimensions(DefaultDimensions)
}

// NewWithDimensions creates a mock embedder with a custom vector size.
func NewWithDimensions(dims int) *Embedder {
	return &Embedder{dimensions: dims}
}

// Embed produces a unit vector as the normalized sum of per-token hash
// vectors. Purely local, never errors.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	embedding := make([]float32, e.dimensions)
	tokens := strings.Fields(strings.ToLower(text))
	if len(tokens) == 0 {
		tokens = []string{""}
	}
	for _, token := range tokens {
		addTokenVector(embedding, token)
	}
	return normalize(embedding), nil
}

// Dimensions returns the embedding size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

// addTokenVector accumulates a pseudo-random unit-ish vector seeded by
// the token's hash. A 64-bit LCG stretches the seed across dimensions.
func addTokenVector(acc []float32, token string) {
	h := fnv.New64a()
	h.Write([]byte(token))
	seed := h.Sum64()
	for i := range acc {
		seed = seed*6364136223846793005 + 1442695040888963407
		acc[i] += float32(int64(seed)) / float32(math.MaxInt64)
	}
}

func normalize(vec []float32) []float32 {
	var norm float32
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return vec
	}
	norm = float32(math.Sqrt(float64(norm)))
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = v / norm
	}
	return out
}

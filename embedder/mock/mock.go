// Package mock provides a deterministic hash-based embedder for tests
// and examples. Identical text always embeds to the identical unit
// vector, with no model download or native runtime required.
package mock

import (
	"context"
	"hash/fnv"
	"math"
)

const defaultDimensions = 384 // matches all-MiniLM-L6-v2

// Embedder generates pseudo-random unit vectors seeded by an FNV hash
// of the input text.
type Embedder struct {
	dimensions int
}

// New creates a mock embedder with the default dimensionality.
func New() *Embedder {
	return &Embedder{dimensions: defaultDimensions}
}

// Embed derives a deterministic embedding from text. The FNV-1a hash
// seeds a linear congruential generator, so similar but non-identical
// texts produce uncorrelated vectors.
func (m *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, m.dimensions)
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		vec[i] = float32(int64(seed)) / float32(math.MaxInt64)
	}
	return normalize(vec), nil
}

// Dimensions returns the embedding size.
func (m *Embedder) Dimensions() int {
	return m.dimensions
}

func normalize(vec []float32) []float32 {
	var sum float32
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(float64(sum)))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

package search

import (
	"context"
	"hash/fnv"
	"math"
)

const (
	// FallbackDimension is the vector size of the degraded embedder.
	FallbackDimension = 384

	// FallbackModelName identifies degraded vectors in index statistics.
	FallbackModelName = "random-fallback"
)

// FallbackEmbedder is a deterministic random-projection embedder used when
// no embedding service is reachable. Each term is hashed to a signed unit
// contribution in a fixed dimension; identical texts always map to identical
// vectors and texts sharing terms land close together.
type FallbackEmbedder struct {
	dim int
}

// NewFallbackEmbedder creates a fallback embedder producing FallbackDimension vectors.
func NewFallbackEmbedder() *FallbackEmbedder {
	return &FallbackEmbedder{dim: FallbackDimension}
}

// EmbedText embeds a single text.
func (f *FallbackEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	return f.embed(text), nil
}

// EmbedTexts embeds texts in order.
func (f *FallbackEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = f.embed(text)
	}
	return out, nil
}

// Dimension returns the vector size.
func (f *FallbackEmbedder) Dimension() int {
	return f.dim
}

func (f *FallbackEmbedder) embed(text string) []float32 {
	vec := make([]float64, f.dim)
	for _, term := range tokenizeAndFilter(text) {
		h := fnv.New64a()
		h.Write([]byte(term))
		sum := h.Sum64()
		// Each term touches a few dimensions to reduce collisions.
		for j := 0; j < 3; j++ {
			idx := int(sum % uint64(f.dim))
			sign := 1.0
			if (sum>>32)&1 == 1 {
				sign = -1.0
			}
			vec[idx] += sign
			sum = sum*6364136223846793005 + 1442695040888963407
		}
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, f.dim)
	if norm == 0 {
		// Empty text: a fixed unit vector keeps distances defined.
		out[0] = 1
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

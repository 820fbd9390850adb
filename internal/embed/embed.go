// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embed turns text into fixed-dimension vectors for the embedding
// index. Every Embedder returns L2-normalised vectors so that the dot
// product of two embeddings is their cosine similarity.
package embed

import (
	"context"
	"fmt"
	"math"

	"github.com/pdiddy/legal-responder/pkg/types"
)

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the length of every returned vector.
	Dimensions() int

	// Model identifies the embedding function. Vectors from different
	// models are not comparable.
	Model() string
}

// New returns the embedder selected by cfg.Provider.
func New(cfg types.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case types.EmbeddingHash, "":
		return NewHashEmbedder(cfg.Dimensions), nil
	case types.EmbeddingOpenAI:
		return NewOpenAIEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// Normalize scales v to unit length in place. Zero vectors are left as is.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}

// Cosine returns the cosine similarity of a and b in [-1, 1]. Vectors of
// different length or with zero norm have similarity 0.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	return math.Max(-1, math.Min(1, sim))
}

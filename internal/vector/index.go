// Package vector provides vector index implementations for chunk embeddings.
package vector

import (
	"context"
	"math"
)

// Index defines vector storage and similarity search over one dataset's
// chunks. Implementations must return results in a deterministic order:
// score descending, then ID ascending on ties.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Remove(ctx context.Context, ids []string) error
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// Result is a single vector search hit. ID is the chunk ID.
type Result struct {
	ID    string
	Score float64 // cosine similarity for unit vectors, clamped to [0,1] by callers
}

// InnerProduct returns the inner product of two vectors. For unit-normalized
// vectors this equals cosine similarity.
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// ClampScore clamps a similarity to [0,1] so fused scores stay comparable
// across signals.
func ClampScore(s float64) float64 {
	return math.Max(0, math.Min(1, s))
}

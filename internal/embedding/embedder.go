// Package embedding provides text embedding via an external provider API,
// with caching.
package embedding

import "context"

// Embedder produces vector embeddings for text. Implementations return unit
// vectors so inner product equals cosine similarity.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

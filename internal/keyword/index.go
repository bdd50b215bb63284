// Package keyword provides per-dataset full-text chunk indices backed by Bleve.
package keyword

import (
	"context"

	"github.com/Jumawebhub/qlex/internal/models"
)

// Result is a single keyword search hit.
type Result struct {
	ID    string
	Score float64
}

// Index is a full-text index over the chunks of one dataset. It widens the
// lexical candidate set beyond what dense retrieval surfaces; chunk text is
// the single searchable field.
type Index interface {
	// IndexChunks adds or replaces chunks by ID.
	IndexChunks(ctx context.Context, chunks []*models.Chunk) error
	// Search returns up to limit chunk IDs matching the query, best first.
	Search(ctx context.Context, query string, limit int) ([]*Result, error)
	// DeleteBySource removes all chunks whose source matches, returning how
	// many were removed.
	DeleteBySource(ctx context.Context, source string) (int, error)
	// DocCount returns the number of indexed chunks.
	DocCount() (uint64, error)
	// Close releases the index. Destroy closes it and removes it from disk.
	Close() error
	Destroy() error
}

package models

import "fmt"

// MinChunkLength is the minimum text length for a chunk to be stored.
// Shorter segments are noise (page numbers, headings, artifacts of PDF
// extraction) and are dropped silently during batch ingestion.
const MinChunkLength = 50

// Chunk is the atomic retrievable unit: a span of text from one source
// document with its embedding and provenance metadata. Either Page (PDF,
// 1-based) or Part (plain text paragraph, 0-based) is meaningful, selected
// by PageKey.
type Chunk struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	Source     string    `json:"source"`
	Page       int       `json:"page"`
	PageKey    string    `json:"page_key"` // "page" or "part"
	ChunkIndex int       `json:"chunk_index"`
	Embedding  []float32 `json:"-"`
}

// ChunkID derives the deterministic chunk identifier from the source
// filename, the document's position in its batch, and the chunk's position
// within the document. Identical inputs always produce the same ID, so
// re-ingesting a file overwrites its previous chunks.
func ChunkID(source string, docIndex, chunkIndex int) string {
	return fmt.Sprintf("%s_%d_%d", source, docIndex, chunkIndex)
}

// Metadata returns the chunk's provenance as the wire-format map used by the
// query API ({"source": ..., "page"|"part": ...}).
func (c *Chunk) Metadata() map[string]interface{} {
	key := c.PageKey
	if key == "" {
		key = "page"
	}
	return map[string]interface{}{
		"source": c.Source,
		key:      c.Page,
	}
}

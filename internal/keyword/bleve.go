package keyword

import (
	"context"
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"

	"github.com/Jumawebhub/qlex/internal/models"
)

// BleveIndex implements Index using Bleve, one index directory per dataset.
type BleveIndex struct {
	index bleve.Index
	path  string
}

// bleveChunk is the document shape stored in Bleve. Only text is scored;
// source is a keyword field used for exact-match deletion.
type bleveChunk struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// NewBleveIndex creates or opens a Bleve index at path. An existing index is
// opened and reused so unchanged chunks are not re-indexed; remove the
// directory to force a rebuild after a mapping change.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index, path: path}, nil
	}

	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so legal terms of
	// art match exactly; English stemming would conflate e.g. different
	// statutory forms.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	docMapping.AddFieldMappingsAt("source", bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index, path: path}, nil
}

// IndexChunks adds or replaces chunks in one batch. Indexing the same ID
// twice overwrites the previous document, matching the upsert semantics of
// the vector index.
func (b *BleveIndex) IndexChunks(ctx context.Context, chunks []*models.Chunk) error {
	batch := b.index.NewBatch()
	for _, c := range chunks {
		if err := batch.Index(c.ID, bleveChunk{Text: c.Text, Source: c.Source}); err != nil {
			return fmt.Errorf("failed to batch chunk %s: %w", c.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch index failed: %w", err)
	}
	return nil
}

// Search runs a match query over chunk text and returns up to limit hits.
func (b *BleveIndex) Search(ctx context.Context, queryStr string, limit int) ([]*Result, error) {
	q := bleve.NewMatchQuery(queryStr)
	q.SetField("text")
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*Result, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &Result{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

// DeleteBySource removes every chunk indexed under the given source.
func (b *BleveIndex) DeleteBySource(ctx context.Context, source string) (int, error) {
	q := bleve.NewTermQuery(source)
	q.SetField("source")
	req := bleve.NewSearchRequest(q)
	req.Size = 10000
	results, err := b.index.Search(req)
	if err != nil {
		return 0, fmt.Errorf("Bleve source lookup failed: %w", err)
	}
	batch := b.index.NewBatch()
	for _, hit := range results.Hits {
		batch.Delete(hit.ID)
	}
	if err := b.index.Batch(batch); err != nil {
		return 0, fmt.Errorf("Bleve batch delete failed: %w", err)
	}
	return len(results.Hits), nil
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// Destroy closes the index and removes its directory.
func (b *BleveIndex) Destroy() error {
	if err := b.index.Close(); err != nil {
		return err
	}
	return os.RemoveAll(b.path)
}

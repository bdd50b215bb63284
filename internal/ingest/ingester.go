// Package ingest turns documents into stored, indexed chunks: extract,
// filter, embed, and upsert in bounded batches.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Jumawebhub/qlex/internal/config"
	"github.com/Jumawebhub/qlex/internal/embedding"
	"github.com/Jumawebhub/qlex/internal/extract"
	"github.com/Jumawebhub/qlex/internal/models"
	"github.com/Jumawebhub/qlex/internal/store"
)

// Ingester writes documents into a dataset. All mutations of one dataset
// serialize through the store's per-dataset write lock, held for the whole
// ingestion run.
type Ingester struct {
	store     *store.ChunkStore
	embedder  embedding.Embedder
	extractor *extract.Extractor
	cfg       *config.IngestConfig
	logger    *zap.Logger
}

// Result summarizes one ingestion run.
type Result struct {
	ChunksAdded   int `json:"chunks_added"`
	ChunksDropped int `json:"chunks_dropped"`
	DocumentCount int `json:"document_count"`
}

// NewIngester creates an ingester with the given dependencies.
func NewIngester(
	chunkStore *store.ChunkStore,
	embedder embedding.Embedder,
	cfg *config.IngestConfig,
	logger *zap.Logger,
) *Ingester {
	return &Ingester{
		store:     chunkStore,
		embedder:  embedder,
		extractor: extract.NewExtractor(),
		cfg:       cfg,
		logger:    logger,
	}
}

// Extractor exposes the text extractor so callers spooling uploads can
// extract under the original filename rather than the spool path.
func (ing *Ingester) Extractor() *extract.Extractor {
	return ing.extractor
}

// Document is one unit of ingestion input: the chunk texts of a source
// document plus its provenance.
type Document struct {
	Source   string
	DocIndex int
	Sections []extract.Section
}

// IngestBatch ingests documents into a dataset. Chunks at or below the
// minimum length are dropped silently as noise (headers, page numbers,
// artifacts). Upserts run in batches; a failed batch is retried once after a
// backoff, and batches committed before a terminal failure stay committed.
func (ing *Ingester) IngestBatch(ctx context.Context, dataset string, docs []Document) (*Result, error) {
	if dataset == "" {
		return nil, fmt.Errorf("dataset name must not be empty: %w", models.ErrValidation)
	}
	for _, doc := range docs {
		if doc.Source == "" {
			return nil, fmt.Errorf("document source must not be empty: %w", models.ErrValidation)
		}
	}

	unlock, err := ing.store.LockDataset(dataset)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var chunks []*models.Chunk
	dropped := 0
	for _, doc := range docs {
		chunkIdx := 0
		for _, sec := range doc.Sections {
			text := strings.TrimSpace(sec.Text)
			if len(text) <= models.MinChunkLength {
				dropped++
				continue
			}
			chunks = append(chunks, &models.Chunk{
				ID:         models.ChunkID(doc.Source, doc.DocIndex, chunkIdx),
				Text:       text,
				Source:     doc.Source,
				Page:       sec.Position,
				PageKey:    sec.PositionKey,
				ChunkIndex: chunkIdx,
			})
			chunkIdx++
		}
	}

	result := &Result{ChunksDropped: dropped}
	for start := 0; start < len(chunks); start += ing.cfg.BatchSize {
		end := start + ing.cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		if err := ing.upsertBatchWithRetry(ctx, dataset, chunks[start:end]); err != nil {
			return result, err
		}
		result.ChunksAdded += end - start
	}

	docCount, err := ing.store.UniqueDocumentCount(ctx, dataset)
	if err != nil {
		return result, fmt.Errorf("failed to recount documents: %w", err)
	}
	result.DocumentCount = docCount
	ing.logger.Info("ingestion complete",
		zap.String("dataset", dataset),
		zap.Int("chunks_added", result.ChunksAdded),
		zap.Int("chunks_dropped", result.ChunksDropped),
		zap.Int("documents", docCount))
	return result, nil
}

// upsertBatchWithRetry embeds and upserts one batch, retrying once after a
// backoff. Upserts are idempotent per chunk ID, so retrying a partially
// applied batch is safe.
func (ing *Ingester) upsertBatchWithRetry(ctx context.Context, dataset string, batch []*models.Chunk) error {
	attempt := func() error {
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vecs, err := ing.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed batch: %w", err)
		}
		for i := range batch {
			batch[i].Embedding = vecs[i]
		}
		return ing.store.UpsertBatch(ctx, dataset, batch)
	}

	err := attempt()
	if err == nil {
		return nil
	}
	ing.logger.Warn("batch failed, retrying once",
		zap.String("dataset", dataset), zap.Error(err))
	select {
	case <-time.After(time.Duration(ing.cfg.RetryBackoffMS) * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := attempt(); err != nil {
		return fmt.Errorf("batch failed after retry: %w", err)
	}
	return nil
}

// IngestFile extracts a single file and ingests it. A file yielding no
// sections adds zero chunks without error.
func (ing *Ingester) IngestFile(ctx context.Context, dataset, path string, docIndex int) (*Result, error) {
	sections, err := ing.extractor.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("extraction failed for %s: %w", path, err)
	}
	return ing.IngestBatch(ctx, dataset, []Document{{
		Source:   filepath.Base(path),
		DocIndex: docIndex,
		Sections: sections,
	}})
}

// IngestDirectory ingests every supported file directly under dir, in name
// order so document indices are stable across runs.
func (ing *Ingester) IngestDirectory(ctx context.Context, dataset, dir string) (*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !extract.Supported(filepath.Ext(entry.Name())) {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	var docs []Document
	for i, path := range paths {
		sections, err := ing.extractor.Extract(path)
		if err != nil {
			ing.logger.Warn("skipping unreadable file",
				zap.String("path", path), zap.Error(err))
			continue
		}
		docs = append(docs, Document{
			Source:   filepath.Base(path),
			DocIndex: i,
			Sections: sections,
		})
	}
	return ing.IngestBatch(ctx, dataset, docs)
}

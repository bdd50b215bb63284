// Package store persists chunks and manages the per-dataset vector and
// keyword indices built over them. SQLite rows are the durable record; the
// indices are derived state rebuilt or reloaded from disk on open.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Jumawebhub/qlex/internal/keyword"
	"github.com/Jumawebhub/qlex/internal/models"
	"github.com/Jumawebhub/qlex/internal/vector"
)

// Options configures a ChunkStore.
type Options struct {
	// DBPath is the SQLite database holding chunk rows.
	DBPath string
	// DataDir is the root directory for per-dataset index files.
	DataDir string
	// Dimensions is the embedding dimension of the vector indices.
	Dimensions int
	// IndexType selects the vector index implementation ("hnsw" or "memory").
	IndexType string
	// HNSW tunes the graph when IndexType is "hnsw".
	HNSW vector.HNSWParams
}

// ChunkStore stores chunks for all datasets and exposes per-dataset search.
// Writes to a dataset are serialized by a per-dataset mutex; reads are
// concurrent.
type ChunkStore struct {
	db     *sql.DB
	opts   Options
	logger *zap.Logger

	mu      sync.Mutex
	handles map[string]*datasetHandle
}

// datasetHandle bundles the open indices of one dataset. writeMu serializes
// ingestion and deletion for the dataset.
type datasetHandle struct {
	vec     vector.Index
	kw      keyword.Index
	writeMu sync.Mutex
}

// NewChunkStore opens the chunk database and prepares the data directory.
func NewChunkStore(opts Options, logger *zap.Logger) (*ChunkStore, error) {
	if dir := filepath.Dir(opts.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	if err := os.MkdirAll(opts.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	db, err := sql.Open("sqlite3", opts.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initChunkSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &ChunkStore{
		db:      db,
		opts:    opts,
		logger:  logger,
		handles: make(map[string]*datasetHandle),
	}, nil
}

func initChunkSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		dataset TEXT NOT NULL,
		id TEXT NOT NULL,
		source TEXT NOT NULL,
		page INTEGER NOT NULL,
		page_key TEXT NOT NULL,
		chunk_index INTEGER NOT NULL,
		text TEXT NOT NULL,
		PRIMARY KEY (dataset, id)
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_dataset_source ON chunks(dataset, source);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *ChunkStore) datasetDir(name string) string {
	return filepath.Join(s.opts.DataDir, name)
}

// handle returns the open indices for a dataset, creating or loading them on
// first use.
func (s *ChunkStore) handle(name string) (*datasetHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.handles[name]; ok {
		return h, nil
	}

	dir := s.datasetDir(name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create dataset directory: %w", err)
	}
	vec, err := vector.NewIndex(s.opts.IndexType, s.opts.Dimensions, s.opts.HNSW)
	if err != nil {
		return nil, err
	}
	if err := vec.Load(filepath.Join(dir, "vectors.bin")); err != nil {
		return nil, fmt.Errorf("failed to load vector index for %s: %w", name, err)
	}
	kw, err := keyword.NewBleveIndex(filepath.Join(dir, "keyword.bleve"))
	if err != nil {
		vec.Close()
		return nil, err
	}
	h := &datasetHandle{vec: vec, kw: kw}
	s.handles[name] = h
	s.logger.Debug("dataset indices opened",
		zap.String("dataset", name), zap.Int("vectors", vec.Size()))
	return h, nil
}

// LockDataset acquires the single-writer lock for a dataset and returns the
// unlock function. Ingestion and deletion hold it for their full duration.
func (s *ChunkStore) LockDataset(name string) (func(), error) {
	h, err := s.handle(name)
	if err != nil {
		return nil, err
	}
	h.writeMu.Lock()
	return h.writeMu.Unlock, nil
}

// UpsertBatch inserts or replaces chunks and indexes their vectors and text.
// Every chunk must carry an embedding. The caller holds the dataset write
// lock.
func (s *ChunkStore) UpsertBatch(ctx context.Context, dataset string, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	h, err := s.handle(dataset)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO chunks (dataset, id, source, page, page_key, chunk_index, text)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	for _, c := range chunks {
		if len(c.Embedding) != s.opts.Dimensions {
			_ = stmt.Close()
			_ = tx.Rollback()
			return fmt.Errorf("chunk %s has embedding dimension %d, want %d: %w",
				c.ID, len(c.Embedding), s.opts.Dimensions, models.ErrValidation)
		}
		if _, err := stmt.ExecContext(ctx, dataset, c.ID, c.Source, c.Page,
			c.PageKey, c.ChunkIndex, c.Text); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return fmt.Errorf("failed to upsert chunk %s: %w", c.ID, err)
		}
	}
	_ = stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk batch: %w", err)
	}

	ids := make([]string, len(chunks))
	vecs := make([][]float32, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		vecs[i] = c.Embedding
	}
	if err := h.vec.Add(ctx, ids, vecs); err != nil {
		return fmt.Errorf("failed to index vectors: %w", err)
	}
	if err := h.kw.IndexChunks(ctx, chunks); err != nil {
		return fmt.Errorf("failed to index keywords: %w", err)
	}
	if err := h.vec.Save(filepath.Join(s.datasetDir(dataset), "vectors.bin")); err != nil {
		return fmt.Errorf("failed to persist vector index: %w", err)
	}
	return nil
}

// ChunkCount returns the number of chunks stored for a dataset.
func (s *ChunkStore) ChunkCount(ctx context.Context, dataset string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chunks WHERE dataset = ?`, dataset).Scan(&n)
	return n, err
}

// UniqueDocumentCount returns the number of distinct source documents in a
// dataset, recomputed by scanning rather than maintained incrementally.
func (s *ChunkStore) UniqueDocumentCount(ctx context.Context, dataset string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT source) FROM chunks WHERE dataset = ?`, dataset).Scan(&n)
	return n, err
}

// SourceInfo describes one source document within a dataset.
type SourceInfo struct {
	Source     string `json:"source"`
	ChunkCount int    `json:"chunk_count"`
}

// Sources lists the distinct source documents of a dataset with their chunk
// counts, ordered by source name.
func (s *ChunkStore) Sources(ctx context.Context, dataset string) ([]SourceInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, COUNT(*) FROM chunks WHERE dataset = ?
		 GROUP BY source ORDER BY source`, dataset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SourceInfo
	for rows.Next() {
		var info SourceInfo
		if err := rows.Scan(&info.Source, &info.ChunkCount); err != nil {
			return nil, err
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// GetChunks fetches chunks by ID, returned in the order requested. IDs with
// no stored chunk are skipped.
func (s *ChunkStore) GetChunks(ctx context.Context, dataset string, ids []string) ([]*models.Chunk, error) {
	byID := make(map[string]*models.Chunk, len(ids))
	stmt, err := s.db.PrepareContext(ctx,
		`SELECT id, source, page, page_key, chunk_index, text
		 FROM chunks WHERE dataset = ? AND id = ?`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for _, id := range ids {
		var c models.Chunk
		err := stmt.QueryRowContext(ctx, dataset, id).Scan(
			&c.ID, &c.Source, &c.Page, &c.PageKey, &c.ChunkIndex, &c.Text)
		if err == sql.ErrNoRows {
			continue
		}
		if err != nil {
			return nil, err
		}
		byID[id] = &c
	}

	out := make([]*models.Chunk, 0, len(byID))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

// DeleteBySource removes all chunks of one source document from the rows and
// both indices. Returns ErrNotFound when the source has no chunks. The
// caller holds the dataset write lock.
func (s *ChunkStore) DeleteBySource(ctx context.Context, dataset, source string) (int, error) {
	h, err := s.handle(dataset)
	if err != nil {
		return 0, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM chunks WHERE dataset = ? AND source = ?`, dataset, source)
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, fmt.Errorf("document %q in dataset %q: %w", source, dataset, models.ErrNotFound)
	}

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE dataset = ? AND source = ?`, dataset, source); err != nil {
		return 0, err
	}
	if err := h.vec.Remove(ctx, ids); err != nil {
		return 0, fmt.Errorf("failed to remove vectors: %w", err)
	}
	if _, err := h.kw.DeleteBySource(ctx, source); err != nil {
		return 0, fmt.Errorf("failed to remove keywords: %w", err)
	}
	if err := h.vec.Save(filepath.Join(s.datasetDir(dataset), "vectors.bin")); err != nil {
		return 0, fmt.Errorf("failed to persist vector index: %w", err)
	}
	s.logger.Info("document deleted",
		zap.String("dataset", dataset), zap.String("source", source), zap.Int("chunks", len(ids)))
	return len(ids), nil
}

// QueryNearest returns the k most similar chunk IDs by dense similarity.
func (s *ChunkStore) QueryNearest(ctx context.Context, dataset string, query []float32, k int) ([]*vector.Result, error) {
	h, err := s.handle(dataset)
	if err != nil {
		return nil, err
	}
	return h.vec.Search(ctx, query, k)
}

// KeywordSearch returns up to limit chunk IDs matching the query text.
func (s *ChunkStore) KeywordSearch(ctx context.Context, dataset, query string, limit int) ([]*keyword.Result, error) {
	h, err := s.handle(dataset)
	if err != nil {
		return nil, err
	}
	return h.kw.Search(ctx, query, limit)
}

// DeleteDataset removes all chunks, closes the indices, and deletes the
// dataset's files. The caller holds the dataset write lock.
func (s *ChunkStore) DeleteDataset(ctx context.Context, dataset string) error {
	s.mu.Lock()
	h, ok := s.handles[dataset]
	delete(s.handles, dataset)
	s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE dataset = ?`, dataset); err != nil {
		return err
	}
	if ok {
		_ = h.vec.Close()
		if err := h.kw.Close(); err != nil {
			return fmt.Errorf("failed to close keyword index: %w", err)
		}
	}
	if err := os.RemoveAll(s.datasetDir(dataset)); err != nil {
		return fmt.Errorf("failed to remove dataset files: %w", err)
	}
	s.logger.Info("dataset collection deleted", zap.String("dataset", dataset))
	return nil
}

// Close closes all open indices and the database.
func (s *ChunkStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, h := range s.handles {
		_ = h.vec.Close()
		if err := h.kw.Close(); err != nil {
			s.logger.Warn("failed to close keyword index",
				zap.String("dataset", name), zap.Error(err))
		}
	}
	s.handles = nil
	return s.db.Close()
}

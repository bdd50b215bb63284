package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Jumawebhub/qlex/internal/models"
)

// Registry stores dataset metadata in SQLite. Chunk content lives elsewhere;
// the registry is the source of truth for which datasets exist and their
// user-facing attributes.
type Registry struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRegistry opens or creates the metadata database at dbPath and
// initializes the schema. Parent directories are created if missing.
func NewRegistry(dbPath string, logger *zap.Logger) (*Registry, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if err := initRegistrySchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &Registry{db: db, logger: logger}, nil
}

func initRegistrySchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS datasets (
		name TEXT PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		author TEXT NOT NULL DEFAULT '',
		topic TEXT NOT NULL DEFAULT '',
		linkedin_url TEXT NOT NULL DEFAULT '',
		custom_instructions TEXT NOT NULL DEFAULT '',
		document_count INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		last_update_date TIMESTAMP NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// Create inserts a dataset record. The name must already be sanitized; a
// duplicate name is a validation error.
func (r *Registry) Create(ctx context.Context, ds *models.Dataset) error {
	if !ValidName(ds.Name) {
		return fmt.Errorf("invalid dataset name %q: %w", ds.Name, models.ErrValidation)
	}
	now := time.Now()
	ds.CreatedAt = now
	ds.LastUpdateDate = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO datasets (name, description, author, topic, linkedin_url,
		   custom_instructions, document_count, created_at, last_update_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ds.Name, ds.Description, ds.Author, ds.Topic, ds.LinkedInURL,
		ds.CustomInstructions, ds.DocumentCount, ds.CreatedAt, ds.LastUpdateDate,
	)
	if err != nil {
		if exists, checkErr := r.Exists(ctx, ds.Name); checkErr == nil && exists {
			return fmt.Errorf("dataset %q already exists: %w", ds.Name, models.ErrValidation)
		}
		return fmt.Errorf("failed to create dataset: %w", err)
	}
	r.logger.Info("dataset created", zap.String("name", ds.Name))
	return nil
}

// Get returns a dataset by name.
func (r *Registry) Get(ctx context.Context, name string) (*models.Dataset, error) {
	var ds models.Dataset
	err := r.db.QueryRowContext(ctx,
		`SELECT name, description, author, topic, linkedin_url, custom_instructions,
		   document_count, created_at, last_update_date
		 FROM datasets WHERE name = ?`, name,
	).Scan(&ds.Name, &ds.Description, &ds.Author, &ds.Topic, &ds.LinkedInURL,
		&ds.CustomInstructions, &ds.DocumentCount, &ds.CreatedAt, &ds.LastUpdateDate)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("dataset %q: %w", name, models.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &ds, nil
}

// List returns all datasets ordered by name.
func (r *Registry) List(ctx context.Context) ([]*models.Dataset, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, description, author, topic, linkedin_url, custom_instructions,
		   document_count, created_at, last_update_date
		 FROM datasets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Dataset
	for rows.Next() {
		var ds models.Dataset
		if err := rows.Scan(&ds.Name, &ds.Description, &ds.Author, &ds.Topic,
			&ds.LinkedInURL, &ds.CustomInstructions, &ds.DocumentCount,
			&ds.CreatedAt, &ds.LastUpdateDate); err != nil {
			return nil, err
		}
		out = append(out, &ds)
	}
	return out, rows.Err()
}

// Exists reports whether a dataset with the given name exists.
func (r *Registry) Exists(ctx context.Context, name string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM datasets WHERE name = ?`, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// UpdateMetadata updates the mutable attributes of a dataset.
func (r *Registry) UpdateMetadata(ctx context.Context, ds *models.Dataset) error {
	ds.LastUpdateDate = time.Now()
	result, err := r.db.ExecContext(ctx,
		`UPDATE datasets SET description = ?, author = ?, topic = ?, linkedin_url = ?,
		   custom_instructions = ?, last_update_date = ?
		 WHERE name = ?`,
		ds.Description, ds.Author, ds.Topic, ds.LinkedInURL,
		ds.CustomInstructions, ds.LastUpdateDate, ds.Name,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("dataset %q: %w", ds.Name, models.ErrNotFound)
	}
	return nil
}

// SetDocumentCount records the recomputed distinct-source count and bumps
// the update timestamp.
func (r *Registry) SetDocumentCount(ctx context.Context, name string, count int) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE datasets SET document_count = ?, last_update_date = ? WHERE name = ?`,
		count, time.Now(), name)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("dataset %q: %w", name, models.ErrNotFound)
	}
	return nil
}

// Delete removes the metadata record. Returns ErrNotFound when no record
// exists.
func (r *Registry) Delete(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM datasets WHERE name = ?`, name)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("dataset %q: %w", name, models.ErrNotFound)
	}
	r.logger.Info("dataset metadata deleted", zap.String("name", name))
	return nil
}

// Close closes the underlying database.
func (r *Registry) Close() error {
	return r.db.Close()
}

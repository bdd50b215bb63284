package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Retrieval.Oversample != 3 {
		t.Errorf("default oversample = %d, want 3", cfg.Retrieval.Oversample)
	}
	if cfg.Retrieval.DenseWeight != 0.7 || cfg.Retrieval.LexicalWeight != 0.3 {
		t.Errorf("default fusion weights = %f/%f, want 0.7/0.3",
			cfg.Retrieval.DenseWeight, cfg.Retrieval.LexicalWeight)
	}
	if cfg.Retrieval.HNSWMaxConnections != 128 ||
		cfg.Retrieval.HNSWEFConstruction != 400 ||
		cfg.Retrieval.HNSWEFSearch != 200 {
		t.Errorf("HNSW defaults = %d/%d/%d, want 128/400/200",
			cfg.Retrieval.HNSWMaxConnections, cfg.Retrieval.HNSWEFConstruction, cfg.Retrieval.HNSWEFSearch)
	}
	if cfg.Ingest.BatchSize != 100 {
		t.Errorf("default batch size = %d, want 100", cfg.Ingest.BatchSize)
	}
	if cfg.LLM.Temperature != 0.1 {
		t.Errorf("default temperature = %f, want 0.1", cfg.LLM.Temperature)
	}
	if cfg.LLM.HistoryLimit != 10 {
		t.Errorf("default history limit = %d, want 10", cfg.LLM.HistoryLimit)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  port: 9000
storage:
  database_path: ./data/chunks.db
retrieval:
  dense_weight: 0.6
  lexical_weight: 0.4
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.Debug {
		t.Error("debug should be true")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Retrieval.DenseWeight != 0.6 {
		t.Errorf("dense weight = %f, want 0.6 (configured, not default)", cfg.Retrieval.DenseWeight)
	}
	want := filepath.Join(dir, "data/chunks.db")
	if cfg.Storage.DatabasePath != want {
		t.Errorf("database path = %q, want %q", cfg.Storage.DatabasePath, want)
	}
	// Unset sections still get defaults.
	if cfg.Ingest.BatchSize != 100 {
		t.Errorf("batch size = %d, want default 100", cfg.Ingest.BatchSize)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

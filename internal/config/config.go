// Package config provides configuration loading and structs for the qlex server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Rerank    RerankConfig    `yaml:"rerank"`
	LLM       LLMConfig       `yaml:"llm"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the chunk database and per-dataset indices.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	// DataDir holds one subdirectory per dataset with its vector and
	// keyword index files.
	DataDir string `yaml:"data_dir"`
}

// EmbeddingConfig holds embedding provider settings. Model identity must
// match between ingestion and query time; a mismatch silently degrades
// retrieval quality, so the model name is recorded and checked.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	APIBase    string `yaml:"api_base"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	CacheSize  int    `yaml:"cache_size"`
}

// RetrievalConfig holds hybrid retrieval and index tuning settings.
type RetrievalConfig struct {
	DefaultResults int `yaml:"default_results"`
	MaxResults     int `yaml:"max_results"`
	// Oversample controls the dense candidate pool: M = Oversample * N.
	Oversample int `yaml:"oversample"`
	// DenseWeight and LexicalWeight are the fusion weights. They need not
	// sum to 1; the fused score is a plain weighted sum of the two
	// normalized signals.
	DenseWeight   float64 `yaml:"dense_weight"`
	LexicalWeight float64 `yaml:"lexical_weight"`
	// QueryTimeoutMS bounds a single vector-store query. On timeout the
	// retriever fails closed and reports no context.
	QueryTimeoutMS int `yaml:"query_timeout_ms"`
	// VectorIndexType selects the index backend: "memory" or "hnsw".
	VectorIndexType string `yaml:"vector_index_type"`
	// HNSW tuning. Higher values raise build cost and memory but improve
	// recall; defaults favor correctness over latency for moderate corpora.
	HNSWMaxConnections    int `yaml:"hnsw_max_connections"`
	HNSWEFConstruction    int `yaml:"hnsw_ef_construction"`
	HNSWEFSearch          int `yaml:"hnsw_ef_search"`
	KeywordCandidateLimit int `yaml:"keyword_candidate_limit"`
}

// RerankConfig holds cross-encoder reranker settings. An empty Endpoint
// disables reranking entirely (queries use the fused ordering).
type RerankConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Model     string `yaml:"model"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// LLMConfig holds chat completion provider settings.
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	APIBase     string  `yaml:"api_base"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	// HistoryLimit is the number of trailing history messages forwarded to
	// the model.
	HistoryLimit int `yaml:"history_limit"`
}

// IngestConfig holds ingestion settings.
type IngestConfig struct {
	// BatchSize bounds one upsert batch to respect backend payload limits.
	BatchSize int `yaml:"batch_size"`
	// RetryBackoffMS is the wait before the single retry of a failed batch.
	RetryBackoffMS int `yaml:"retry_backoff_ms"`
	// UploadDir is where multipart uploads are spooled before extraction.
	UploadDir string `yaml:"upload_dir"`
}

// WatchConfig holds settings for the optional documents-directory watcher,
// which feeds new files into a fixed dataset.
type WatchConfig struct {
	Directory  string   `yaml:"directory"`
	Dataset    string   `yaml:"dataset"`
	Extensions []string `yaml:"extensions"`
}

// Load reads and parses the config file at path, expands storage paths
// relative to the config directory, and applies defaults. API keys fall back
// to the QLEX_EMBEDDING_API_KEY / QLEX_LLM_API_KEY environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.DataDir = expandPath(cfg.Storage.DataDir, configDir)
	cfg.Ingest.UploadDir = expandPath(cfg.Ingest.UploadDir, configDir)
	if cfg.Watch.Directory != "" {
		cfg.Watch.Directory = expandPath(cfg.Watch.Directory, configDir)
	}

	if cfg.Embedding.APIKey == "" {
		cfg.Embedding.APIKey = os.Getenv("QLEX_EMBEDDING_API_KEY")
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv("QLEX_LLM_API_KEY")
	}
	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are
// relative to configDir; other relative paths are relative to the home
// directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}

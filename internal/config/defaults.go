package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/qlex/data/db/chunks.db"
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "/usr/local/var/qlex/data/datasets"
	}
	if cfg.Embedding.APIBase == "" {
		cfg.Embedding.APIBase = "https://api.openai.com/v1"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Retrieval.DefaultResults == 0 {
		cfg.Retrieval.DefaultResults = 5
	}
	if cfg.Retrieval.MaxResults == 0 {
		cfg.Retrieval.MaxResults = 50
	}
	if cfg.Retrieval.Oversample == 0 {
		cfg.Retrieval.Oversample = 3
	}
	if cfg.Retrieval.DenseWeight == 0 {
		cfg.Retrieval.DenseWeight = 0.7
	}
	if cfg.Retrieval.LexicalWeight == 0 {
		cfg.Retrieval.LexicalWeight = 0.3
	}
	if cfg.Retrieval.QueryTimeoutMS == 0 {
		cfg.Retrieval.QueryTimeoutMS = 5000
	}
	if cfg.Retrieval.VectorIndexType == "" {
		cfg.Retrieval.VectorIndexType = "hnsw"
	}
	if cfg.Retrieval.HNSWMaxConnections == 0 {
		cfg.Retrieval.HNSWMaxConnections = 128
	}
	if cfg.Retrieval.HNSWEFConstruction == 0 {
		cfg.Retrieval.HNSWEFConstruction = 400
	}
	if cfg.Retrieval.HNSWEFSearch == 0 {
		cfg.Retrieval.HNSWEFSearch = 200
	}
	if cfg.Retrieval.KeywordCandidateLimit == 0 {
		cfg.Retrieval.KeywordCandidateLimit = 50
	}
	if cfg.Rerank.TimeoutMS == 0 {
		cfg.Rerank.TimeoutMS = 10000
	}
	if cfg.LLM.APIBase == "" {
		cfg.LLM.APIBase = "https://openrouter.ai/api/v1"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "deepseek/deepseek-chat-v3-0324:free"
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.1
	}
	if cfg.LLM.HistoryLimit == 0 {
		cfg.LLM.HistoryLimit = 10
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 100
	}
	if cfg.Ingest.RetryBackoffMS == 0 {
		cfg.Ingest.RetryBackoffMS = 500
	}
	if cfg.Ingest.UploadDir == "" {
		cfg.Ingest.UploadDir = "/usr/local/var/qlex/data/uploads"
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".pdf", ".txt"}
	}
}

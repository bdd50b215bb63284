// Package main is the qlex CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Jumawebhub/qlex/internal/cli"
	"github.com/Jumawebhub/qlex/internal/config"
	"github.com/Jumawebhub/qlex/internal/dataset"
	"github.com/Jumawebhub/qlex/internal/embedding"
	"github.com/Jumawebhub/qlex/internal/ingest"
	"github.com/Jumawebhub/qlex/internal/llm"
	"github.com/Jumawebhub/qlex/internal/models"
	"github.com/Jumawebhub/qlex/internal/rerank"
	"github.com/Jumawebhub/qlex/internal/retrieval"
	"github.com/Jumawebhub/qlex/internal/server"
	"github.com/Jumawebhub/qlex/internal/store"
	"github.com/Jumawebhub/qlex/internal/vector"
	"github.com/Jumawebhub/qlex/internal/watcher"
	"github.com/Jumawebhub/qlex/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/qlex/config.yaml"

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory takes precedence if it exists, so running from the
// project directory picks up the project's config.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "ingest":
		runIngest()
	case "query":
		runQuery()
	case "datasets":
		runDatasets()
	case "delete":
		runDelete()
	case "version", "--version", "-v":
		fmt.Printf("qlex version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	var watchSvc *watcher.Watcher
	if cfg.Watch.Directory != "" && cfg.Watch.Dataset != "" {
		watchSvc = newWatchFeed(cfg, components, logger)
		watchCtx, watchCancel := context.WithCancel(context.Background())
		defer watchCancel()
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		watchSvc.SyncExisting()
	}

	srv := server.NewServer(
		components.Datasets,
		components.Retriever,
		components.Ingester,
		components.Store,
		components.Chat,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// newWatchFeed wires the directory watcher to the ingestion pipeline: files
// dropped into the watch directory land in the configured dataset, deleted
// files have their chunks removed by source name.
func newWatchFeed(cfg *config.Config, components *Components, logger *zap.Logger) *watcher.Watcher {
	target := cfg.Watch.Dataset
	return watcher.NewWatcher(
		watcher.Options{
			Directory:  cfg.Watch.Directory,
			Extensions: cfg.Watch.Extensions,
		},
		func(path string) {
			ctx := context.Background()
			count, err := components.Store.UniqueDocumentCount(ctx, target)
			if err != nil {
				logger.Warn("watch ingest skipped", zap.String("path", path), zap.Error(err))
				return
			}
			if _, err := components.Ingester.IngestFile(ctx, target, path, count); err != nil {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.Error(err))
				return
			}
			if _, err := components.Datasets.Recount(ctx, target); err != nil {
				logger.Warn("watch recount failed", zap.String("dataset", target), zap.Error(err))
			}
		},
		func(path string) {
			ctx := context.Background()
			source := filepath.Base(path)
			if _, err := components.Datasets.DeleteDocument(ctx, target, source); err != nil && !models.IsNotFound(err) {
				logger.Warn("watch delete failed", zap.String("source", source), zap.Error(err))
			}
		},
		logger,
	)
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	datasetName := fs.String("dataset", "", "target dataset name (required)")
	_ = fs.Parse(os.Args[2:])

	if *datasetName == "" || fs.NArg() < 1 {
		fmt.Println("Usage: qlex ingest --dataset <name> <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	_, logger, components := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	ensureDataset(ctx, components, *datasetName)

	info, err := os.Stat(path)
	if err != nil {
		fmt.Printf("Failed to stat path: %v\n", err)
		os.Exit(1)
	}

	var result *ingest.Result
	if info.IsDir() {
		result, err = components.Ingester.IngestDirectory(ctx, *datasetName, path)
	} else {
		var count int
		count, err = components.Store.UniqueDocumentCount(ctx, *datasetName)
		if err == nil {
			result, err = components.Ingester.IngestFile(ctx, *datasetName, path, count)
		}
	}
	if err != nil {
		fmt.Printf("Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	if _, err := components.Datasets.Recount(ctx, *datasetName); err != nil {
		fmt.Printf("Recount failed: %v\n", err)
	}
	fmt.Printf("Ingested %d chunk(s) into %s (%d dropped as too short, %d document(s) total)\n",
		result.ChunksAdded, *datasetName, result.ChunksDropped, result.DocumentCount)
}

// ensureDataset creates the dataset if it does not exist yet.
func ensureDataset(ctx context.Context, components *Components, name string) {
	if _, err := components.Datasets.Get(ctx, name); err == nil {
		return
	} else if !models.IsNotFound(err) {
		fmt.Printf("Failed to check dataset: %v\n", err)
		os.Exit(1)
	}
	ds := &models.Dataset{Name: name}
	if err := components.Datasets.Create(ctx, ds); err != nil {
		fmt.Printf("Failed to create dataset: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created dataset: %s\n", ds.Name)
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	datasetName := fs.String("dataset", "", "dataset to query (required)")
	n := fs.Int("n", 0, "number of results (default from config)")
	hybrid := fs.Bool("hybrid", true, "enable hybrid dense+lexical retrieval")
	doRerank := fs.Bool("rerank", false, "rerank results with the configured endpoint")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if *datasetName == "" || fs.NArg() < 1 {
		fmt.Println("Usage: qlex query --dataset <name> <query text>")
		os.Exit(1)
	}
	queryStr := ""
	for i, a := range fs.Args() {
		if i > 0 {
			queryStr += " "
		}
		queryStr += a
	}

	_, logger, components := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	result, err := components.Retriever.QueryDataset(context.Background(), *datasetName, queryStr, *n, *hybrid, *doRerank)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}

	format := cli.OutputText
	switch *outputFormat {
	case "json":
		format = cli.OutputJSON
	case "text":
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
	if err := cli.WriteQueryResult(os.Stdout, result, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runDatasets() {
	fs := flag.NewFlagSet("datasets", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	_, logger, components := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	list, err := components.Datasets.List(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list datasets: %v\n", err)
		os.Exit(1)
	}
	if len(list) == 0 {
		fmt.Println("No datasets.")
		return
	}
	for _, ds := range list {
		fmt.Printf("%-30s %4d document(s)  %s\n", ds.Name, ds.DocumentCount, ds.Description)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	datasetName := fs.String("dataset", "", "dataset name (required)")
	source := fs.String("source", "", "delete a single document by source name instead of the whole dataset")
	_ = fs.Parse(os.Args[2:])

	if *datasetName == "" {
		fmt.Println("Usage: qlex delete --dataset <name> [--source <file>]")
		os.Exit(1)
	}

	_, logger, components := mustInitialize(*configPath)
	defer logger.Sync()
	defer components.Close()

	ctx := context.Background()
	if *source != "" {
		removed, err := components.Datasets.DeleteDocument(ctx, *datasetName, *source)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Removed %d chunk(s) of %s from %s\n", removed, *source, *datasetName)
		return
	}
	status, err := components.Datasets.Delete(ctx, *datasetName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Deletion failed: %v\n", err)
		os.Exit(1)
	}
	if !status.Complete() {
		fmt.Printf("Dataset %s partially deleted: %s\n", *datasetName, status.Detail)
		os.Exit(1)
	}
	fmt.Printf("Dataset deleted: %s\n", *datasetName)
}

// mustInitialize loads config, builds the logger, and initializes all
// components, exiting on any failure.
func mustInitialize(configPath string) (*config.Config, *zap.Logger, *Components) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	return cfg, logger, components
}

// Components holds initialized services.
type Components struct {
	Registry  *dataset.Registry
	Store     *store.ChunkStore
	Embedder  embedding.Embedder
	Reranker  rerank.Reranker
	Retriever *retrieval.Retriever
	Ingester  *ingest.Ingester
	Datasets  *dataset.Service
	Chat      server.ChatClient
}

func (c *Components) Close() {
	if c.Store != nil {
		_ = c.Store.Close()
	}
	if c.Registry != nil {
		_ = c.Registry.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Reranker != nil {
		_ = c.Reranker.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	registry, err := dataset.NewRegistry(cfg.Storage.DatabasePath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize dataset registry: %w", err)
	}

	chunkStore, err := store.NewChunkStore(store.Options{
		DBPath:     cfg.Storage.DatabasePath,
		DataDir:    cfg.Storage.DataDir,
		Dimensions: cfg.Embedding.Dimensions,
		IndexType:  cfg.Retrieval.VectorIndexType,
		HNSW: vector.HNSWParams{
			MaxConnections: cfg.Retrieval.HNSWMaxConnections,
			EFConstruction: cfg.Retrieval.HNSWEFConstruction,
			EFSearch:       cfg.Retrieval.HNSWEFSearch,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chunk store: %w", err)
	}

	var embedder embedding.Embedder
	openaiEmbedder, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.APIBase,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
	})
	if err != nil {
		logger.Warn("embedding provider unavailable, using deterministic mock embeddings",
			zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	} else {
		embedder = embedding.NewCachedEmbedder(openaiEmbedder, cfg.Embedding.CacheSize)
	}

	var reranker rerank.Reranker = rerank.Disabled{}
	if cfg.Rerank.Endpoint != "" {
		reranker = rerank.NewHTTPReranker(cfg.Rerank.Endpoint,
			time.Duration(cfg.Rerank.TimeoutMS)*time.Millisecond, logger)
	}

	retriever := retrieval.NewRetriever(chunkStore, embedder, reranker, &cfg.Retrieval, logger)
	ingester := ingest.NewIngester(chunkStore, embedder, &cfg.Ingest, logger)
	datasets := dataset.NewService(registry, chunkStore, logger)

	var chat server.ChatClient
	if llmClient, err := llm.NewClient(&cfg.LLM, logger); err != nil {
		logger.Warn("chat provider unavailable, chat endpoints disabled", zap.Error(err))
	} else {
		chat = llmClient
	}

	return &Components{
		Registry:  registry,
		Store:     chunkStore,
		Embedder:  embedder,
		Reranker:  reranker,
		Retriever: retriever,
		Ingester:  ingester,
		Datasets:  datasets,
		Chat:      chat,
	}, nil
}

func printUsage() {
	fmt.Println(`qlex - Retrieval-augmented question answering for legal documents

Usage:
  qlex server [flags]                      Start the HTTP server
  qlex ingest --dataset <name> <path>      Ingest a file or directory into a dataset
  qlex query --dataset <name> <query>      Retrieve relevant chunks from a dataset
  qlex datasets [flags]                    List datasets
  qlex delete --dataset <name> [--source]  Delete a dataset or one of its documents
  qlex version                             Show version
  qlex help                                Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/qlex/config.yaml)
  --debug            Enable debug logging

Ingest Flags:
  --config string    Config file path
  --dataset string   Target dataset; created if missing

Query Flags:
  --config string    Config file path
  --dataset string   Dataset to query
  --n int            Number of results (default from config)
  --hybrid           Hybrid dense+lexical retrieval (default: true)
  --rerank           Rerank with the configured endpoint (default: false)
  --output string    Output format: text or json (default: text)

Delete Flags:
  --config string    Config file path
  --dataset string   Dataset name
  --source string    Delete a single document by source name

Examples:
  qlex server
  qlex ingest --dataset eu-sanctions ./regulations/
  qlex query --dataset eu-sanctions "dual-use export authorization"
  qlex query --dataset eu-sanctions --output json --rerank "article 5"
  qlex delete --dataset eu-sanctions --source regulation.pdf
  qlex datasets`)
}

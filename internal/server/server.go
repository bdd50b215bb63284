// Package server provides the HTTP API for qlex.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Jumawebhub/qlex/internal/config"
	"github.com/Jumawebhub/qlex/internal/dataset"
	"github.com/Jumawebhub/qlex/internal/ingest"
	"github.com/Jumawebhub/qlex/internal/llm"
	"github.com/Jumawebhub/qlex/internal/retrieval"
	"github.com/Jumawebhub/qlex/internal/store"
)

// ChatClient generates grounded answers. Satisfied by llm.Client; faked in
// tests.
type ChatClient interface {
	GenerateWithRAG(ctx context.Context, query, context, customInstructions string, history []llm.Message) (string, error)
	StreamWithRAG(ctx context.Context, query, context, customInstructions string, history []llm.Message, emit func(fragment string) error) error
}

// Server is the HTTP server for the qlex API.
type Server struct {
	datasets  *dataset.Service
	retriever *retrieval.Retriever
	ingester  *ingest.Ingester
	store     *store.ChunkStore
	chat      ChatClient
	cfg       *config.Config
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies. chat may be nil
// when no LLM is configured; chat endpoints then report the backend
// unavailable while retrieval endpoints keep working.
func NewServer(
	datasets *dataset.Service,
	retriever *retrieval.Retriever,
	ingester *ingest.Ingester,
	chunkStore *store.ChunkStore,
	chat ChatClient,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		datasets:  datasets,
		retriever: retriever,
		ingester:  ingester,
		store:     chunkStore,
		chat:      chat,
		cfg:       cfg,
		logger:    logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Group(func(r chi.Router) {
		// Streaming endpoints manage their own deadlines.
		r.Post("/api/chat/stream", s.handleChatStream)
		r.Post("/api/datasets/{name}/documents", s.handleUploadDocuments)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Post("/api/chat", s.handleChat)

		r.Get("/api/datasets", s.handleListDatasets)
		r.Post("/api/datasets", s.handleCreateDataset)
		r.Get("/api/datasets/check-name", s.handleCheckName)
		r.Put("/api/datasets/{name}", s.handleUpdateDataset)
		r.Delete("/api/datasets/{name}", s.handleDeleteDataset)

		r.Get("/api/datasets/{name}/documents", s.handleListDocuments)
		r.Delete("/api/datasets/{name}/documents/{source}", s.handleDeleteDocument)

		r.Post("/api/datasets/{name}/query", s.handleQueryDataset)

		r.Get("/health", s.handleHealth)
		r.Get("/api/status", s.handleStatus)
	})

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

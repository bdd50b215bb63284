package server

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Jumawebhub/qlex/internal/extract"
	"github.com/Jumawebhub/qlex/internal/ingest"
	"github.com/Jumawebhub/qlex/internal/llm"
	"github.com/Jumawebhub/qlex/internal/models"
	"github.com/Jumawebhub/qlex/internal/retrieval"
)

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case models.IsValidation(err):
		return http.StatusBadRequest
	case models.IsNotFound(err):
		return http.StatusNotFound
	case models.IsBackendUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondErrorFor(w http.ResponseWriter, err error) {
	s.respondError(w, statusFor(err), err.Error())
}

// --- chat ---

type chatRequest struct {
	Message   string        `json:"message"`
	Dataset   string        `json:"dataset"`
	History   []llm.Message `json:"history,omitempty"`
	NResults  int           `json:"n_results,omitempty"`
	UseHybrid *bool         `json:"use_hybrid,omitempty"`
	UseRerank *bool         `json:"use_rerank,omitempty"`
}

type chatResponse struct {
	Answer    string             `json:"answer"`
	Citations []*models.Citation `json:"citations"`
	Degraded  bool               `json:"degraded,omitempty"`
}

// retrieveForChat runs retrieval and loads the dataset's custom
// instructions. Both chat variants share it.
func (s *Server) retrieveForChat(r *http.Request, req *chatRequest) (*models.QueryResult, string, error) {
	if req.Message == "" || req.Dataset == "" {
		return nil, "", fmt.Errorf("message and dataset are required: %w", models.ErrValidation)
	}
	ds, err := s.datasets.Get(r.Context(), req.Dataset)
	if err != nil {
		return nil, "", err
	}
	useHybrid, useRerank := true, true
	if req.UseHybrid != nil {
		useHybrid = *req.UseHybrid
	}
	if req.UseRerank != nil {
		useRerank = *req.UseRerank
	}
	result, err := s.retriever.QueryDataset(r.Context(), req.Dataset, req.Message, req.NResults, useHybrid, useRerank)
	if err != nil {
		return nil, "", err
	}
	return result, ds.CustomInstructions, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		s.respondError(w, http.StatusServiceUnavailable, "no LLM configured")
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, instructions, err := s.retrieveForChat(r, &req)
	if err != nil {
		s.respondErrorFor(w, err)
		return
	}

	contextText := retrieval.FormatContext(result)
	answer, err := s.chat.GenerateWithRAG(r.Context(), req.Message, contextText, instructions, req.History)
	if err != nil {
		s.respondErrorFor(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, chatResponse{
		Answer:    answer,
		Citations: retrieval.Citations(result),
		Degraded:  result.Degraded,
	})
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		s.respondError(w, http.StatusServiceUnavailable, "no LLM configured")
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	result, instructions, err := s.retrieveForChat(r, &req)
	if err != nil {
		s.respondErrorFor(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeEvent := func(payload interface{}) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	contextText := retrieval.FormatContext(result)
	streamErr := s.chat.StreamWithRAG(r.Context(), req.Message, contextText, instructions, req.History,
		func(fragment string) error {
			writeEvent(map[string]string{"chunk": fragment})
			return nil
		})
	if streamErr != nil {
		writeEvent(map[string]string{"error": streamErr.Error()})
		return
	}
	writeEvent(map[string]interface{}{
		"done":      true,
		"citations": retrieval.Citations(result),
		"degraded":  result.Degraded,
	})
}

// --- datasets ---

func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	list, err := s.datasets.List(r.Context())
	if err != nil {
		s.respondErrorFor(w, err)
		return
	}
	if list == nil {
		list = []*models.Dataset{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"datasets": list})
}

func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	var ds models.Dataset
	if err := json.NewDecoder(r.Body).Decode(&ds); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.datasets.Create(r.Context(), &ds); err != nil {
		s.respondErrorFor(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, &ds)
}

func (s *Server) handleCheckName(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		s.respondError(w, http.StatusBadRequest, "name query parameter is required")
		return
	}
	sanitized, available, err := s.datasets.CheckName(r.Context(), name)
	if err != nil {
		s.respondErrorFor(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"name":      name,
		"sanitized": sanitized,
		"available": available,
	})
}

func (s *Server) handleUpdateDataset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	current, err := s.datasets.Get(r.Context(), name)
	if err != nil {
		s.respondErrorFor(w, err)
		return
	}
	var update models.Dataset
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	update.Name = current.Name
	if err := s.datasets.UpdateMetadata(r.Context(), &update); err != nil {
		s.respondErrorFor(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, &update)
}

func (s *Server) handleDeleteDataset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	status, err := s.datasets.Delete(r.Context(), name)
	if err != nil {
		s.respondErrorFor(w, err)
		return
	}
	code := http.StatusOK
	if !status.Complete() {
		// Partial failure: some state survived the delete.
		code = http.StatusMultiStatus
	}
	s.respondJSON(w, code, status)
}

// --- documents ---

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := s.datasets.Get(r.Context(), name); err != nil {
		s.respondErrorFor(w, err)
		return
	}
	sources, err := s.store.Sources(r.Context(), name)
	if err != nil {
		s.respondErrorFor(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"documents": sources})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	source := chi.URLParam(r, "source")
	removed, err := s.datasets.DeleteDocument(r.Context(), name, source)
	if err != nil {
		s.respondErrorFor(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"source":         source,
		"chunks_removed": removed,
	})
}

// handleUploadDocuments ingests uploaded files one by one, streaming an
// NDJSON progress line per file so large uploads show incremental progress.
func (s *Server) handleUploadDocuments(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := s.datasets.Get(r.Context(), name); err != nil {
		s.respondErrorFor(w, err)
		return
	}
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		s.respondError(w, http.StatusBadRequest, "no files provided")
		return
	}

	docIndex, err := s.store.UniqueDocumentCount(r.Context(), name)
	if err != nil {
		s.respondErrorFor(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	enc := json.NewEncoder(w)
	progress := func(payload interface{}) {
		_ = enc.Encode(payload)
		if flusher != nil {
			flusher.Flush()
		}
	}

	totalAdded := 0
	for _, fh := range files {
		if !extract.Supported(filepath.Ext(fh.Filename)) {
			progress(map[string]interface{}{
				"file": fh.Filename, "status": "skipped", "reason": "unsupported format",
			})
			continue
		}
		result, err := s.ingestUpload(r, name, fh, docIndex)
		if err != nil {
			s.logger.Error("upload ingestion failed",
				zap.String("dataset", name), zap.String("file", fh.Filename), zap.Error(err))
			progress(map[string]interface{}{
				"file": fh.Filename, "status": "error", "error": err.Error(),
			})
			continue
		}
		docIndex++
		totalAdded += result.ChunksAdded
		progress(map[string]interface{}{
			"file":           fh.Filename,
			"status":         "ingested",
			"chunks_added":   result.ChunksAdded,
			"chunks_dropped": result.ChunksDropped,
		})
	}

	count, err := s.datasets.Recount(r.Context(), name)
	if err != nil {
		s.logger.Error("recount after upload failed", zap.String("dataset", name), zap.Error(err))
	}
	progress(map[string]interface{}{
		"done":           true,
		"chunks_added":   totalAdded,
		"document_count": count,
	})
}

// ingestUpload spools one multipart file to disk and ingests it.
func (s *Server) ingestUpload(r *http.Request, dataset string, fh *multipart.FileHeader, docIndex int) (*ingest.Result, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	uploadDir := s.cfg.Ingest.UploadDir
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	spoolPath := filepath.Join(uploadDir, uuid.New().String()+filepath.Ext(fh.Filename))
	tmp, err := os.Create(spoolPath)
	if err != nil {
		return nil, fmt.Errorf("failed to spool upload: %w", err)
	}
	defer os.Remove(spoolPath)
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}
	tmp.Close()

	sections, err := s.ingester.Extractor().Extract(spoolPath)
	if err != nil {
		return nil, err
	}
	return s.ingester.IngestBatch(r.Context(), dataset, []ingest.Document{{
		Source:   filepath.Base(fh.Filename),
		DocIndex: docIndex,
		Sections: sections,
	}})
}

// --- query ---

type queryRequest struct {
	Query     string `json:"query"`
	NResults  int    `json:"n_results,omitempty"`
	UseHybrid *bool  `json:"use_hybrid,omitempty"`
	UseRerank *bool  `json:"use_rerank,omitempty"`
}

func (s *Server) handleQueryDataset(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, err := s.datasets.Get(r.Context(), name); err != nil {
		s.respondErrorFor(w, err)
		return
	}
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	useHybrid, useRerank := true, false
	if req.UseHybrid != nil {
		useHybrid = *req.UseHybrid
	}
	if req.UseRerank != nil {
		useRerank = *req.UseRerank
	}
	result, err := s.retriever.QueryDataset(r.Context(), name, req.Query, req.NResults, useHybrid, useRerank)
	if err != nil {
		s.respondErrorFor(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result.ToResponse())
}

// --- health & status ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	list, err := s.datasets.List(r.Context())
	if err != nil {
		s.respondErrorFor(w, err)
		return
	}
	totalChunks := 0
	for _, ds := range list {
		n, err := s.store.ChunkCount(r.Context(), ds.Name)
		if err != nil {
			continue
		}
		totalChunks += n
	}
	payload := map[string]interface{}{
		"datasets": len(list),
		"chunks":   totalChunks,
		"config": map[string]interface{}{
			"vector_index_type":    s.cfg.Retrieval.VectorIndexType,
			"embedding_model":      s.cfg.Embedding.Model,
			"embedding_dimensions": s.cfg.Embedding.Dimensions,
			"dense_weight":         s.cfg.Retrieval.DenseWeight,
			"lexical_weight":       s.cfg.Retrieval.LexicalWeight,
		},
	}
	if diskBytes, err := s.store.DiskUsageBytes(); err == nil {
		payload["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, payload)
}

// Package rerank rescores retrieval candidates with a cross-encoder served
// over HTTP. Reranking is best-effort: callers fall back to the fused
// ordering when the service is down or slow.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Jumawebhub/qlex/internal/models"
)

// Reranker scores candidate texts against a query. Scores returned are
// relevance scores in the same order as the input texts; higher is better.
type Reranker interface {
	Rerank(ctx context.Context, query string, texts []string) ([]float64, error)
	Close() error
}

// HTTPReranker calls a text-embeddings-inference style /rerank endpoint.
type HTTPReranker struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewHTTPReranker creates a reranker against endpoint with the given request
// timeout.
func NewHTTPReranker(endpoint string, timeout time.Duration, logger *zap.Logger) *HTTPReranker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPReranker{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Rerank posts the query and texts and maps the response scores back to
// input order. Any transport, status, or shape problem is reported as
// ErrBackendUnavailable.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, texts []string) ([]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(rerankRequest{Query: query, Texts: texts})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Warn("rerank request failed", zap.Error(err))
		return nil, fmt.Errorf("rerank request failed: %w", models.ErrBackendUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		r.logger.Warn("rerank service returned non-OK status", zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("rerank service status %d: %w", resp.StatusCode, models.ErrBackendUnavailable)
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("rerank response malformed: %w", models.ErrBackendUnavailable)
	}
	scores := make([]float64, len(texts))
	seen := 0
	for _, res := range results {
		if res.Index < 0 || res.Index >= len(texts) {
			return nil, fmt.Errorf("rerank response index %d out of range: %w", res.Index, models.ErrBackendUnavailable)
		}
		scores[res.Index] = res.Score
		seen++
	}
	if seen != len(texts) {
		return nil, fmt.Errorf("rerank response has %d scores for %d texts: %w", seen, len(texts), models.ErrBackendUnavailable)
	}
	return scores, nil
}

// Close is a no-op for HTTPReranker.
func (r *HTTPReranker) Close() error { return nil }

// Disabled is a Reranker that always reports unavailability, used when no
// rerank endpoint is configured.
type Disabled struct{}

// Rerank always returns ErrBackendUnavailable.
func (Disabled) Rerank(ctx context.Context, query string, texts []string) ([]float64, error) {
	return nil, models.ErrBackendUnavailable
}

// Close is a no-op.
func (Disabled) Close() error { return nil }

package retrieval

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Jumawebhub/qlex/internal/config"
	"github.com/Jumawebhub/qlex/internal/embedding"
	"github.com/Jumawebhub/qlex/internal/lexical"
	"github.com/Jumawebhub/qlex/internal/models"
	"github.com/Jumawebhub/qlex/internal/rerank"
	"github.com/Jumawebhub/qlex/internal/store"
	"github.com/Jumawebhub/qlex/internal/vector"
)

// Retriever runs hybrid retrieval over one dataset at a time.
type Retriever struct {
	store    *store.ChunkStore
	embedder embedding.Embedder
	lexical  *lexical.Scorer
	reranker rerank.Reranker
	cfg      *config.RetrievalConfig
	logger   *zap.Logger
}

// NewRetriever creates a retriever with the given dependencies.
func NewRetriever(
	chunkStore *store.ChunkStore,
	embedder embedding.Embedder,
	reranker rerank.Reranker,
	cfg *config.RetrievalConfig,
	logger *zap.Logger,
) *Retriever {
	return &Retriever{
		store:    chunkStore,
		embedder: embedder,
		lexical:  lexical.NewScorer(),
		reranker: reranker,
		cfg:      cfg,
		logger:   logger,
	}
}

// QueryDataset retrieves the n most relevant chunks for query from dataset.
//
// The pipeline embeds the query, takes the dense top-M (M = oversample ×
// n), optionally widens the candidate set with keyword hits and fuses dense
// with lexical scores, then optionally reranks the oversampled candidates.
// Reranking fails open: on any reranker error the fused ordering stands and
// the result is flagged Degraded. A vector query that times out fails
// closed, because silently answering without context is worse than
// reporting the backend down.
func (r *Retriever) QueryDataset(ctx context.Context, dataset, query string, n int, useHybrid, useRerank bool) (*models.QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query must not be empty: %w", models.ErrValidation)
	}
	if n <= 0 {
		n = r.cfg.DefaultResults
	}
	if n > r.cfg.MaxResults {
		n = r.cfg.MaxResults
	}

	count, err := r.store.ChunkCount(ctx, dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", models.ErrBackendUnavailable)
	}
	if count == 0 {
		return &models.QueryResult{NoDocuments: true}, nil
	}
	if n > count {
		n = count
	}

	queryVec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query embedding failed: %w", models.ErrBackendUnavailable)
	}

	oversample := r.cfg.Oversample
	if oversample < 1 {
		oversample = 1
	}
	m := oversample * n

	denseCtx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.QueryTimeoutMS)*time.Millisecond)
	defer cancel()
	dense, err := r.store.QueryNearest(denseCtx, dataset, queryVec, m)
	if err != nil || denseCtx.Err() != nil {
		r.logger.Error("vector query failed",
			zap.String("dataset", dataset), zap.Error(err), zap.Error(denseCtx.Err()))
		return nil, fmt.Errorf("vector query failed: %w", models.ErrBackendUnavailable)
	}

	candidates, err := r.collectCandidates(ctx, dataset, query, dense, useHybrid)
	if err != nil {
		return nil, err
	}

	if useHybrid {
		scores := r.lexical.ScoreCandidates(query, chunksOf(candidates))
		for _, c := range candidates {
			c.Lexical = scores[c.Chunk.ID]
		}
		Fuse(candidates, r.cfg.DenseWeight, r.cfg.LexicalWeight)
	} else {
		Fuse(candidates, 1, 0)
	}

	result := &models.QueryResult{}
	if useRerank {
		result.Degraded = !r.applyRerank(ctx, query, candidates)
	}

	if len(candidates) > n {
		candidates = candidates[:n]
	}
	result.Chunks = candidates
	return result, nil
}

// collectCandidates loads the dense hits and, in hybrid mode, merges keyword
// hits not already present. Keyword failures only narrow the candidate set,
// so they are logged and tolerated.
func (r *Retriever) collectCandidates(ctx context.Context, dataset, query string, dense []*vector.Result, useHybrid bool) ([]*models.ScoredChunk, error) {
	denseScores := make(map[string]float64, len(dense))
	ids := make([]string, 0, len(dense))
	for _, d := range dense {
		denseScores[d.ID] = vector.ClampScore(d.Score)
		ids = append(ids, d.ID)
	}

	if useHybrid {
		hits, err := r.store.KeywordSearch(ctx, dataset, query, r.cfg.KeywordCandidateLimit)
		if err != nil {
			r.logger.Warn("keyword search failed, dense candidates only",
				zap.String("dataset", dataset), zap.Error(err))
		}
		for _, h := range hits {
			if _, ok := denseScores[h.ID]; !ok {
				denseScores[h.ID] = 0
				ids = append(ids, h.ID)
			}
		}
	}

	chunks, err := r.store.GetChunks(ctx, dataset, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load candidate chunks: %w", models.ErrBackendUnavailable)
	}
	out := make([]*models.ScoredChunk, len(chunks))
	for i, c := range chunks {
		out[i] = &models.ScoredChunk{Chunk: c, Dense: denseScores[c.ID]}
	}
	return out, nil
}

// applyRerank rescores the candidates with the cross-encoder and re-sorts.
// Returns false when reranking could not run; the fused ordering is left
// untouched in that case.
func (r *Retriever) applyRerank(ctx context.Context, query string, candidates []*models.ScoredChunk) bool {
	if len(candidates) == 0 {
		return true
	}
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Chunk.Text
	}
	scores, err := r.reranker.Rerank(ctx, query, texts)
	if err != nil {
		r.logger.Warn("reranker unavailable, serving fused ordering", zap.Error(err))
		return false
	}
	for i, c := range candidates {
		c.Reranked = scores[i]
	}
	SortByReranked(candidates)
	return true
}

func chunksOf(candidates []*models.ScoredChunk) []*models.Chunk {
	out := make([]*models.Chunk, len(candidates))
	for i, c := range candidates {
		out[i] = c.Chunk
	}
	return out
}

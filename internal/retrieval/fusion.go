// Package retrieval runs the hybrid query pipeline: dense retrieval widened
// by keyword hits, lexical scoring, weighted fusion, and best-effort
// reranking.
package retrieval

import (
	"sort"

	"github.com/Jumawebhub/qlex/internal/models"
)

// Fuse assigns each candidate its weighted dense+lexical score and sorts the
// slice into the canonical ordering. Two candidates can only tie on every
// comparison key by being the same chunk, so the ordering is total and
// reproducible across runs.
func Fuse(candidates []*models.ScoredChunk, denseWeight, lexicalWeight float64) {
	for _, c := range candidates {
		c.Fused = denseWeight*c.Dense + lexicalWeight*c.Lexical
	}
	SortCandidates(candidates)
}

// SortCandidates orders candidates by fused score descending, breaking ties
// by raw dense score descending, then chunk index ascending, then ID
// ascending.
func SortCandidates(candidates []*models.ScoredChunk) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Fused != b.Fused {
			return a.Fused > b.Fused
		}
		if a.Dense != b.Dense {
			return a.Dense > b.Dense
		}
		if a.Chunk.ChunkIndex != b.Chunk.ChunkIndex {
			return a.Chunk.ChunkIndex < b.Chunk.ChunkIndex
		}
		return a.Chunk.ID < b.Chunk.ID
	})
}

// SortByReranked orders candidates by reranker score descending with the
// same deterministic tie-breaking as the fused ordering.
func SortByReranked(candidates []*models.ScoredChunk) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Reranked != b.Reranked {
			return a.Reranked > b.Reranked
		}
		if a.Fused != b.Fused {
			return a.Fused > b.Fused
		}
		if a.Chunk.ChunkIndex != b.Chunk.ChunkIndex {
			return a.Chunk.ChunkIndex < b.Chunk.ChunkIndex
		}
		return a.Chunk.ID < b.Chunk.ID
	})
}

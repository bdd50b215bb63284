package models

// NoDocumentsMessage is the sentinel text returned when a dataset has no
// chunks. The prompt layer reacts to it distinctly from real context.
const NoDocumentsMessage = "No documents found in the selected dataset. Please upload documents or select a different dataset."

// PreviewLength is the citation snippet length in bytes.
const PreviewLength = 150

// ScoredChunk pairs a chunk with its retrieval scores. Fused is the weighted
// combination of Dense and Lexical; Reranked holds the cross-encoder score
// when reranking ran.
type ScoredChunk struct {
	Chunk    *Chunk  `json:"chunk"`
	Dense    float64 `json:"dense_score"`
	Lexical  float64 `json:"lexical_score"`
	Fused    float64 `json:"fused_score"`
	Reranked float64 `json:"reranked_score,omitempty"`
}

// QueryResult is the ephemeral outcome of one dataset query, ordered by
// descending relevance. Degraded marks a result produced without the
// reranker after a fail-open fallback; it is still a real result, just
// capped in quality.
type QueryResult struct {
	Chunks   []*ScoredChunk `json:"chunks"`
	Degraded bool           `json:"degraded,omitempty"`
	// NoDocuments marks the sentinel result for an empty dataset; the
	// vector index was never touched.
	NoDocuments bool `json:"no_documents,omitempty"`
}

// Citation is the display view of a retrieved chunk: its provenance plus a
// truncated text preview.
type Citation struct {
	Source  string `json:"source"`
	Page    int    `json:"page"`
	PageKey string `json:"page_key"`
	Snippet string `json:"snippet"`
}

// QueryResponse is the wire shape of a dataset query. Documents and
// Metadatas follow the batch-of-one convention: a single query batch wraps
// its results in a one-element outer slice, so callers always index
// position 0.
type QueryResponse struct {
	Documents [][]string                 `json:"documents"`
	Metadatas [][]map[string]interface{} `json:"metadatas"`
	Degraded  bool                       `json:"degraded,omitempty"`
}

// ToResponse converts the internal result into the batch-of-one wire shape.
// An empty result produces the no-documents sentinel entry rather than empty
// inner slices.
func (r *QueryResult) ToResponse() *QueryResponse {
	if len(r.Chunks) == 0 {
		return &QueryResponse{
			Documents: [][]string{{NoDocumentsMessage}},
			Metadatas: [][]map[string]interface{}{{{"source": "System", "page": 0}}},
			Degraded:  r.Degraded,
		}
	}
	docs := make([]string, len(r.Chunks))
	metas := make([]map[string]interface{}, len(r.Chunks))
	for i, sc := range r.Chunks {
		docs[i] = sc.Chunk.Text
		metas[i] = sc.Chunk.Metadata()
	}
	return &QueryResponse{
		Documents: [][]string{docs},
		Metadatas: [][]map[string]interface{}{metas},
		Degraded:  r.Degraded,
	}
}

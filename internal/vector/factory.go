package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeMemory uses in-memory brute-force search. Exact results, good
	// for small datasets (<10k vectors).
	IndexTypeMemory IndexType = "memory"
	// IndexTypeHNSW uses a hierarchical navigable small-world graph for
	// approximate search. Good for large datasets.
	IndexTypeHNSW IndexType = "hnsw"
)

// NewIndex creates a vector index of the specified type.
// Supported types: "hnsw" (default), "memory". The params only apply to HNSW.
func NewIndex(indexType string, dimensions int, params HNSWParams) (Index, error) {
	switch IndexType(indexType) {
	case IndexTypeHNSW, "":
		return NewHNSWIndex(dimensions, params)
	case IndexTypeMemory:
		return NewMemoryIndex(dimensions)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: hnsw, memory)", indexType)
	}
}

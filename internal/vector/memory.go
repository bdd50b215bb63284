package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// MemoryIndex is an exact brute-force index. Suitable for tests and small
// datasets; the HNSW index is the production default.
type MemoryIndex struct {
	dimensions int
	ids        []string
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory exact index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{dimensions: dimensions}, nil
}

// Add appends vectors with the given IDs. A vector whose ID is already
// present replaces the existing entry, so re-ingestion with the same chunk
// ID never leaves a stale duplicate.
func (m *MemoryIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	pos := make(map[string]int, len(m.ids))
	for i, id := range m.ids {
		pos[id] = i
	}
	for i, id := range ids {
		if len(vectors[i]) != m.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), m.dimensions)
		}
		vec := make([]float32, m.dimensions)
		copy(vec, vectors[i])
		if j, ok := pos[id]; ok {
			m.vectors[j] = vec
			continue
		}
		pos[id] = len(m.ids)
		m.ids = append(m.ids, id)
		m.vectors = append(m.vectors, vec)
	}
	return nil
}

// Search returns the top-k vectors by inner product, ties broken by ID so
// the ordering is reproducible.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]*Result, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.ids) == 0 {
		return nil, nil
	}
	scores := make([]*Result, len(m.ids))
	for i, vec := range m.vectors {
		scores[i] = &Result{ID: m.ids[i], Score: InnerProduct(query, vec)}
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].ID < scores[j].ID
	})
	if k > len(scores) {
		k = len(scores)
	}
	return scores[:k], nil
}

// Remove deletes vectors by ID by rebuilding the backing slices.
func (m *MemoryIndex) Remove(ctx context.Context, ids []string) error {
	removeSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		removeSet[id] = true
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	newIDs := m.ids[:0]
	newVectors := m.vectors[:0]
	for i, id := range m.ids {
		if !removeSet[id] {
			newIDs = append(newIDs, id)
			newVectors = append(newVectors, m.vectors[i])
		}
	}
	m.ids = newIDs
	m.vectors = newVectors
	return nil
}

// Save persists the index to path. Format: dimension (4), n (4), then per
// vector: idLen (4), id bytes, vector (dimension*4 bytes), little endian.
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(m.ids))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i, id := range m.ids {
		idBytes := []byte(id)
		if err := binary.Write(f, binary.LittleEndian, uint32(len(idBytes))); err != nil {
			return fmt.Errorf("write id len: %w", err)
		}
		if _, err := f.Write(idBytes); err != nil {
			return fmt.Errorf("write id: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(m.vectors[i])); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents.
// A missing file is not an error; the index stays empty.
func (m *MemoryIndex) Load(path string) error {
	ids, vectors, err := loadVectorFile(path, m.dimensions)
	if err != nil || ids == nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = ids
	m.vectors = vectors
	return nil
}

// Size returns the number of vectors in the index.
func (m *MemoryIndex) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error { return nil }

// loadVectorFile reads the shared (id, vector) file format. Returns nil
// slices without error when the file does not exist.
func loadVectorFile(path string, dimensions int) ([]string, [][]float32, error) {
	if path == "" {
		return nil, nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return nil, nil, fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != dimensions {
		return nil, nil, fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return nil, nil, fmt.Errorf("read count: %w", err)
	}
	ids := make([]string, 0, n)
	vectors := make([][]float32, 0, n)
	buf := make([]byte, dimensions*4)
	for i := uint32(0); i < n; i++ {
		var idLen uint32
		if err := binary.Read(f, binary.LittleEndian, &idLen); err != nil {
			return nil, nil, fmt.Errorf("read id len: %w", err)
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(f, idBytes); err != nil {
			return nil, nil, fmt.Errorf("read id: %w", err)
		}
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, nil, fmt.Errorf("read vector: %w", err)
		}
		ids = append(ids, string(idBytes))
		vectors = append(vectors, bytesToFloat32Slice(buf))
	}
	return ids, vectors, nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}

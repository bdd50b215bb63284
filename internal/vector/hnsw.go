package vector

import (
	"container/heap"
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
)

// HNSWParams tunes the HNSW graph. Higher values increase build cost and
// memory but improve recall; the defaults favor correctness over latency for
// moderate dataset sizes.
type HNSWParams struct {
	// MaxConnections is the maximum number of links per node (M). Level 0
	// allows 2*M links.
	MaxConnections int
	// EFConstruction is the candidate-list size while building the graph.
	EFConstruction int
	// EFSearch is the candidate-list size during search.
	EFSearch int
}

// DefaultHNSWParams returns the tuning used for legal corpora of moderate size.
func DefaultHNSWParams() HNSWParams {
	return HNSWParams{MaxConnections: 128, EFConstruction: 400, EFSearch: 200}
}

// HNSWIndex is an approximate nearest-neighbor index over unit vectors using
// a hierarchical navigable small-world graph. Similarity is inner product.
// Removed vectors are tombstoned: they keep routing through the graph but
// never appear in results.
type HNSWIndex struct {
	dimensions int
	params     HNSWParams
	levelMult  float64

	mu    sync.RWMutex
	nodes []*hnswNode
	byID  map[string]int
	entry int // index into nodes, -1 when empty
	rng   *rand.Rand
}

type hnswNode struct {
	id      string
	vec     []float32
	level   int
	links   [][]int // per level, indices into nodes
	deleted bool
}

// NewHNSWIndex creates an HNSW index with the given dimension and tuning.
// Zero params fall back to DefaultHNSWParams. The level generator is seeded
// deterministically so identical insertion sequences build identical graphs,
// which keeps test orderings reproducible.
func NewHNSWIndex(dimensions int, params HNSWParams) (*HNSWIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	def := DefaultHNSWParams()
	if params.MaxConnections <= 0 {
		params.MaxConnections = def.MaxConnections
	}
	if params.EFConstruction <= 0 {
		params.EFConstruction = def.EFConstruction
	}
	if params.EFSearch <= 0 {
		params.EFSearch = def.EFSearch
	}
	return &HNSWIndex{
		dimensions: dimensions,
		params:     params,
		levelMult:  1.0 / math.Log(float64(params.MaxConnections)),
		byID:       make(map[string]int),
		entry:      -1,
		rng:        rand.New(rand.NewSource(1)),
	}, nil
}

// Add inserts vectors. An ID already present is replaced (tombstone the old
// node, insert a new one) so re-ingestion never duplicates a chunk.
func (h *HNSWIndex) Add(ctx context.Context, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("ids and vectors length mismatch")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, id := range ids {
		if len(vectors[i]) != h.dimensions {
			return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(vectors[i]), h.dimensions)
		}
		if old, ok := h.byID[id]; ok {
			h.nodes[old].deleted = true
		}
		vec := make([]float32, h.dimensions)
		copy(vec, vectors[i])
		h.insert(id, vec)
	}
	return nil
}

func (h *HNSWIndex) insert(id string, vec []float32) {
	level := h.randomLevel()
	node := &hnswNode{id: id, vec: vec, level: level, links: make([][]int, level+1)}
	idx := len(h.nodes)
	h.nodes = append(h.nodes, node)
	h.byID[id] = idx

	if h.entry < 0 {
		h.entry = idx
		return
	}

	ep := h.entry
	epLevel := h.nodes[ep].level

	// Greedy descent through levels above the new node's level.
	for l := epLevel; l > level; l-- {
		ep = h.greedyClosest(vec, ep, l)
	}

	// Build links level by level from min(level, epLevel) down to 0.
	top := level
	if epLevel < top {
		top = epLevel
	}
	for l := top; l >= 0; l-- {
		candidates := h.searchLayer(vec, ep, h.params.EFConstruction, l)
		maxLinks := h.params.MaxConnections
		if l == 0 {
			maxLinks = 2 * h.params.MaxConnections
		}
		neighbors := candidates
		if len(neighbors) > h.params.MaxConnections {
			neighbors = neighbors[:h.params.MaxConnections]
		}
		for _, n := range neighbors {
			node.links[l] = append(node.links[l], n.idx)
			h.nodes[n.idx].links[l] = append(h.nodes[n.idx].links[l], idx)
			h.pruneLinks(n.idx, l, maxLinks)
		}
		if len(candidates) > 0 {
			ep = candidates[0].idx
		}
	}

	if level > epLevel {
		h.entry = idx
	}
}

// pruneLinks keeps only the maxLinks most similar neighbors of node n at
// level l.
func (h *HNSWIndex) pruneLinks(n, l, maxLinks int) {
	links := h.nodes[n].links[l]
	if len(links) <= maxLinks {
		return
	}
	base := h.nodes[n].vec
	sort.Slice(links, func(i, j int) bool {
		si := InnerProduct(base, h.nodes[links[i]].vec)
		sj := InnerProduct(base, h.nodes[links[j]].vec)
		if si != sj {
			return si > sj
		}
		return h.nodes[links[i]].id < h.nodes[links[j]].id
	})
	h.nodes[n].links[l] = links[:maxLinks]
}

func (h *HNSWIndex) randomLevel() int {
	return int(-math.Log(h.rng.Float64()) * h.levelMult)
}

// greedyClosest walks level l from start toward the query until no neighbor
// improves similarity.
func (h *HNSWIndex) greedyClosest(query []float32, start, l int) int {
	cur := start
	curScore := InnerProduct(query, h.nodes[cur].vec)
	for {
		improved := false
		for _, n := range h.nodes[cur].links[l] {
			if s := InnerProduct(query, h.nodes[n].vec); s > curScore {
				cur, curScore = n, s
				improved = true
			}
		}
		if !improved {
			return cur
		}
	}
}

type scoredIdx struct {
	idx   int
	score float64
}

// maxHeap pops the highest-score candidate first.
type maxHeap []scoredIdx

func (q maxHeap) Len() int            { return len(q) }
func (q maxHeap) Less(i, j int) bool  { return q[i].score > q[j].score }
func (q maxHeap) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *maxHeap) Push(x interface{}) { *q = append(*q, x.(scoredIdx)) }
func (q *maxHeap) Pop() interface{} {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}

// minHeap pops the lowest-score result first (for evicting the worst).
type minHeap []scoredIdx

func (q minHeap) Len() int            { return len(q) }
func (q minHeap) Less(i, j int) bool  { return q[i].score < q[j].score }
func (q minHeap) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *minHeap) Push(x interface{}) { *q = append(*q, x.(scoredIdx)) }
func (q *minHeap) Pop() interface{} {
	old := *q
	n := len(old)
	x := old[n-1]
	*q = old[:n-1]
	return x
}

// searchLayer runs the beam search at level l and returns up to ef nearest
// nodes sorted by score descending (ties by ID ascending).
func (h *HNSWIndex) searchLayer(query []float32, entry, ef, l int) []scoredIdx {
	visited := map[int]bool{entry: true}
	entryScore := InnerProduct(query, h.nodes[entry].vec)

	candidates := maxHeap{{entry, entryScore}}
	heap.Init(&candidates)
	results := minHeap{{entry, entryScore}}
	heap.Init(&results)

	for candidates.Len() > 0 {
		c := heap.Pop(&candidates).(scoredIdx)
		if results.Len() >= ef && c.score < results[0].score {
			break
		}
		for _, n := range h.nodes[c.idx].links[l] {
			if visited[n] {
				continue
			}
			visited[n] = true
			s := InnerProduct(query, h.nodes[n].vec)
			if results.Len() < ef || s > results[0].score {
				heap.Push(&candidates, scoredIdx{n, s})
				heap.Push(&results, scoredIdx{n, s})
				if results.Len() > ef {
					heap.Pop(&results)
				}
			}
		}
	}

	out := make([]scoredIdx, len(results))
	copy(out, results)
	sort.Slice(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return h.nodes[out[i].idx].id < h.nodes[out[j].idx].id
	})
	return out
}

// Search returns up to k nearest live vectors. The beam width is
// max(EFSearch, k) so requesting more results than the tuning anticipates
// still works.
func (h *HNSWIndex) Search(ctx context.Context, query []float32, k int) ([]*Result, error) {
	if len(query) != h.dimensions {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), h.dimensions)
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if k <= 0 || h.entry < 0 {
		return nil, nil
	}
	ef := h.params.EFSearch
	if k > ef {
		ef = k
	}
	ep := h.entry
	for l := h.nodes[ep].level; l > 0; l-- {
		ep = h.greedyClosest(query, ep, l)
	}
	candidates := h.searchLayer(query, ep, ef, 0)
	out := make([]*Result, 0, k)
	for _, c := range candidates {
		if h.nodes[c.idx].deleted {
			continue
		}
		out = append(out, &Result{ID: h.nodes[c.idx].id, Score: c.score})
		if len(out) == k {
			break
		}
	}
	return out, nil
}

// Remove tombstones the given IDs. The nodes stay in the graph for routing;
// Size and Search ignore them.
func (h *HNSWIndex) Remove(ctx context.Context, ids []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range ids {
		if idx, ok := h.byID[id]; ok {
			h.nodes[idx].deleted = true
			delete(h.byID, id)
		}
	}
	return nil
}

// Save persists the live vectors in the shared (id, vector) file format.
// The graph itself is not persisted; Load rebuilds it by reinsertion.
func (h *HNSWIndex) Save(path string) error {
	h.mu.RLock()
	ids := make([]string, 0, len(h.byID))
	for _, n := range h.nodes {
		if !n.deleted {
			ids = append(ids, n.id)
		}
	}
	sort.Strings(ids)
	vectors := make([][]float32, len(ids))
	for i, id := range ids {
		vectors[i] = h.nodes[h.byID[id]].vec
	}
	h.mu.RUnlock()

	tmp := &MemoryIndex{dimensions: h.dimensions, ids: ids, vectors: vectors}
	return tmp.Save(path)
}

// Load reads vectors from path and rebuilds the graph. A missing file leaves
// the index empty without error.
func (h *HNSWIndex) Load(path string) error {
	ids, vectors, err := loadVectorFile(path, h.dimensions)
	if err != nil || ids == nil {
		return err
	}
	h.mu.Lock()
	h.nodes = nil
	h.byID = make(map[string]int, len(ids))
	h.entry = -1
	h.rng = rand.New(rand.NewSource(1))
	for i, id := range ids {
		h.insert(id, vectors[i])
	}
	h.mu.Unlock()
	return nil
}

// Size returns the number of live vectors.
func (h *HNSWIndex) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byID)
}

// Close is a no-op for HNSWIndex.
func (h *HNSWIndex) Close() error { return nil }

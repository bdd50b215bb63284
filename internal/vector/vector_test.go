package vector

import (
	"context"
	"math"
	"math/rand"
	"path/filepath"
	"testing"
)

func TestMemoryIndex_AddSearch(t *testing.T) {
	idx, err := NewMemoryIndex(3)
	if err != nil {
		t.Fatal(err)
	}
	defer idx.Close()
	ctx := context.Background()

	vecs := [][]float32{
		{1, 0, 0},
		{0.9, 0.1, 0},
		{0, 1, 0},
	}
	ids := []string{"a", "b", "c"}
	if err := idx.Add(ctx, ids, vecs); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 3 {
		t.Errorf("Size=%d", idx.Size())
	}

	results, err := idx.Search(ctx, []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != "a" || results[1].ID != "b" {
		t.Errorf("got %s, %s", results[0].ID, results[1].ID)
	}
}

func TestMemoryIndex_AddReplacesExisting(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x"}, [][]float32{{1, 0}})
	_ = idx.Add(ctx, []string{"x"}, [][]float32{{0, 1}})
	if idx.Size() != 1 {
		t.Fatalf("expected size 1 after upsert, got %d", idx.Size())
	}
	results, _ := idx.Search(ctx, []float32{0, 1}, 1)
	if results[0].Score < 0.99 {
		t.Errorf("expected updated vector, score=%f", results[0].Score)
	}
}

func TestMemoryIndex_TieBreakByID(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	// Identical vectors: ordering must fall back to ID ascending.
	_ = idx.Add(ctx, []string{"b", "a", "c"}, [][]float32{{1, 0}, {1, 0}, {1, 0}})
	results, _ := idx.Search(ctx, []float32{1, 0}, 3)
	for i, want := range []string{"a", "b", "c"} {
		if results[i].ID != want {
			t.Errorf("position %d: got %s, want %s", i, results[i].ID, want)
		}
	}
}

func TestMemoryIndex_Remove(t *testing.T) {
	idx, _ := NewMemoryIndex(2)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"x", "y"}, [][]float32{{1, 0}, {0, 1}})
	if err := idx.Remove(ctx, []string{"x"}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 1 {
		t.Errorf("expected size 1, got %d", idx.Size())
	}
	results, _ := idx.Search(ctx, []float32{1, 0}, 2)
	if len(results) != 1 || results[0].ID != "y" {
		t.Errorf("removed vector still returned: %+v", results)
	}
}

func TestMemoryIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.bin")
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"a", "b"}, [][]float32{{1, 0, 0}, {0, 1, 0}})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewMemoryIndex(3)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 2 {
		t.Fatalf("expected 2 vectors after load, got %d", loaded.Size())
	}
	results, _ := loaded.Search(ctx, []float32{0, 1, 0}, 1)
	if results[0].ID != "b" {
		t.Errorf("got %s", results[0].ID)
	}
}

func TestMemoryIndex_LoadMissingFile(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	if err := idx.Load(filepath.Join(t.TempDir(), "missing.bin")); err != nil {
		t.Errorf("missing file should not error: %v", err)
	}
	if idx.Size() != 0 {
		t.Errorf("expected empty index, got %d", idx.Size())
	}
}

func TestMemoryIndex_DimensionMismatch(t *testing.T) {
	idx, _ := NewMemoryIndex(3)
	ctx := context.Background()
	if err := idx.Add(ctx, []string{"a"}, [][]float32{{1, 0}}); err == nil {
		t.Error("expected dimension mismatch error on Add")
	}
	if _, err := idx.Search(ctx, []float32{1, 0}, 1); err == nil {
		t.Error("expected dimension mismatch error on Search")
	}
}

func randomUnitVecs(n, dim int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	vecs := make([][]float32, n)
	for i := range vecs {
		v := make([]float32, dim)
		var norm float64
		for d := range v {
			v[d] = float32(rng.NormFloat64())
			norm += float64(v[d]) * float64(v[d])
		}
		norm = math.Sqrt(norm)
		for d := range v {
			v[d] = float32(float64(v[d]) / norm)
		}
		vecs[i] = v
	}
	return vecs
}

func TestHNSWIndex_RecallAgainstBruteForce(t *testing.T) {
	const n, dim, k = 500, 16, 10
	vecs := randomUnitVecs(n, dim, 42)
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmtID(i)
	}
	ctx := context.Background()

	exact, _ := NewMemoryIndex(dim)
	_ = exact.Add(ctx, ids, vecs)
	approx, err := NewHNSWIndex(dim, HNSWParams{MaxConnections: 16, EFConstruction: 100, EFSearch: 64})
	if err != nil {
		t.Fatal(err)
	}
	_ = approx.Add(ctx, ids, vecs)

	queries := randomUnitVecs(20, dim, 7)
	var hits, total int
	for _, q := range queries {
		want, _ := exact.Search(ctx, q, k)
		got, _ := approx.Search(ctx, q, k)
		wantSet := make(map[string]bool, k)
		for _, r := range want {
			wantSet[r.ID] = true
		}
		for _, r := range got {
			if wantSet[r.ID] {
				hits++
			}
		}
		total += len(want)
	}
	recall := float64(hits) / float64(total)
	if recall < 0.9 {
		t.Errorf("recall %.2f below 0.9", recall)
	}
}

func fmtID(i int) string {
	// Zero-padded so lexical order matches numeric order.
	s := []byte{'v', '0', '0', '0', '0'}
	for p := 4; p >= 1 && i > 0; p-- {
		s[p] = byte('0' + i%10)
		i /= 10
	}
	return string(s)
}

func TestHNSWIndex_Determinism(t *testing.T) {
	const n, dim = 200, 8
	vecs := randomUnitVecs(n, dim, 3)
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmtID(i)
	}
	ctx := context.Background()

	build := func() *HNSWIndex {
		idx, _ := NewHNSWIndex(dim, HNSWParams{MaxConnections: 8, EFConstruction: 50, EFSearch: 32})
		_ = idx.Add(ctx, ids, vecs)
		return idx
	}
	a, b := build(), build()
	q := randomUnitVecs(1, dim, 99)[0]
	ra, _ := a.Search(ctx, q, 10)
	rb, _ := b.Search(ctx, q, 10)
	if len(ra) != len(rb) {
		t.Fatalf("result lengths differ: %d vs %d", len(ra), len(rb))
	}
	for i := range ra {
		if ra[i].ID != rb[i].ID {
			t.Errorf("position %d differs: %s vs %s", i, ra[i].ID, rb[i].ID)
		}
	}
}

func TestHNSWIndex_RemoveAndReplace(t *testing.T) {
	idx, _ := NewHNSWIndex(2, HNSWParams{MaxConnections: 4, EFConstruction: 16, EFSearch: 8})
	ctx := context.Background()
	_ = idx.Add(ctx, []string{"a", "b", "c"}, [][]float32{{1, 0}, {0, 1}, {0.7, 0.7}})

	if err := idx.Remove(ctx, []string{"a"}); err != nil {
		t.Fatal(err)
	}
	if idx.Size() != 2 {
		t.Errorf("expected size 2, got %d", idx.Size())
	}
	results, _ := idx.Search(ctx, []float32{1, 0}, 3)
	for _, r := range results {
		if r.ID == "a" {
			t.Error("tombstoned vector returned")
		}
	}

	// Re-adding an existing ID replaces the vector.
	_ = idx.Add(ctx, []string{"b"}, [][]float32{{1, 0}})
	if idx.Size() != 2 {
		t.Errorf("upsert changed size: %d", idx.Size())
	}
	results, _ = idx.Search(ctx, []float32{1, 0}, 1)
	if results[0].ID != "b" {
		t.Errorf("expected b after replace, got %s", results[0].ID)
	}
}

func TestHNSWIndex_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hnsw.bin")
	ctx := context.Background()
	params := HNSWParams{MaxConnections: 8, EFConstruction: 50, EFSearch: 32}

	idx, _ := NewHNSWIndex(4, params)
	vecs := randomUnitVecs(50, 4, 11)
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = fmtID(i)
	}
	_ = idx.Add(ctx, ids, vecs)
	_ = idx.Remove(ctx, []string{fmtID(3)})
	if err := idx.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, _ := NewHNSWIndex(4, params)
	if err := loaded.Load(path); err != nil {
		t.Fatal(err)
	}
	if loaded.Size() != 49 {
		t.Fatalf("expected 49 vectors after load, got %d", loaded.Size())
	}
	results, _ := loaded.Search(ctx, vecs[7], 1)
	if results[0].ID != fmtID(7) {
		t.Errorf("expected %s, got %s", fmtID(7), results[0].ID)
	}
}

func TestNewIndex(t *testing.T) {
	for _, tc := range []struct {
		indexType string
		wantErr   bool
	}{
		{"memory", false},
		{"hnsw", false},
		{"", false},
		{"faiss", true},
	} {
		idx, err := NewIndex(tc.indexType, 4, HNSWParams{})
		if tc.wantErr {
			if err == nil {
				t.Errorf("type %q: expected error", tc.indexType)
			}
			continue
		}
		if err != nil {
			t.Errorf("type %q: %v", tc.indexType, err)
			continue
		}
		idx.Close()
	}
}

func TestClampScore(t *testing.T) {
	for _, tc := range []struct{ in, want float64 }{
		{0.5, 0.5},
		{-0.2, 0},
		{1.3, 1},
	} {
		if got := ClampScore(tc.in); got != tc.want {
			t.Errorf("ClampScore(%f)=%f, want %f", tc.in, got, tc.want)
		}
	}
}

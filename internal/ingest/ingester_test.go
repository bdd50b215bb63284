package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/Jumawebhub/qlex/internal/config"
	"github.com/Jumawebhub/qlex/internal/embedding"
	"github.com/Jumawebhub/qlex/internal/extract"
	"github.com/Jumawebhub/qlex/internal/models"
	"github.com/Jumawebhub/qlex/internal/store"
)

const longText = "This provision establishes the obligations of member states regarding enforcement."

func newTestIngester(t *testing.T, e embedding.Embedder) (*Ingester, *store.ChunkStore) {
	t.Helper()
	dir := t.TempDir()
	s, err := store.NewChunkStore(store.Options{
		DBPath:     filepath.Join(dir, "chunks.db"),
		DataDir:    filepath.Join(dir, "data"),
		Dimensions: 16,
		IndexType:  "memory",
	}, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	if e == nil {
		e = embedding.NewMockEmbedder(16)
	}
	cfg := &config.IngestConfig{BatchSize: 2, RetryBackoffMS: 1}
	return NewIngester(s, e, cfg, zap.NewNop()), s
}

func sections(texts ...string) []extract.Section {
	out := make([]extract.Section, len(texts))
	for i, text := range texts {
		out[i] = extract.Section{Text: text, Position: i + 1, PositionKey: "page"}
	}
	return out
}

func TestIngestBatch_DropsShortChunks(t *testing.T) {
	ing, s := newTestIngester(t, nil)
	ctx := context.Background()

	result, err := ing.IngestBatch(ctx, "ds", []Document{{
		Source:   "reg.pdf",
		DocIndex: 0,
		Sections: sections("Page 3", longText, "  ", longText+" More detail follows."),
	}})
	if err != nil {
		t.Fatal(err)
	}
	if result.ChunksAdded != 2 {
		t.Errorf("ChunksAdded=%d", result.ChunksAdded)
	}
	if result.ChunksDropped != 2 {
		t.Errorf("ChunksDropped=%d", result.ChunksDropped)
	}
	n, _ := s.ChunkCount(ctx, "ds")
	if n != 2 {
		t.Errorf("stored chunks=%d", n)
	}
}

func TestIngestBatch_ChunkIDsAndProvenance(t *testing.T) {
	ing, s := newTestIngester(t, nil)
	ctx := context.Background()

	_, err := ing.IngestBatch(ctx, "ds", []Document{{
		Source:   "reg.pdf",
		DocIndex: 3,
		Sections: sections(longText, longText+" second"),
	}})
	if err != nil {
		t.Fatal(err)
	}

	chunks, err := s.GetChunks(ctx, "ds", []string{"reg.pdf_3_0", "reg.pdf_3_1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks by ID, got %d", len(chunks))
	}
	if chunks[0].Page != 1 || chunks[0].PageKey != "page" {
		t.Errorf("provenance %d/%s", chunks[0].Page, chunks[0].PageKey)
	}
}

func TestIngestBatch_DocumentCountRecomputed(t *testing.T) {
	ing, _ := newTestIngester(t, nil)
	ctx := context.Background()

	result, err := ing.IngestBatch(ctx, "ds", []Document{
		{Source: "a.pdf", DocIndex: 0, Sections: sections(longText)},
		{Source: "b.pdf", DocIndex: 1, Sections: sections(longText)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.DocumentCount != 2 {
		t.Errorf("DocumentCount=%d", result.DocumentCount)
	}

	// Re-ingesting the same sources must not inflate the count.
	result, err = ing.IngestBatch(ctx, "ds", []Document{
		{Source: "a.pdf", DocIndex: 0, Sections: sections(longText)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if result.DocumentCount != 2 {
		t.Errorf("DocumentCount after re-ingest=%d", result.DocumentCount)
	}
}

func TestIngestBatch_Validation(t *testing.T) {
	ing, _ := newTestIngester(t, nil)
	ctx := context.Background()

	if _, err := ing.IngestBatch(ctx, "", nil); !models.IsValidation(err) {
		t.Errorf("empty dataset: got %v", err)
	}
	_, err := ing.IngestBatch(ctx, "ds", []Document{{Source: "", Sections: sections(longText)}})
	if !models.IsValidation(err) {
		t.Errorf("empty source: got %v", err)
	}
}

// flakyEmbedder fails the first batch call, then recovers.
type flakyEmbedder struct {
	*embedding.MockEmbedder
	mu       sync.Mutex
	failures int
	calls    int
}

func (e *flakyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	fail := e.failures > 0
	if fail {
		e.failures--
	}
	e.mu.Unlock()
	if fail {
		return nil, errors.New("transient provider error")
	}
	return e.MockEmbedder.EmbedBatch(ctx, texts)
}

func TestIngestBatch_RetriesOnce(t *testing.T) {
	e := &flakyEmbedder{MockEmbedder: embedding.NewMockEmbedder(16), failures: 1}
	ing, s := newTestIngester(t, e)
	ctx := context.Background()

	result, err := ing.IngestBatch(ctx, "ds", []Document{{
		Source: "a.pdf", DocIndex: 0, Sections: sections(longText),
	}})
	if err != nil {
		t.Fatalf("single transient failure should be retried: %v", err)
	}
	if result.ChunksAdded != 1 {
		t.Errorf("ChunksAdded=%d", result.ChunksAdded)
	}
	n, _ := s.ChunkCount(ctx, "ds")
	if n != 1 {
		t.Errorf("stored chunks=%d", n)
	}
}

func TestIngestBatch_PersistentFailureKeepsCommittedBatches(t *testing.T) {
	// Batch size is 2, so four chunks make two batches. The embedder lets
	// the first batch through and fails every later call, including the
	// retry, so the second batch fails terminally.
	ing, s := newTestIngester(t, nil)
	ing.embedder = &armAfterFirst{inner: embedding.NewMockEmbedder(16)}
	ctx := context.Background()

	texts := make([]string, 4)
	for i := range texts {
		texts[i] = longText + strings.Repeat(" extra", i+1)
	}
	docs := []Document{{Source: "a.pdf", DocIndex: 0, Sections: sections(texts...)}}

	result, err := ing.IngestBatch(ctx, "ds", docs)
	if err == nil {
		t.Fatal("expected terminal failure")
	}
	if result.ChunksAdded != 2 {
		t.Errorf("ChunksAdded=%d, want the committed first batch", result.ChunksAdded)
	}
	n, _ := s.ChunkCount(ctx, "ds")
	if n != 2 {
		t.Errorf("stored chunks=%d", n)
	}
}

// armAfterFirst lets the first EmbedBatch through and fails the rest.
type armAfterFirst struct {
	inner embedding.Embedder
	mu    sync.Mutex
	calls int
}

func (e *armAfterFirst) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.inner.Embed(ctx, text)
}

func (e *armAfterFirst) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	n := e.calls
	e.mu.Unlock()
	if n > 1 {
		return nil, errors.New("provider down")
	}
	return e.inner.EmbedBatch(ctx, texts)
}

func (e *armAfterFirst) Dimensions() int { return e.inner.Dimensions() }
func (e *armAfterFirst) Close() error    { return e.inner.Close() }

func TestIngestFile_Txt(t *testing.T) {
	ing, s := newTestIngester(t, nil)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "guide.txt")
	content := longText + "\n\n" + longText + " Additional part follows here.\n\nshort"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := ing.IngestFile(ctx, "ds", path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if result.ChunksAdded != 2 || result.ChunksDropped != 1 {
		t.Errorf("added=%d dropped=%d", result.ChunksAdded, result.ChunksDropped)
	}
	sources, _ := s.Sources(ctx, "ds")
	if len(sources) != 1 || sources[0].Source != "guide.txt" {
		t.Errorf("sources=%+v", sources)
	}
}

func TestIngestFile_EmptyFileNotAnError(t *testing.T) {
	ing, _ := newTestIngester(t, nil)
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	result, err := ing.IngestFile(context.Background(), "ds", path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if result.ChunksAdded != 0 {
		t.Errorf("ChunksAdded=%d", result.ChunksAdded)
	}
}

func TestIngestDirectory_SupportedFilesOnly(t *testing.T) {
	ing, s := newTestIngester(t, nil)
	ctx := context.Background()

	dir := t.TempDir()
	files := map[string]string{
		"b.txt":      longText,
		"a.txt":      longText + " from the first file in name order.",
		"notes.docx": "ignored format",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	result, err := ing.IngestDirectory(ctx, "ds", dir)
	if err != nil {
		t.Fatal(err)
	}
	if result.ChunksAdded != 2 {
		t.Errorf("ChunksAdded=%d", result.ChunksAdded)
	}
	sources, _ := s.Sources(ctx, "ds")
	if len(sources) != 2 {
		t.Fatalf("sources=%+v", sources)
	}
	// Name order: a.txt is document 0.
	chunks, _ := s.GetChunks(ctx, "ds", []string{"a.txt_0_0", "b.txt_1_0"})
	if len(chunks) != 2 {
		t.Errorf("expected stable doc indices, got %+v", chunks)
	}
}

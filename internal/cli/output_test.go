package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Jumawebhub/qlex/internal/models"
)

func sampleResult() *models.QueryResult {
	return &models.QueryResult{
		Chunks: []*models.ScoredChunk{
			{
				Chunk: &models.Chunk{
					ID:      "reg.pdf_0_0",
					Text:    "Article 5 prohibits the transfer of dual-use goods to listed entities.",
					Source:  "reg.pdf",
					Page:    3,
					PageKey: "page",
				},
				Dense:   0.82,
				Lexical: 0.41,
				Fused:   0.697,
			},
		},
	}
}

func TestWriteQueryResult_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteQueryResult(&buf, sampleResult(), OutputText); err != nil {
		t.Fatalf("WriteQueryResult failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"[reg.pdf, page 3]", "0.6970", "Article 5"} {
		if !strings.Contains(out, want) {
			t.Errorf("text output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteQueryResult_TextDegraded(t *testing.T) {
	result := sampleResult()
	result.Degraded = true

	var buf bytes.Buffer
	if err := WriteQueryResult(&buf, result, OutputText); err != nil {
		t.Fatalf("WriteQueryResult failed: %v", err)
	}
	if !strings.Contains(buf.String(), "reranker unavailable") {
		t.Errorf("degraded marker missing:\n%s", buf.String())
	}
}

func TestWriteQueryResult_TextReranked(t *testing.T) {
	result := sampleResult()
	result.Chunks[0].Reranked = 0.91

	var buf bytes.Buffer
	if err := WriteQueryResult(&buf, result, OutputText); err != nil {
		t.Fatalf("WriteQueryResult failed: %v", err)
	}
	if !strings.Contains(buf.String(), "0.9100 reranked") {
		t.Errorf("reranked score missing:\n%s", buf.String())
	}
}

func TestWriteQueryResult_NoDocuments(t *testing.T) {
	var buf bytes.Buffer
	err := WriteQueryResult(&buf, &models.QueryResult{NoDocuments: true}, OutputText)
	if err != nil {
		t.Fatalf("WriteQueryResult failed: %v", err)
	}
	if !strings.Contains(buf.String(), models.NoDocumentsMessage) {
		t.Errorf("sentinel missing:\n%s", buf.String())
	}
}

func TestWriteQueryResult_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteQueryResult(&buf, sampleResult(), OutputJSON); err != nil {
		t.Fatalf("WriteQueryResult failed: %v", err)
	}
	var resp models.QueryResponse
	if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON output: %v", err)
	}
	if len(resp.Documents) != 1 || len(resp.Documents[0]) != 1 {
		t.Fatalf("expected batch-of-one shape, got %+v", resp)
	}
	if resp.Metadatas[0][0]["source"] != "reg.pdf" {
		t.Errorf("unexpected metadata %+v", resp.Metadatas[0][0])
	}
}

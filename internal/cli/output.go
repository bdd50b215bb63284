// Package cli renders query results for the command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/Jumawebhub/qlex/internal/models"
	"github.com/Jumawebhub/qlex/pkg/utils"
)

// OutputFormat is the format for query result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is the batch-of-one wire shape for machine consumption.
	OutputJSON OutputFormat = "json"
)

// snippetLength bounds the chunk text shown per result in text mode.
const snippetLength = 200

// WriteQueryResult writes a retrieval result to w in the given format.
func WriteQueryResult(w io.Writer, result *models.QueryResult, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result.ToResponse())
	default:
		writeQueryResultText(w, result)
		return nil
	}
}

func writeQueryResultText(w io.Writer, result *models.QueryResult) {
	if result.NoDocuments {
		fmt.Fprintln(w, models.NoDocumentsMessage)
		return
	}
	if len(result.Chunks) == 0 {
		fmt.Fprintln(w, "No relevant chunks found.")
		return
	}
	if result.Degraded {
		fmt.Fprintln(w, "# reranker unavailable; showing fused order")
	}
	for i, sc := range result.Chunks {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "%d. [%s, %s %d]\n", i+1, sc.Chunk.Source, sc.Chunk.PageKey, sc.Chunk.Page)
		if sc.Reranked != 0 {
			fmt.Fprintf(w, "Score: %.4f reranked (fused %.4f, dense %.4f, lexical %.4f)\n",
				sc.Reranked, sc.Fused, sc.Dense, sc.Lexical)
		} else {
			fmt.Fprintf(w, "Score: %.4f (dense %.4f, lexical %.4f)\n", sc.Fused, sc.Dense, sc.Lexical)
		}
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(sc.Chunk.Text, snippetLength))
	}
}

package retrieval

import (
	"fmt"
	"strings"

	"github.com/Jumawebhub/qlex/internal/models"
	"github.com/Jumawebhub/qlex/pkg/utils"
)

// contextSeparator joins ranked chunks into the prompt context block.
const contextSeparator = "\n\n---\n\n"

// NoRelevantDocumentsMessage marks a query that retrieved nothing useful
// from a non-empty dataset. It is distinct from the empty-dataset sentinel.
const NoRelevantDocumentsMessage = "No relevant documents were found for this question in the selected dataset."

// FormatContext renders the ranked chunks into the context string handed to
// the LLM, each chunk prefixed with its provenance. Zero chunks produce an
// explicit marker rather than an empty string, so the prompt layer never
// fabricates grounding.
func FormatContext(result *models.QueryResult) string {
	if result.NoDocuments {
		return models.NoDocumentsMessage
	}
	if len(result.Chunks) == 0 {
		return NoRelevantDocumentsMessage
	}
	parts := make([]string, len(result.Chunks))
	for i, sc := range result.Chunks {
		parts[i] = fmt.Sprintf("[%s, %s %d]\n%s",
			sc.Chunk.Source, sc.Chunk.PageKey, sc.Chunk.Page, sc.Chunk.Text)
	}
	return strings.Join(parts, contextSeparator)
}

// Citations builds the citation records for the ranked chunks, preserving
// ranking order. Previews are truncated with an ellipsis.
func Citations(result *models.QueryResult) []*models.Citation {
	if result.NoDocuments || len(result.Chunks) == 0 {
		return nil
	}
	out := make([]*models.Citation, len(result.Chunks))
	for i, sc := range result.Chunks {
		out[i] = &models.Citation{
			Source:  sc.Chunk.Source,
			Page:    sc.Chunk.Page,
			PageKey: sc.Chunk.PageKey,
			Snippet: utils.Truncate(sc.Chunk.Text, models.PreviewLength),
		}
	}
	return out
}

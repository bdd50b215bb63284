// Package extract provides sectioned text extraction from legal documents.
// A document yields ordered sections, each tied to its position in the
// original file: PDF pages (1-based) or plain-text parts (0-based).
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Section is one positional unit of a document. For PDFs, Position is the
// page number starting at 1 and PositionKey is "page"; for plain text,
// Position is the blank-line-delimited part index starting at 0 and
// PositionKey is "part".
type Section struct {
	Text        string
	Position    int
	PositionKey string
}

// Extractor extracts sections from document files.
type Extractor struct{}

// NewExtractor returns a new Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads the file at path and returns its sections. A readable file
// yielding no sections (blank PDF, empty text file) returns an empty slice,
// not an error.
func (e *Extractor) Extract(path string) ([]Section, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(path))
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts sections from content based on the given extension.
// ext includes the leading dot (e.g. ".pdf"). Unknown extensions are treated
// as plain text.
func (e *Extractor) ExtractBytes(content []byte, ext string) ([]Section, error) {
	switch ext {
	case ".pdf":
		return extractPDF(content)
	default:
		return extractPlain(content), nil
	}
}

// Supported reports whether the extension is an explicitly supported
// ingestion format.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".pdf", ".txt":
		return true
	}
	return false
}

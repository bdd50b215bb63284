package extract

import (
	"regexp"
	"strings"
)

var blankLines = regexp.MustCompile(`\n\s*\n`)

// extractPlain splits text on blank lines into parts. Part indices are
// 0-based and count only non-empty parts.
func extractPlain(content []byte) []Section {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	parts := blankLines.Split(text, -1)
	sections := make([]Section, 0, len(parts))
	idx := 0
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		sections = append(sections, Section{Text: p, Position: idx, PositionKey: "part"})
		idx++
	}
	return sections
}

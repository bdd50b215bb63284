// Package lexical scores chunks against a query by keyword overlap. Scores
// are deterministic functions of the query and the candidate set, bounded to
// [0, 1], so fused rankings are reproducible across runs.
package lexical

import (
	"strings"
	"unicode"
)

// stopwords are high-frequency English terms carrying no retrieval signal.
// The list is intentionally short: legal queries lean on terms like
// "article", "shall", and "pursuant" that generic stopword lists remove.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "can": {}, "do": {}, "does": {}, "for": {},
	"from": {}, "how": {}, "in": {}, "is": {}, "it": {}, "of": {},
	"on": {}, "or": {}, "the": {}, "to": {}, "was": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "who": {}, "with": {},
}

// Tokenize lowercases s, splits on non-alphanumeric runes, and drops
// stopwords and single-character tokens. Hyphenated compounds split into
// their parts, so "dual-use" matches both "dual" and "use".
func Tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, ok := stopwords[f]; ok {
			continue
		}
		out = append(out, f)
	}
	return out
}

// UniqueTerms returns the distinct tokens of s in first-seen order.
func UniqueTerms(s string) []string {
	tokens := Tokenize(s)
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}
	return out
}

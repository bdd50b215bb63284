// Package dataset manages dataset metadata and naming rules.
package dataset

import (
	"fmt"
	"regexp"
	"time"
)

const (
	minNameLength = 3
	maxNameLength = 60
)

var (
	invalidChars  = regexp.MustCompile(`[^a-zA-Z0-9\-_]`)
	leadingJunk   = regexp.MustCompile(`^[^a-zA-Z0-9]+`)
	trailingJunk  = regexp.MustCompile(`[^a-zA-Z0-9]+$`)
	validNameExpr = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9\-_]{1,58}[a-zA-Z0-9]$`)
)

// SanitizeName rewrites an arbitrary display name into a valid dataset name:
// disallowed characters become underscores, the result must start and end
// with an alphanumeric character, and length is clamped to 3-60. Names that
// cannot be salvaged fall back to a timestamped placeholder so creation
// never fails on naming alone.
func SanitizeName(name string) string {
	s := invalidChars.ReplaceAllString(name, "_")
	s = leadingJunk.ReplaceAllString(s, "")
	s = trailingJunk.ReplaceAllString(s, "")
	if len(s) > maxNameLength {
		s = s[:maxNameLength]
		s = trailingJunk.ReplaceAllString(s, "")
	}
	if len(s) < minNameLength {
		return fmt.Sprintf("dataset-%d", time.Now().Unix())
	}
	return s
}

// ValidName reports whether name already satisfies the dataset naming rules.
func ValidName(name string) bool {
	return validNameExpr.MatchString(name)
}

package utils

import "math"

// Truncate returns s truncated to maxLen bytes, with "..." appended if
// truncated. If maxLen is 0 or negative, returns s unchanged. Used for
// citation snippets.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// NormalizeL2 normalizes the vector in place to unit L2 norm so that inner
// product equals cosine similarity. A zero vector is left unchanged.
func NormalizeL2(x []float32) {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := float32(1.0 / math.Sqrt(sum))
	for i := range x {
		x[i] *= norm
	}
}

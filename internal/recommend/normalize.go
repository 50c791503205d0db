package recommend

import "strings"

// Normalize turns a display search term into its canonical cache key.
// It trims surrounding whitespace and lower-cases, nothing else.
func Normalize(display string) string {
	return strings.ToLower(strings.TrimSpace(display))
}

// isBlank reports whether the term has no searchable content.
func isBlank(display string) bool {
	return strings.TrimSpace(display) == ""
}

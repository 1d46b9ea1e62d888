// Package strings provides string slice helpers.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
//	DedupeAndTrim([]string{"  deed.pdf ", "id.pdf", "deed.pdf", ""})
//	// []string{"deed.pdf", "id.pdf"}
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}

	return result
}

// AppendUnique appends added to existing, dropping blanks and values already present.
func AppendUnique(existing []string, added ...string) []string {
	out := make([]string, 0, len(existing)+len(added))
	out = append(out, existing...)
	return DedupeAndTrim(append(out, added...))
}

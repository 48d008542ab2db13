package metrics

import "strings"

// norm keeps label values predictable regardless of caller casing.
func norm(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "unknown"
	}
	return s
}

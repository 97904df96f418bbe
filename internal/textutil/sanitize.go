package textutil

import "strings"

// SanitizeToken lowercases value and replaces everything outside
// [a-z0-9._-] with underscores so it is safe as a metric label. Empty
// results become "unknown".
func SanitizeToken(value string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '_'
	}, strings.TrimSpace(value))
	if out = strings.Trim(out, "_-."); out == "" {
		return "unknown"
	}
	return out
}

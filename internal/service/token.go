package service

import "strings"

// NormalizeToken reduces a user-supplied model or class name to a token
// safe for storage keys and scratch paths: letters, digits, hyphens and
// underscores survive, spaces become underscores, everything else is
// dropped. Database rows keep the original name.
func NormalizeToken(s string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	return b.String()
}

package textutil

import "strings"

const unknownToken = "unknown"

// SanitizeToken lowercases value into a token safe inside artifact names.
// ASCII letters, digits, '-' and '_' survive; each run of anything else
// becomes a single '_'. Blank or fully stripped input yields "unknown".
func SanitizeToken(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	pending := false
	for _, r := range strings.ToLower(strings.TrimSpace(value)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	if out := strings.Trim(b.String(), "_-"); out != "" {
		return out
	}
	return unknownToken
}

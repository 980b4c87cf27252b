package customization

import "strings"

// Sanitize strips every character rejected by Allowed and trims surrounding
// whitespace. Sanitize(Sanitize(x)) == Sanitize(x) for any x.
func Sanitize(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		if Allowed(r) {
			return r
		}
		return -1
	}, text)
	return strings.TrimSpace(cleaned)
}

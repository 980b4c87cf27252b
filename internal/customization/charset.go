// Package customization validates, sanitises and converts the text customization
// shoppers attach to a product before purchase.
package customization

import "unicode"

// Allowed reports whether r may appear in customization text: Unicode word
// characters (letters, marks, decimal digits, connector punctuation), Unicode
// whitespace, and the punctuation . , ! ? -
func Allowed(r rune) bool {
	switch r {
	case '.', ',', '!', '?', '-':
		return true
	}
	return unicode.IsLetter(r) ||
		unicode.IsMark(r) ||
		unicode.IsDigit(r) ||
		unicode.Is(unicode.Pc, r) ||
		unicode.IsSpace(r)
}

func containsDisallowed(text string) bool {
	for _, r := range text {
		if !Allowed(r) {
			return true
		}
	}
	return false
}

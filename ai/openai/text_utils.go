package openai

import (
	"strings"
	"unicode"
)

// scrubString drops control characters and collapses runs of whitespace.
// Punctuation is kept since it is part of names such as "I.B.M.".
func scrubString(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && !unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// isLetter returns true if the rune is an ASCII letter.
func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

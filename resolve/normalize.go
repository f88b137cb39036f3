package resolve

import (
	"strings"
	"unicode"
)

// Normalize lowercases name, drops punctuation and collapses whitespace.
// "I.B.M." and "IBM" both normalize to "ibm".
func Normalize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	space := false
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-', r == '_', r == '/':
			space = true
		}
	}
	return b.String()
}

package types

import (
	"strings"
	"unicode"
)

// NormalizeName lowercases a display name and strips everything that is not
// a letter or digit. Supertag and field lookups resolve against this form
// when an exact match fails.
func NormalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

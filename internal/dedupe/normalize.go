// Package dedupe finds near-duplicate item records in a batch using
// normalized string similarity across title, author, publisher, and year.
package dedupe

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents decomposes to NFD and removes combining marks, so
// "Philosophé" compares equal to "Philosophé"'s plain form.
var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// normalize canonicalizes a string for comparison: case-fold, accent
// strip, punctuation strip, whitespace collapse.
func normalize(s string) string {
	folded := strings.ToLower(strings.TrimSpace(s))

	stripped, _, err := transform.String(stripAccents, folded)
	if err != nil {
		// Transform failures on malformed UTF-8 fall back to the folded
		// input rather than dropping the record from comparison.
		stripped = folded
	}

	var b strings.Builder
	b.Grow(len(stripped))
	lastSpace := false
	for _, r := range stripped {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		default:
			// punctuation and symbols drop out entirely
		}
	}
	return strings.TrimSpace(b.String())
}

// Package normalizer canonicalizes free-text patient names so that the
// same person written with different casing, accents or spacing compares
// equal.
package normalizer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// invisible matches combining marks and format characters (zero-width
// spaces, joiners, directional marks).
var invisible = runes.Predicate(func(r rune) bool {
	return unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Cf, r)
})

// Normalize returns the comparison key for a name.
//
// The key is trimmed, lowercased, stripped of diacritics and invisible
// format characters, and every whitespace run (including non-breaking
// spaces) is collapsed to a single ASCII space. Empty input yields "".
// Normalize is pure and idempotent.
func Normalize(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return ""
	}

	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(invisible)), text)
	if err != nil {
		// transform only fails on malformed chains; keep the lowered text
		stripped = text
	}

	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

// Equal reports whether two names share the same normalized key.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// TitleCase renders a normalized key for display, capitalizing the first
// letter of every word.
func TitleCase(key string) string {
	words := strings.Fields(key)
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToTitle(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

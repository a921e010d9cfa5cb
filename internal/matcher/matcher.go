// Package matcher decides whether two normalized names refer to the same
// person.
package matcher

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultThreshold tolerates minor typos and abbreviations while rejecting
// unrelated names.
const DefaultThreshold = 0.72

// Matcher compares normalized names by containment first and by sequence
// similarity second.
type Matcher struct {
	Threshold float64
}

// New returns a Matcher with the given threshold. A non-positive threshold
// falls back to DefaultThreshold.
func New(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Matcher{Threshold: threshold}
}

// Matches reports whether candidate satisfies query. Both arguments are
// expected to be normalized already.
//
// An empty query always matches: callers that need "no filter means no
// result" must check for an empty query themselves.
func (m *Matcher) Matches(candidate, query string) bool {
	if query == "" || strings.Contains(candidate, query) {
		return true
	}
	return Ratio(candidate, query) >= m.threshold()
}

func (m *Matcher) threshold() float64 {
	if m == nil || m.Threshold <= 0 {
		return DefaultThreshold
	}
	return m.Threshold
}

// Ratio returns the similarity of a and b in [0, 1], computed as
// 2*M/T where M is the number of runes in the matching blocks found by
// recursively taking the longest common substring, and T is the total
// rune count of both strings. Two empty strings are identical (1.0).
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(runes(a), runes(b)).Ratio()
}

// runes splits s into one element per rune so multi-byte letters count
// once.
func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

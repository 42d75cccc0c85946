package search

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// similarity is 1 - editDistance/maxLen measured in runes: 1 for equal
// strings, 0 when nothing lines up.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	maxLen := max(la, lb)
	if maxLen == 0 {
		return 1
	}
	d := levenshtein.ComputeDistance(a, b)
	return 1 - float64(d)/float64(maxLen)
}

// prefixSimilarity compares a against the first len(a) runes of b, so a
// partly typed word can be matched against a complete term.
func prefixSimilarity(a, b string) float64 {
	n := utf8.RuneCountInString(a)
	if utf8.RuneCountInString(b) <= n {
		return similarity(a, b)
	}
	i := 0
	for k := 0; k < n; k++ {
		_, size := utf8.DecodeRuneInString(b[i:])
		i += size
	}
	return similarity(a, b[:i])
}

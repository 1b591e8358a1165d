// Package features computes the string similarity features of (cell text,
// entity) pairs that candidate ranking consumes.
package features

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	// JaroWinklerBoost is the Jaro similarity above which the common prefix
	// bonus applies.
	JaroWinklerBoost = 0.7
	// JaroWinklerPrefix is the longest prefix the bonus counts.
	JaroWinklerPrefix = 4
)

// Similarity scores two strings in [0, 1].
type Similarity func(a, b string) float64

// Normalize applies NFKC compatibility normalization and case folding, and
// trims surrounding space.
func Normalize(s string) string {
	return strings.TrimSpace(cases.Fold().String(norm.NFKC.String(s)))
}

// Tokens splits a normalized string on every rune that is neither a letter
// nor a number.
func Tokens(s string) []string {
	return strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Levenshtein is one minus the unit-cost edit distance divided by the length
// of the longer string. Both are counted in runes.
func Levenshtein(a, b string) float64 {
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if longest == 0 {
		return 1
	}
	return 1 - float64(edlib.LevenshteinDistance(a, b))/float64(longest)
}

// JaroWinkler is the Jaro similarity of the runes of a and b, raised by 0.1
// per common prefix rune, up to JaroWinklerPrefix, once it passes
// JaroWinklerBoost.
func JaroWinkler(a, b string) float64 {
	if a == b {
		return 1
	}
	jaro := float64(edlib.JaroSimilarity(a, b))
	if jaro <= JaroWinklerBoost {
		return jaro
	}

	prefix := 0
	ra, rb := []rune(a), []rune(b)
	for prefix < min(len(ra), len(rb), JaroWinklerPrefix) && ra[prefix] == rb[prefix] {
		prefix++
	}
	return jaro + 0.1*float64(prefix)*(1-jaro)
}

// MongeElkan averages, over the tokens of a, the best similarity with any
// token of b.
func MongeElkan(a, b []string, sim Similarity) float64 {
	if len(a) == 0 || len(b) == 0 {
		if len(a) == 0 && len(b) == 0 {
			return 1
		}
		return 0
	}

	var total float64
	for _, x := range a {
		var best float64
		for _, y := range b {
			best = max(best, sim(x, y))
		}
		total += best
	}
	return total / float64(len(a))
}

// SymmetricMongeElkan is the mean of MongeElkan in both directions.
func SymmetricMongeElkan(a, b []string, sim Similarity) float64 {
	return (MongeElkan(a, b, sim) + MongeElkan(b, a, sim)) / 2
}

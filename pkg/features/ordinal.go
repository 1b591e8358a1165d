package features

import (
	"slices"
	"unicode"
)

const (
	// OrdinalPenalty caps the score of a text without digits.
	OrdinalPenalty = 0.4
	// OrdinalConfidence is the base score from which equal digits are
	// trusted fully.
	OrdinalConfidence = 0.5
)

// Digits returns the maximal runs of decimal digits of s, in order.
func Digits(s string) []string {
	var result []string
	start := -1
	for i, r := range s {
		switch {
		case unicode.IsDigit(r) && start < 0:
			start = i
		case !unicode.IsDigit(r) && start >= 0:
			result = append(result, s[start:i])
			start = -1
		}
	}
	if start >= 0 {
		result = append(result, s[start:])
	}
	return result
}

// OrdinalGuard adjusts a base similarity of text and label by their
// embedded numbers, so that "Su-30" and "Su-25" do not match however close
// the letters are. A text without digits is capped at OrdinalPenalty. A text
// whose digit runs differ from the label's scores zero. Equal digit runs
// score one when the base similarity reaches OrdinalConfidence.
func OrdinalGuard(base float64, text, label string) float64 {
	textDigits := Digits(text)
	if len(textDigits) == 0 {
		return min(base, OrdinalPenalty)
	}
	if !slices.Equal(textDigits, Digits(label)) {
		return 0
	}
	if base >= OrdinalConfidence {
		return 1
	}
	return base
}

package features

import (
	"slices"
)

// HybridJaccard is a Jaccard similarity over soft token matches: tokens of
// the smaller set are matched one-to-one into the larger set by maximum total
// similarity, and the matched similarities are summed over the size of the
// larger set.
type HybridJaccard struct {
	// Base scores two tokens.
	Base Similarity
	// Threshold clamps token similarities below it to zero.
	Threshold float64
	// LowerBound, when positive, makes Score return zero as soon as the best
	// possible score is below it, skipping the assignment.
	LowerBound float64
}

// Score returns the similarity of two token sets. Duplicate tokens count
// once.
func (h HybridJaccard) Score(a, b []string) float64 {
	s1, s2 := distinctTokens(a), distinctTokens(b)
	if len(s1) == 0 || len(s2) == 0 {
		if len(s1) == 0 && len(s2) == 0 {
			return 1
		}
		return 0
	}
	if len(s1) > len(s2) {
		s1, s2 = s2, s1
	}

	sim := make([][]float64, len(s1))
	var bound float64
	for i, x := range s1 {
		sim[i] = make([]float64, len(s2))
		var best float64
		for j, y := range s2 {
			s := h.Base(x, y)
			if s < h.Threshold {
				s = 0
			}
			sim[i][j] = s
			best = max(best, s)
		}
		bound += best
	}

	denominator := float64(len(s2))
	if h.LowerBound > 0 && bound/denominator < h.LowerBound {
		return 0
	}

	cost := make([][]float64, len(s1))
	for i := range sim {
		cost[i] = make([]float64, len(s2))
		for j, s := range sim[i] {
			cost[i][j] = 1 - s
		}
	}

	var total float64
	for i, j := range Assign(cost) {
		total += sim[i][j]
	}
	return total / denominator
}

func distinctTokens(tokens []string) []string {
	result := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !slices.Contains(result, t) {
			result = append(result, t)
		}
	}
	return result
}

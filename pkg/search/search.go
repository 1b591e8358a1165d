// Package search defines the batched lexical search backend used to propose
// candidate entities for cell text.
package search

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
)

// Match is one scored candidate identifier for a query.
type Match struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Searcher answers a batch of queries. Implementations must be total: every
// input query is a key of the result, possibly with an empty list.
type Searcher interface {
	BatchQuery(ctx context.Context, queries []string) (map[string][]Match, error)
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc func(ctx context.Context, queries []string) (map[string][]Match, error)

func (f SearcherFunc) BatchQuery(ctx context.Context, queries []string) (map[string][]Match, error) {
	return f(ctx, queries)
}

var ErrIncomplete = errors.New("search result is missing queries")

// CheckTotal returns ErrIncomplete if result lacks any of queries.
func CheckTotal(queries []string, result map[string][]Match) error {
	for _, q := range queries {
		if _, ok := result[q]; !ok {
			return fmt.Errorf("%w: %q", ErrIncomplete, q)
		}
	}
	return nil
}

// Sort orders matches by descending score, then ascending id.
func Sort(matches []Match) {
	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// Sorted returns a sorted copy of matches.
func Sorted(matches []Match) []Match {
	result := slices.Clone(matches)
	if result == nil {
		result = []Match{}
	}
	Sort(result)
	return result
}

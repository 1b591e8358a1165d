// Package evaluate measures how well candidate sets cover the gold links of
// the cells they were generated for.
package evaluate

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/willbeason/table-linking/pkg/candidates"
	"github.com/willbeason/table-linking/pkg/ned"
	"gonum.org/v1/gonum/floats"
)

const (
	// NoEntity is the gold entity of an unannotated cell.
	NoEntity = "NO_ENTITY"
	// NILEntity is the gold entity of a cell annotated as NIL.
	NILEntity = "NIL_ENTITY"
)

// DefaultTopK are the cutoffs recall is reported at.
var DefaultTopK = []int{1, 5, 20, 100, 1000}

var ErrEntityColumns = errors.New("entity columns do not match examples")

type Options struct {
	// IgnoreNIL skips cells annotated as NIL.
	IgnoreNIL bool
	// IgnoreUnlinked skips cells without an annotation.
	IgnoreUnlinked bool
	// TopK are the recall cutoffs. Empty means DefaultTopK.
	TopK []int
}

// DefaultOptions evaluate linked, non-NIL cells only.
func DefaultOptions() Options {
	return Options{IgnoreNIL: true, IgnoreUnlinked: true, TopK: DefaultTopK}
}

// Report summarizes the ranks of the gold entities among the candidates of
// every evaluated cell. The Unique fields count each distinct pairing of
// cell text and gold entities once.
type Report struct {
	Total  int             `json:"total"`
	MRR    float64         `json:"mrr"`
	Recall map[int]float64 `json:"recall"`

	UniqueTotal  int             `json:"unique_total"`
	UniqueMRR    float64         `json:"unique_mrr"`
	UniqueRecall map[int]float64 `json:"unique_recall"`
}

// Cell is one evaluated cell: its text, gold entities, and candidate ids in
// descending score order.
type Cell struct {
	Query      string
	Gold       []string
	Candidates []string
}

// Rank is the 1-based position of the first gold entity among the
// candidates, or 0 if none is present.
func (c Cell) Rank() int {
	for i, id := range c.Candidates {
		if slices.Contains(c.Gold, id) {
			return i + 1
		}
	}
	return 0
}

// Cells lists the evaluated cells of every example. entityColumns[i], if
// set, adds columns to those the example declares.
func Cells(examples []*ned.Example, entityColumns [][]int, d *candidates.Dataset, opts Options) ([]Cell, error) {
	if entityColumns != nil && len(entityColumns) != len(examples) {
		return nil, fmt.Errorf("%w: %d column lists for %d examples", ErrEntityColumns, len(entityColumns), len(examples))
	}

	var result []Cell
	for i, example := range examples {
		columns := slices.Clone(example.EntityColumns)
		if entityColumns != nil {
			columns = append(columns, entityColumns[i]...)
		}
		slices.Sort(columns)
		columns = slices.Compact(columns)

		for _, column := range columns {
			c, ok := example.Table.Column(column)
			if !ok {
				return nil, fmt.Errorf("%w: table %q has no column %d", ErrEntityColumns, example.Table.ID, column)
			}

			for row, text := range c.Values {
				link := example.Link(column, row)

				var gold []string
				switch {
				case link == nil:
					if opts.IgnoreUnlinked {
						continue
					}
					gold = []string{NoEntity}
				case link.IsNIL():
					if opts.IgnoreNIL {
						continue
					}
					gold = []string{NILEntity}
				default:
					gold = slices.Clone(link.Entities)
				}

				result = append(result, Cell{
					Query:      text,
					Gold:       gold,
					Candidates: ranked(d, example.Table.ID, column, row),
				})
			}
		}
	}
	return result, nil
}

// ranked returns the candidate ids of a cell by descending score, ties in
// stored order.
func ranked(d *candidates.Dataset, tableID string, column, row int) []string {
	cell, ok := d.Cell(tableID, column, row)
	if !ok {
		return nil
	}
	order := make([]int, cell.Len())
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(cell.Score[b], cell.Score[a])
	})

	result := make([]string, len(order))
	for i, j := range order {
		result[i] = cell.ID[j]
	}
	return result
}

// Evaluate reports MRR and recall at every cutoff over the evaluated cells.
func Evaluate(examples []*ned.Example, entityColumns [][]int, d *candidates.Dataset, opts Options) (*Report, error) {
	cells, err := Cells(examples, entityColumns, d, opts)
	if err != nil {
		return nil, err
	}
	topK := opts.TopK
	if len(topK) == 0 {
		topK = DefaultTopK
	}

	report := &Report{Total: len(cells)}
	report.MRR, report.Recall = score(cells, topK)

	unique := Unique(cells)
	report.UniqueTotal = len(unique)
	report.UniqueMRR, report.UniqueRecall = score(unique, topK)
	return report, nil
}

// Unique keeps the first cell of every distinct (query, gold set) pair.
func Unique(cells []Cell) []Cell {
	var result []Cell
	seen := make(map[string]bool)
	for _, c := range cells {
		gold := slices.Clone(c.Gold)
		slices.Sort(gold)
		key := c.Query + "\x00" + strings.Join(gold, "\x00")
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, c)
	}
	return result
}

func score(cells []Cell, topK []int) (float64, map[int]float64) {
	recall := make(map[int]float64, len(topK))
	for _, k := range topK {
		recall[k] = 0
	}
	if len(cells) == 0 {
		return 0, recall
	}

	reciprocal := make([]float64, len(cells))
	hits := make(map[int]int, len(topK))
	for i, c := range cells {
		rank := c.Rank()
		if rank == 0 {
			continue
		}
		reciprocal[i] = 1 / float64(rank)
		for _, k := range topK {
			if rank <= k {
				hits[k]++
			}
		}
	}

	n := float64(len(cells))
	for k, h := range hits {
		recall[k] = float64(h) / n
	}
	return floats.Sum(reciprocal) / n, recall
}

// Cutoffs returns the recall cutoffs of a report in increasing order.
func (r *Report) Cutoffs() []int {
	return slices.Sorted(maps.Keys(r.Recall))
}

package candidates

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/willbeason/table-linking/pkg/cellindex"
	"github.com/willbeason/table-linking/pkg/kb"
)

// GoldLookup returns the gold entities of a cell. An empty result means the
// cell is NIL or not annotated.
type GoldLookup func(tableID string, column, row int) []kb.Entity

// Injected marks a TopK position holding an injected gold entity.
const Injected = -1

var ErrNegativeK = errors.New("number of candidates to keep must not be negative")

// TopK keeps the k highest scoring candidates of every cell, ties kept in
// stored order. It returns the new dataset and, for every new position, the
// position in d it came from.
//
// When gold is set and none of a cell's kept candidates is a gold entity, the
// gold entities replace the last kept candidates (or all of them, if fewer
// were kept than there are gold entities) with score 0 and Oracle provenance.
// Their remapped position is Injected. When removeNIL is also set, cells
// without gold entities keep no candidates.
func (d *Dataset) TopK(k int, gold GoldLookup, removeNIL bool) (*Dataset, []int, error) {
	if k < 0 {
		return nil, nil, fmt.Errorf("%w: got %d", ErrNegativeK, k)
	}

	var columns Columns
	var remap []int
	b := cellindex.NewBuilder()

	for _, t := range d.Index.Tables {
		err := b.StartTable(t.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("selecting top %d candidates: %w", k, err)
		}
		for _, c := range t.Columns {
			err = b.StartColumn(c.Column)
			if err != nil {
				return nil, nil, fmt.Errorf("selecting top %d candidates: %w", k, err)
			}

			for row, r := range c.Rows {
				kept := d.topPositions(r, k)
				cell := make([]Candidate, len(kept))
				for i, pos := range kept {
					cell[i] = d.Candidate(pos)
				}

				if gold != nil {
					entities := gold(t.ID, c.Column, row)
					switch {
					case len(entities) == 0 && removeNIL:
						cell, kept = nil, nil
					case len(entities) > 0 && !containsAny(cell, entities):
						cell, kept = injectGold(cell, kept, entities)
					}
				}

				for i, cand := range cell {
					columns.Append(cand)
					remap = append(remap, kept[i])
				}
				_, err = b.AddCell(len(cell))
				if err != nil {
					return nil, nil, fmt.Errorf("selecting top %d candidates: %w", k, err)
				}
			}
		}
	}

	return &Dataset{Columns: columns, Index: b.Build()}, remap, nil
}

// topPositions returns the positions of the k best scores within r.
func (d *Dataset) topPositions(r cellindex.Range, k int) []int {
	positions := make([]int, 0, r.Len())
	for i := r.Start; i < r.End; i++ {
		positions = append(positions, i)
	}
	slices.SortStableFunc(positions, func(a, b int) int {
		return cmp.Compare(d.Score[b], d.Score[a])
	})
	if len(positions) > k {
		positions = positions[:k]
	}
	return positions
}

func containsAny(cell []Candidate, entities []kb.Entity) bool {
	for _, c := range cell {
		for _, e := range entities {
			if c.ID == e.ID {
				return true
			}
		}
	}
	return false
}

func injectGold(cell []Candidate, kept []int, entities []kb.Entity) ([]Candidate, []int) {
	n := len(entities)
	if len(cell) < n {
		cell = make([]Candidate, n)
		kept = make([]int, n)
	}

	offset := len(cell) - n
	for i, e := range entities {
		cell[offset+i] = Candidate{Entity: e, Score: 0, Provenance: Oracle}
		kept[offset+i] = Injected
	}
	return cell, kept
}

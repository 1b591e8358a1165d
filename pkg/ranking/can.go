package ranking

import (
	"fmt"

	"github.com/willbeason/table-linking/pkg/candidates"
	"github.com/willbeason/table-linking/pkg/ned"
)

// CanDataset is the candidate side of a ranking dataset: one row per stored
// candidate, in the order of the candidate dataset it was built from.
type CanDataset struct {
	cellColumns
	// ID is the candidate entity id.
	ID        []string
	IsCorrect []bool
}

func (c *CanDataset) Len() int {
	return len(c.ID)
}

// Validate checks that every array has the same length.
func (c *CanDataset) Validate() error {
	lengths := c.lengths()
	lengths["is_correct"] = len(c.IsCorrect)
	return checkLengths(c.Len(), lengths)
}

// Ref returns the cell coordinates of row i.
func (c *CanDataset) Ref(i int) CellRef {
	return c.ref(i)
}

// Slice returns rows [start, end) of every array. The arrays are shared with c.
func (c *CanDataset) Slice(start, end int) (*CanDataset, error) {
	if start < 0 || end < start || end > c.Len() {
		return nil, fmt.Errorf("%w: [%d, %d) of %d rows", ErrOutOfRange, start, end, c.Len())
	}
	return &CanDataset{
		cellColumns: c.slice(start, end),
		ID:          c.ID[start:end:end],
		IsCorrect:   c.IsCorrect[start:end:end],
	}, nil
}

// BuildCan emits the stored candidates of every cell of d, marking those
// among the cell's gold entities. Unannotated and NIL cells have no correct
// candidate.
//
// The output cursor is checked against every table, column and cell start
// recorded in d.Index, and any drift is a *ConsistencyError.
func BuildCan(examples []*ned.Example, d *candidates.Dataset) (*CanDataset, error) {
	result := &CanDataset{}
	cursor := 0

	err := walk(examples, d, checked(&cursor, func(v cellVisit) error {
		link := v.example.Link(v.column.Column, v.row)
		for i := v.r.Start; i < v.r.End; i++ {
			result.append(v.ref)
			result.ID = append(result.ID, d.ID[i])
			result.IsCorrect = append(result.IsCorrect, link != nil && link.Has(d.ID[i]))
			cursor++
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("building candidate ranking rows: %w", err)
	}

	if cursor != d.Len() {
		return nil, fmt.Errorf("building candidate ranking rows: %w",
			&ConsistencyError{Column: -1, Row: -1, Cursor: cursor, Start: d.Len()})
	}
	return result, nil
}

// Package ranking lays out the gold and candidate sides of a candidate
// ranking dataset. Both sides are positionally aligned with the candidate
// dataset they are built from.
package ranking

import (
	"errors"
	"fmt"

	"github.com/willbeason/table-linking/pkg/candidates"
	"github.com/willbeason/table-linking/pkg/cellindex"
	"github.com/willbeason/table-linking/pkg/ned"
)

var (
	ErrNoExample  = errors.New("no example for table")
	ErrNoCell     = errors.New("cell is outside its table")
	ErrOutOfRange = errors.New("slice out of range")
)

// ConsistencyError reports that the layout being written drifted from the
// index of the candidate dataset it mirrors. Column and Row are -1 when the
// mismatch is at table or column level.
type ConsistencyError struct {
	TableID string
	Column  int
	Row     int
	Cursor  int
	Start   int
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("table %q column %d row %d: output cursor %d does not match recorded start %d",
		e.TableID, e.Column, e.Row, e.Cursor, e.Start)
}

// CellRef locates the cell a row belongs to.
type CellRef struct {
	// Text is the cell's value.
	Text string
	// CellID numbers cells in index layout order, starting at zero.
	CellID     int
	TableIndex int
	ColIndex   int
	RowIndex   int
}

// cellVisit is one cell of d with its example and text.
type cellVisit struct {
	table   *cellindex.Table
	column  *cellindex.Column
	row     int
	r       cellindex.Range
	example *ned.Example
	ref     CellRef
}

// walker receives the tables, columns and cells of a walk. Nil callbacks are
// skipped.
type walker struct {
	table  func(t *cellindex.Table) error
	column func(t *cellindex.Table, c *cellindex.Column) error
	cell   func(v cellVisit) error
}

// walk visits every table, column and cell of d in index layout order.
func walk(examples []*ned.Example, d *candidates.Dataset, w walker) error {
	byTable := make(map[string]*ned.Example, len(examples))
	for _, e := range examples {
		byTable[e.Table.ID] = e
	}

	cellID := 0
	for ti := range d.Index.Tables {
		t := &d.Index.Tables[ti]
		example, ok := byTable[t.ID]
		if !ok {
			return fmt.Errorf("%w: %q", ErrNoExample, t.ID)
		}
		if w.table != nil {
			err := w.table(t)
			if err != nil {
				return err
			}
		}

		for ci := range t.Columns {
			c := &t.Columns[ci]
			column, ok := example.Table.Column(c.Column)
			if !ok {
				return fmt.Errorf("%w: table %q has no column %d", ErrNoCell, t.ID, c.Column)
			}
			if w.column != nil {
				err := w.column(t, c)
				if err != nil {
					return err
				}
			}

			for row, r := range c.Rows {
				if row >= len(column.Values) {
					return fmt.Errorf("%w: table %q column %d row %d", ErrNoCell, t.ID, c.Column, row)
				}
				if w.cell != nil {
					err := w.cell(cellVisit{
						table:   t,
						column:  c,
						row:     row,
						r:       r,
						example: example,
						ref: CellRef{
							Text:       column.Values[row],
							CellID:     cellID,
							TableIndex: ti,
							ColIndex:   c.Column,
							RowIndex:   row,
						},
					})
					if err != nil {
						return err
					}
				}
				cellID++
			}
		}
	}
	return nil
}

// checked wraps cell in a walker that reports any drift of *cursor from the
// table, column and cell starts of the index as a *ConsistencyError. cell
// advances the cursor.
func checked(cursor *int, cell func(v cellVisit) error) walker {
	return walker{
		table: func(t *cellindex.Table) error {
			if *cursor != t.Start {
				return &ConsistencyError{TableID: t.ID, Column: -1, Row: -1, Cursor: *cursor, Start: t.Start}
			}
			return nil
		},
		column: func(t *cellindex.Table, c *cellindex.Column) error {
			if *cursor != c.Start {
				return &ConsistencyError{TableID: t.ID, Column: c.Column, Row: -1, Cursor: *cursor, Start: c.Start}
			}
			return nil
		},
		cell: func(v cellVisit) error {
			if *cursor != v.r.Start {
				return &ConsistencyError{TableID: v.table.ID, Column: v.column.Column, Row: v.row, Cursor: *cursor, Start: v.r.Start}
			}
			return cell(v)
		},
	}
}

// cellColumns are the per-row cell coordinates shared by both sides.
type cellColumns struct {
	Cell       []string
	CellID     []int
	TableIndex []int
	ColIndex   []int
	RowIndex   []int
}

func (c *cellColumns) append(ref CellRef) {
	c.Cell = append(c.Cell, ref.Text)
	c.CellID = append(c.CellID, ref.CellID)
	c.TableIndex = append(c.TableIndex, ref.TableIndex)
	c.ColIndex = append(c.ColIndex, ref.ColIndex)
	c.RowIndex = append(c.RowIndex, ref.RowIndex)
}

func (c *cellColumns) ref(i int) CellRef {
	return CellRef{
		Text:       c.Cell[i],
		CellID:     c.CellID[i],
		TableIndex: c.TableIndex[i],
		ColIndex:   c.ColIndex[i],
		RowIndex:   c.RowIndex[i],
	}
}

func (c *cellColumns) slice(start, end int) cellColumns {
	return cellColumns{
		Cell:       c.Cell[start:end:end],
		CellID:     c.CellID[start:end:end],
		TableIndex: c.TableIndex[start:end:end],
		ColIndex:   c.ColIndex[start:end:end],
		RowIndex:   c.RowIndex[start:end:end],
	}
}

func (c *cellColumns) lengths() map[string]int {
	return map[string]int{
		"cell":        len(c.Cell),
		"cell_id":     len(c.CellID),
		"table_index": len(c.TableIndex),
		"col_index":   len(c.ColIndex),
		"row_index":   len(c.RowIndex),
	}
}

func checkLengths(n int, lengths map[string]int) error {
	for name, l := range lengths {
		if l != n {
			return fmt.Errorf("%w: %s has %d elements, want %d", candidates.ErrMisaligned, name, l, n)
		}
	}
	return nil
}

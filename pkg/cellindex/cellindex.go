// Package cellindex maps (table, column, row) coordinates to half-open ranges
// of flat parallel arrays.
//
// Within a table, column ranges are laid out in insertion order and row ranges
// in row order, so a table's candidates occupy one contiguous block. Tables are
// laid out back to back in insertion order.
package cellindex

import (
	"errors"
	"fmt"
	"iter"
)

// Range is the half-open interval [Start, End).
type Range struct {
	Start int
	End   int
}

func (r Range) Len() int {
	return r.End - r.Start
}

func (r Range) shift(offset int) Range {
	return Range{Start: r.Start + offset, End: r.End + offset}
}

// Column holds the range of one column and of each of its rows. Rows[i] is
// the range of row i.
type Column struct {
	Column int
	Range
	Rows []Range
}

// Table holds the range of one table and its indexed columns.
type Table struct {
	ID string
	Range
	Columns []Column

	byColumn map[int]int
}

// Column returns the indexed column with the given column number.
func (t *Table) Column(column int) (*Column, bool) {
	i, ok := t.byColumn[column]
	if !ok {
		return nil, false
	}
	return &t.Columns[i], true
}

// Index is an ordered table -> column -> row range tree.
type Index struct {
	Tables []Table

	byID map[string]int
}

// Cell is one flattened leaf of an Index.
type Cell struct {
	TableID string
	Column  int
	Row     int
	Range
}

var (
	ErrDuplicateTable  = errors.New("duplicate table")
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrUnknownTable    = errors.New("unknown table")
	ErrNotConsecutive  = errors.New("tables are not consecutive")
)

// Len is the total number of array elements the index covers.
func (idx *Index) Len() int {
	if len(idx.Tables) == 0 {
		return 0
	}
	return idx.Tables[len(idx.Tables)-1].End
}

func (idx *Index) Table(id string) (*Table, bool) {
	i, ok := idx.byID[id]
	if !ok {
		return nil, false
	}
	return &idx.Tables[i], true
}

// Cell returns the range of one cell.
func (idx *Index) Cell(tableID string, column, row int) (Range, bool) {
	c, ok := idx.Column(tableID, column)
	if !ok || row < 0 || row >= len(c.Rows) {
		return Range{}, false
	}
	return c.Rows[row], true
}

func (idx *Index) Column(tableID string, column int) (*Column, bool) {
	t, ok := idx.Table(tableID)
	if !ok {
		return nil, false
	}
	return t.Column(column)
}

// Cells iterates every cell in layout order.
func (idx *Index) Cells() iter.Seq[Cell] {
	return func(yield func(Cell) bool) {
		for _, t := range idx.Tables {
			for _, c := range t.Columns {
				for row, r := range c.Rows {
					if !yield(Cell{TableID: t.ID, Column: c.Column, Row: row, Range: r}) {
						return
					}
				}
			}
		}
	}
}

// Positions returns, for every array element, the cell that owns it.
func (idx *Index) Positions() []Cell {
	result := make([]Cell, 0, idx.Len())
	for cell := range idx.Cells() {
		for i := cell.Start; i < cell.End; i++ {
			result = append(result, cell)
		}
	}
	return result
}

// Select returns the sub-index of the given tables re-based to start at zero,
// and the range of the original arrays it covers. The tables must be
// consecutive in the index and given in index order.
func (idx *Index) Select(tableIDs ...string) (*Index, Range, error) {
	if len(tableIDs) == 0 {
		return &Index{byID: map[string]int{}}, Range{}, nil
	}

	first, ok := idx.byID[tableIDs[0]]
	if !ok {
		return nil, Range{}, fmt.Errorf("%w: %q", ErrUnknownTable, tableIDs[0])
	}
	for i, id := range tableIDs[1:] {
		j, ok := idx.byID[id]
		if !ok {
			return nil, Range{}, fmt.Errorf("%w: %q", ErrUnknownTable, id)
		}
		if j != first+i+1 {
			return nil, Range{}, fmt.Errorf("%w: %q does not follow %q", ErrNotConsecutive, id, tableIDs[i])
		}
	}

	selected := idx.Tables[first : first+len(tableIDs)]
	span := Range{Start: selected[0].Start, End: selected[len(selected)-1].End}

	result := &Index{
		Tables: make([]Table, len(selected)),
		byID:   make(map[string]int, len(selected)),
	}
	for i, t := range selected {
		result.Tables[i] = t.shift(-span.Start)
		result.byID[t.ID] = i
	}
	return result, span, nil
}

func (t Table) shift(offset int) Table {
	result := Table{
		ID:       t.ID,
		Range:    t.Range.shift(offset),
		Columns:  make([]Column, len(t.Columns)),
		byColumn: t.byColumn,
	}
	for i, c := range t.Columns {
		rows := make([]Range, len(c.Rows))
		for j, r := range c.Rows {
			rows[j] = r.shift(offset)
		}
		result.Columns[i] = Column{Column: c.Column, Range: c.Range.shift(offset), Rows: rows}
	}
	return result
}

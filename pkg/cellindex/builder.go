package cellindex

import (
	"fmt"
)

// Builder lays out an Index one cell at a time. Ranges are assigned from a
// running cursor, so the result is contiguous by construction.
type Builder struct {
	idx    *Index
	cursor int

	table  *Table
	column *Column
}

func NewBuilder() *Builder {
	return &Builder{idx: &Index{byID: make(map[string]int)}}
}

// Cursor is the start offset the next cell will receive.
func (b *Builder) Cursor() int {
	return b.cursor
}

// StartTable closes the current table and opens a new one.
func (b *Builder) StartTable(id string) error {
	if _, exists := b.idx.byID[id]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateTable, id)
	}
	b.closeTable()

	b.idx.byID[id] = len(b.idx.Tables)
	b.idx.Tables = append(b.idx.Tables, Table{
		ID:       id,
		Range:    Range{Start: b.cursor},
		byColumn: make(map[int]int),
	})
	b.table = &b.idx.Tables[len(b.idx.Tables)-1]
	return nil
}

// StartColumn closes the current column and opens a new one in the current
// table.
func (b *Builder) StartColumn(column int) error {
	if b.table == nil {
		return fmt.Errorf("starting column %d: no table started", column)
	}
	if _, exists := b.table.byColumn[column]; exists {
		return fmt.Errorf("%w: table %q column %d", ErrDuplicateColumn, b.table.ID, column)
	}
	b.closeColumn()

	b.table.byColumn[column] = len(b.table.Columns)
	b.table.Columns = append(b.table.Columns, Column{
		Column: column,
		Range:  Range{Start: b.cursor},
	})
	b.column = &b.table.Columns[len(b.table.Columns)-1]
	return nil
}

// AddCell appends the next row of the current column holding n elements and
// returns its range.
func (b *Builder) AddCell(n int) (Range, error) {
	if b.column == nil {
		return Range{}, fmt.Errorf("adding cell: no column started")
	}
	if n < 0 {
		return Range{}, fmt.Errorf("adding cell: negative length %d", n)
	}
	r := Range{Start: b.cursor, End: b.cursor + n}
	b.column.Rows = append(b.column.Rows, r)
	b.cursor += n
	return r, nil
}

// Build closes any open table and returns the index. The Builder must not be
// used afterward.
func (b *Builder) Build() *Index {
	b.closeTable()
	return b.idx
}

func (b *Builder) closeColumn() {
	if b.column != nil {
		b.column.End = b.cursor
		b.column = nil
	}
}

func (b *Builder) closeTable() {
	b.closeColumn()
	if b.table != nil {
		b.table.End = b.cursor
		b.table = nil
	}
}

// FromCells rebuilds an Index from cells in layout order, as produced by
// Index.Cells. It fails if the cells are not contiguous or rows are missing.
func FromCells(cells []Cell) (*Index, error) {
	b := NewBuilder()

	var tableID string
	column := -1
	for i, cell := range cells {
		if i == 0 || cell.TableID != tableID {
			err := b.StartTable(cell.TableID)
			if err != nil {
				return nil, err
			}
			tableID = cell.TableID
			column = -1
		}
		if column == -1 || cell.Column != column {
			err := b.StartColumn(cell.Column)
			if err != nil {
				return nil, err
			}
			column = cell.Column
		}

		if cell.Row != len(b.column.Rows) {
			return nil, &ContiguityError{
				TableID: cell.TableID, Column: cell.Column, Row: cell.Row,
				Reason: fmt.Sprintf("expected row %d", len(b.column.Rows)),
			}
		}
		if cell.Start != b.cursor {
			return nil, &ContiguityError{
				TableID: cell.TableID, Column: cell.Column, Row: cell.Row,
				Reason: fmt.Sprintf("starts at %d, expected %d", cell.Start, b.cursor),
			}
		}
		_, err := b.AddCell(cell.Len())
		if err != nil {
			return nil, err
		}
	}

	return b.Build(), nil
}

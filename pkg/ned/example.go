// Package ned holds the annotated tables entity linking runs over.
package ned

import (
	"errors"
	"fmt"
	"slices"
)

// Column is one column of a table. Index is the column's number in the
// source table and survives column selection.
type Column struct {
	Index  int      `json:"index"`
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Table is a column-oriented table. Every column has the same number of rows.
type Table struct {
	ID      string   `json:"id"`
	Columns []Column `json:"columns"`
}

func (t *Table) NumRows() int {
	if len(t.Columns) == 0 {
		return 0
	}
	return len(t.Columns[0].Values)
}

// ColumnPosition returns the position in Columns of the column numbered index.
func (t *Table) ColumnPosition(index int) (int, bool) {
	for i, c := range t.Columns {
		if c.Index == index {
			return i, true
		}
	}
	return 0, false
}

// Column returns the column numbered index.
func (t *Table) Column(index int) (*Column, bool) {
	i, ok := t.ColumnPosition(index)
	if !ok {
		return nil, false
	}
	return &t.Columns[i], true
}

// ColumnType is a gold semantic type of a column with its confidence.
type ColumnType struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// Span is a half-open character range of a mention within a cell.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// CellLink is the gold annotation of a cell. An empty Entities list marks the
// cell as NIL: it is known to refer to nothing in the knowledge base.
type CellLink struct {
	Entities []string          `json:"entities"`
	Mentions map[string][]Span `json:"mentions,omitempty"`
}

func (l *CellLink) IsNIL() bool {
	return len(l.Entities) == 0
}

// Has reports whether id is one of the gold entities.
func (l *CellLink) Has(id string) bool {
	return slices.Contains(l.Entities, id)
}

// Example is one table with its gold annotations.
type Example struct {
	Table Table `json:"table"`

	// EntityColumns are the column numbers holding entity mentions.
	EntityColumns []int `json:"entity_columns"`
	// EntityColumnTypes[i] are the gold types of EntityColumns[i].
	EntityColumnTypes [][]ColumnType `json:"entity_column_types"`
	// Links[row][pos] annotates the cell at row and column position pos in
	// Table.Columns. A nil link means the cell was not annotated.
	Links [][]*CellLink `json:"links"`
	// MissingEntityColumns should have been linked but were not.
	MissingEntityColumns []int `json:"missing_entity_columns"`
}

var ErrInvalidExample = errors.New("invalid example")

// Validate checks the shape of the example.
func (e *Example) Validate() error {
	nrows := e.Table.NumRows()
	seen := make(map[int]bool)
	for _, c := range e.Table.Columns {
		if c.Index < 0 {
			return fmt.Errorf("%w: table %q: negative column %d", ErrInvalidExample, e.Table.ID, c.Index)
		}
		if seen[c.Index] {
			return fmt.Errorf("%w: table %q: duplicate column %d", ErrInvalidExample, e.Table.ID, c.Index)
		}
		seen[c.Index] = true
		if len(c.Values) != nrows {
			return fmt.Errorf("%w: table %q: column %d has %d rows, want %d",
				ErrInvalidExample, e.Table.ID, c.Index, len(c.Values), nrows)
		}
	}

	for _, c := range e.EntityColumns {
		if !seen[c] {
			return fmt.Errorf("%w: table %q: entity column %d does not exist", ErrInvalidExample, e.Table.ID, c)
		}
	}
	if e.EntityColumnTypes != nil && len(e.EntityColumnTypes) != len(e.EntityColumns) {
		return fmt.Errorf("%w: table %q: %d entity column type sets for %d entity columns",
			ErrInvalidExample, e.Table.ID, len(e.EntityColumnTypes), len(e.EntityColumns))
	}

	if e.Links != nil {
		if len(e.Links) != nrows {
			return fmt.Errorf("%w: table %q: links for %d rows, want %d", ErrInvalidExample, e.Table.ID, len(e.Links), nrows)
		}
		for row, links := range e.Links {
			if len(links) != len(e.Table.Columns) {
				return fmt.Errorf("%w: table %q: row %d has links for %d columns, want %d",
					ErrInvalidExample, e.Table.ID, row, len(links), len(e.Table.Columns))
			}
		}
	}
	return nil
}

// Link returns the gold link of a cell, or nil if it is not annotated.
func (e *Example) Link(column, row int) *CellLink {
	if row < 0 || row >= len(e.Links) {
		return nil
	}
	pos, ok := e.Table.ColumnPosition(column)
	if !ok {
		return nil
	}
	return e.Links[row][pos]
}

// ColumnTypes returns the gold types of an entity column, or nil if the column
// has none declared.
func (e *Example) ColumnTypes(column int) []ColumnType {
	for i, c := range e.EntityColumns {
		if c == column && i < len(e.EntityColumnTypes) {
			return e.EntityColumnTypes[i]
		}
	}
	return nil
}

// KeepColumns returns a new example restricted to the given column numbers,
// in the order of the source table. Columns keep their numbers. The source
// example is not modified.
func (e *Example) KeepColumns(columns []int) *Example {
	keep := make(map[int]bool, len(columns))
	for _, c := range columns {
		keep[c] = true
	}

	result := &Example{Table: Table{ID: e.Table.ID}}

	var positions []int
	for pos, c := range e.Table.Columns {
		if !keep[c.Index] {
			continue
		}
		positions = append(positions, pos)
		result.Table.Columns = append(result.Table.Columns, Column{
			Index:  c.Index,
			Name:   c.Name,
			Values: slices.Clone(c.Values),
		})
	}

	for i, c := range e.EntityColumns {
		if !keep[c] {
			continue
		}
		result.EntityColumns = append(result.EntityColumns, c)
		if i < len(e.EntityColumnTypes) {
			result.EntityColumnTypes = append(result.EntityColumnTypes, slices.Clone(e.EntityColumnTypes[i]))
		}
	}
	for _, c := range e.MissingEntityColumns {
		if keep[c] {
			result.MissingEntityColumns = append(result.MissingEntityColumns, c)
		}
	}

	if e.Links != nil {
		result.Links = make([][]*CellLink, len(e.Links))
		for row, links := range e.Links {
			result.Links[row] = make([]*CellLink, len(positions))
			for i, pos := range positions {
				result.Links[row][i] = links[pos].clone()
			}
		}
	}

	return result
}

func (l *CellLink) clone() *CellLink {
	if l == nil {
		return nil
	}
	result := &CellLink{Entities: slices.Clone(l.Entities)}
	if l.Mentions != nil {
		result.Mentions = make(map[string][]Span, len(l.Mentions))
		for k, v := range l.Mentions {
			result.Mentions[k] = slices.Clone(v)
		}
	}
	return result
}

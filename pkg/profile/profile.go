// Package profile summarizes the cells and gold links of annotated tables.
package profile

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/willbeason/table-linking/pkg/ned"
)

// Column kinds used as profile keys.
const (
	Entity  = "entity"
	Literal = "literal"
)

// Stats profiles a stream of examples. Columns are keyed by kind, and entity
// columns also by each of their gold types, as "entity:<type>".
type Stats struct {
	Examples int
	Rows     int

	// Cells counts the cells of entity columns.
	Cells    int
	Linked   int
	NIL      int
	Unlinked int
	// Entities counts gold entities over linked cells.
	Entities int

	Columns map[string]Field
}

func NewStats() *Stats {
	return &Stats{Columns: make(map[string]Field)}
}

// Add profiles one example.
func (s *Stats) Add(e *ned.Example) error {
	s.Examples++
	s.Rows += e.Table.NumRows()

	for _, c := range e.Table.Columns {
		keys := []string{Literal}
		isEntity := slices.Contains(e.EntityColumns, c.Index)
		if isEntity {
			keys = []string{Entity}
			for _, t := range e.ColumnTypes(c.Index) {
				keys = append(keys, Entity+":"+t.ID)
			}
		}

		for row, text := range c.Values {
			value := Interpret(text)
			for _, key := range keys {
				err := s.add(key, value)
				if err != nil {
					return fmt.Errorf("table %q column %d row %d: %w", e.Table.ID, c.Index, row, err)
				}
			}

			if !isEntity {
				continue
			}
			s.Cells++
			link := e.Link(c.Index, row)
			switch {
			case link == nil:
				s.Unlinked++
			case link.IsNIL():
				s.NIL++
			default:
				s.Linked++
				s.Entities += len(link.Entities)
			}
		}
	}
	return nil
}

func (s *Stats) add(key string, value any) error {
	field := s.Columns[key]
	if field == nil {
		field = &EmptyField{}
	}
	field, err := field.Add(value)
	if err != nil {
		return err
	}
	s.Columns[key] = field
	return nil
}

// Lines renders the profile as "key;value" lines: the counters first, then
// one line per column key in sorted order.
func (s *Stats) Lines() []string {
	lines := []string{
		fmt.Sprintf("examples;%d", s.Examples),
		fmt.Sprintf("rows;%d", s.Rows),
		fmt.Sprintf("cells;%d", s.Cells),
		fmt.Sprintf("linked;%d", s.Linked),
		fmt.Sprintf("nil;%d", s.NIL),
		fmt.Sprintf("unlinked;%d", s.Unlinked),
		fmt.Sprintf("entities;%d", s.Entities),
	}
	for _, key := range slices.Sorted(maps.Keys(s.Columns)) {
		lines = append(lines, fmt.Sprintf("%s;%s", key, s.Columns[key]))
	}
	return lines
}

func (s *Stats) String() string {
	return strings.Join(s.Lines(), "\n")
}

package cellindex

import "fmt"

// ContiguityError locates a range that breaks the index layout.
type ContiguityError struct {
	TableID string
	Column  int
	Row     int
	Reason  string
}

func (e *ContiguityError) Error() string {
	return fmt.Sprintf("index not contiguous at table %q column %d row %d: %s", e.TableID, e.Column, e.Row, e.Reason)
}

// Validate checks that the index covers [0, n) with contiguous,
// non-overlapping ranges and that every aggregate range matches its children.
// Row -1 in an error refers to a column or table range.
func (idx *Index) Validate(n int) error {
	cursor := 0
	for _, t := range idx.Tables {
		if t.Start != cursor {
			return &ContiguityError{TableID: t.ID, Column: -1, Row: -1,
				Reason: fmt.Sprintf("table starts at %d, expected %d", t.Start, cursor)}
		}
		for _, c := range t.Columns {
			if c.Start != cursor {
				return &ContiguityError{TableID: t.ID, Column: c.Column, Row: -1,
					Reason: fmt.Sprintf("column starts at %d, expected %d", c.Start, cursor)}
			}
			for row, r := range c.Rows {
				if r.Start != cursor || r.End < r.Start {
					return &ContiguityError{TableID: t.ID, Column: c.Column, Row: row,
						Reason: fmt.Sprintf("cell is [%d, %d), expected to start at %d", r.Start, r.End, cursor)}
				}
				cursor = r.End
			}
			if c.End != cursor {
				return &ContiguityError{TableID: t.ID, Column: c.Column, Row: -1,
					Reason: fmt.Sprintf("column ends at %d, expected %d", c.End, cursor)}
			}
		}
		if t.End != cursor {
			return &ContiguityError{TableID: t.ID, Column: -1, Row: -1,
				Reason: fmt.Sprintf("table ends at %d, expected %d", t.End, cursor)}
		}
	}
	if cursor != n {
		return &ContiguityError{Column: -1, Row: -1,
			Reason: fmt.Sprintf("index covers %d elements, arrays have %d", cursor, n)}
	}
	return nil
}

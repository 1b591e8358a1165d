// Package candidates builds and manipulates the columnar set of candidate
// entities proposed for every entity cell of a batch of tables.
package candidates

import (
	"errors"
	"fmt"

	"github.com/willbeason/table-linking/pkg/cellindex"
	"github.com/willbeason/table-linking/pkg/kb"
)

// Oracle is the provenance of gold entities injected by TopK.
const Oracle = "oracle"

// Candidate is one proposed entity for a cell.
type Candidate struct {
	kb.Entity
	Score      float64
	Provenance string
}

// Columns are equal-length parallel arrays, one element per candidate.
type Columns struct {
	ID          []string
	Label       []string
	Description []string
	Aliases     [][]string
	Popularity  []float64
	Score       []float64
	Provenance  []string
}

func (c *Columns) Len() int {
	return len(c.ID)
}

// Candidate returns the i-th candidate.
func (c *Columns) Candidate(i int) Candidate {
	return Candidate{
		Entity: kb.Entity{
			ID:          c.ID[i],
			Label:       c.Label[i],
			Description: c.Description[i],
			Aliases:     c.Aliases[i],
			Popularity:  c.Popularity[i],
		},
		Score:      c.Score[i],
		Provenance: c.Provenance[i],
	}
}

// Append adds a candidate to the end of every array.
func (c *Columns) Append(cand Candidate) {
	c.ID = append(c.ID, cand.ID)
	c.Label = append(c.Label, cand.Label)
	c.Description = append(c.Description, cand.Description)
	c.Aliases = append(c.Aliases, cand.Aliases)
	c.Popularity = append(c.Popularity, cand.Popularity)
	c.Score = append(c.Score, cand.Score)
	c.Provenance = append(c.Provenance, cand.Provenance)
}

// Slice returns a view of [start, end) of every array.
func (c *Columns) Slice(start, end int) Columns {
	return Columns{
		ID:          c.ID[start:end:end],
		Label:       c.Label[start:end:end],
		Description: c.Description[start:end:end],
		Aliases:     c.Aliases[start:end:end],
		Popularity:  c.Popularity[start:end:end],
		Score:       c.Score[start:end:end],
		Provenance:  c.Provenance[start:end:end],
	}
}

var ErrMisaligned = errors.New("candidate arrays are misaligned")

func (c *Columns) checkAligned() error {
	n := len(c.ID)
	lengths := map[string]int{
		"label":       len(c.Label),
		"description": len(c.Description),
		"aliases":     len(c.Aliases),
		"popularity":  len(c.Popularity),
		"score":       len(c.Score),
		"provenance":  len(c.Provenance),
	}
	for name, l := range lengths {
		if l != n {
			return fmt.Errorf("%w: %s has %d elements, id has %d", ErrMisaligned, name, l, n)
		}
	}
	return nil
}

// Dataset is the candidate set of a whole batch: parallel arrays plus an index
// from (table, column, row) to the range of each cell's candidates.
type Dataset struct {
	Columns
	Index *cellindex.Index
}

// Validate checks that the arrays are aligned and the index covers them
// exactly with contiguous ranges.
func (d *Dataset) Validate() error {
	err := d.checkAligned()
	if err != nil {
		return err
	}
	return d.Index.Validate(d.Len())
}

// Cell returns the candidates of one cell, in stored order.
func (d *Dataset) Cell(tableID string, column, row int) (Columns, bool) {
	r, ok := d.Index.Cell(tableID, column, row)
	if !ok {
		return Columns{}, false
	}
	return d.Slice(r.Start, r.End), true
}

// HasCell reports whether the cell is indexed and has at least one candidate.
func (d *Dataset) HasCell(tableID string, column, row int) bool {
	r, ok := d.Index.Cell(tableID, column, row)
	return ok && r.Len() > 0
}

// Column returns the candidates of every row of one column.
func (d *Dataset) Column(tableID string, column int) (Columns, bool) {
	c, ok := d.Index.Column(tableID, column)
	if !ok {
		return Columns{}, false
	}
	return d.Slice(c.Start, c.End), true
}

// Table returns the candidates of one table.
func (d *Dataset) Table(tableID string) (Columns, bool) {
	t, ok := d.Index.Table(tableID)
	if !ok {
		return Columns{}, false
	}
	return d.Slice(t.Start, t.End), true
}

// CandidateByID finds a candidate of a cell by entity id.
func (d *Dataset) CandidateByID(tableID string, column, row int, id string) (Candidate, bool) {
	r, ok := d.Index.Cell(tableID, column, row)
	if !ok {
		return Candidate{}, false
	}
	for i := r.Start; i < r.End; i++ {
		if d.ID[i] == id {
			return d.Candidate(i), true
		}
	}
	return Candidate{}, false
}

// RowIndex returns the row number of every candidate.
func (d *Dataset) RowIndex() []int {
	result := make([]int, d.Len())
	for cell := range d.Index.Cells() {
		for i := cell.Start; i < cell.End; i++ {
			result[i] = cell.Row
		}
	}
	return result
}

// Select returns the dataset restricted to consecutive tables, with the index
// re-based to the selected arrays. The arrays are shared with d.
func (d *Dataset) Select(tableIDs ...string) (*Dataset, error) {
	idx, span, err := d.Index.Select(tableIDs...)
	if err != nil {
		return nil, fmt.Errorf("selecting tables: %w", err)
	}
	return &Dataset{Columns: d.Slice(span.Start, span.End), Index: idx}, nil
}

// WithScores returns a dataset sharing everything with d except the scores.
func (d *Dataset) WithScores(scores []float64) (*Dataset, error) {
	if len(scores) != d.Len() {
		return nil, fmt.Errorf("%w: %d scores for %d candidates", ErrMisaligned, len(scores), d.Len())
	}
	result := &Dataset{Columns: d.Columns, Index: d.Index}
	result.Score = scores
	return result, nil
}

// Filter returns a new dataset keeping, for every cell, the candidates whose
// position keep reports true. Stored order within each cell is preserved.
func (d *Dataset) Filter(keep func(i int) bool) (*Dataset, error) {
	var columns Columns
	b := cellindex.NewBuilder()

	for _, t := range d.Index.Tables {
		err := b.StartTable(t.ID)
		if err != nil {
			return nil, fmt.Errorf("filtering candidates: %w", err)
		}
		for _, c := range t.Columns {
			err = b.StartColumn(c.Column)
			if err != nil {
				return nil, fmt.Errorf("filtering candidates: %w", err)
			}
			for _, r := range c.Rows {
				n := 0
				for i := r.Start; i < r.End; i++ {
					if keep(i) {
						columns.Append(d.Candidate(i))
						n++
					}
				}
				_, err = b.AddCell(n)
				if err != nil {
					return nil, fmt.Errorf("filtering candidates: %w", err)
				}
			}
		}
	}

	return &Dataset{Columns: columns, Index: b.Build()}, nil
}

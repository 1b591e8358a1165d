package ranking

import (
	"context"
	"fmt"

	"github.com/willbeason/table-linking/pkg/candidates"
	"github.com/willbeason/table-linking/pkg/cellindex"
	"github.com/willbeason/table-linking/pkg/kb"
	"github.com/willbeason/table-linking/pkg/ned"
)

// EntDataset is the gold side of a ranking dataset: one row per gold entity
// of every linked cell, with its own index over the same cells as the
// candidate dataset it was built from.
type EntDataset struct {
	cellColumns
	EntityID          []string
	EntityLabel       []string
	EntityDescription []string
	EntityAliases     [][]string
	EntityPopularity  []float64

	Index *cellindex.Index
}

func (e *EntDataset) Len() int {
	return len(e.EntityID)
}

// Validate checks that every array has the same length and that the index
// covers them exactly.
func (e *EntDataset) Validate() error {
	lengths := e.lengths()
	lengths["entity_label"] = len(e.EntityLabel)
	lengths["entity_description"] = len(e.EntityDescription)
	lengths["entity_aliases"] = len(e.EntityAliases)
	lengths["entity_popularity"] = len(e.EntityPopularity)
	err := checkLengths(e.Len(), lengths)
	if err != nil {
		return err
	}
	return e.Index.Validate(e.Len())
}

// Ref returns the cell coordinates of row i.
func (e *EntDataset) Ref(i int) CellRef {
	return e.ref(i)
}

func (e *EntDataset) Entity(i int) kb.Entity {
	return kb.Entity{
		ID:          e.EntityID[i],
		Label:       e.EntityLabel[i],
		Description: e.EntityDescription[i],
		Aliases:     e.EntityAliases[i],
		Popularity:  e.EntityPopularity[i],
	}
}

// Entities returns the gold entities of a cell. It has the shape of
// candidates.GoldLookup.
func (e *EntDataset) Entities(tableID string, column, row int) []kb.Entity {
	r, ok := e.Index.Cell(tableID, column, row)
	if !ok {
		return nil
	}
	result := make([]kb.Entity, 0, r.Len())
	for i := r.Start; i < r.End; i++ {
		result = append(result, e.Entity(i))
	}
	return result
}

// BuildEnt emits one row per gold entity of every cell of d. Unannotated and
// NIL cells get an empty range. Entity fields come from one batched lookup.
func BuildEnt(ctx context.Context, store kb.EntityStore, examples []*ned.Example, d *candidates.Dataset) (*EntDataset, error) {
	var ids []string
	seen := make(map[string]bool)
	err := walk(examples, d, walker{cell: func(v cellVisit) error {
		link := v.example.Link(v.column.Column, v.row)
		if link == nil {
			return nil
		}
		for _, id := range link.Entities {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		return nil
	}})
	if err != nil {
		return nil, fmt.Errorf("collecting gold entities: %w", err)
	}

	entities, err := kb.Lookup(ctx, store, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving gold entities: %w", err)
	}
	byID := make(map[string]kb.Entity, len(entities))
	for _, e := range entities {
		byID[e.ID] = e
	}

	result := &EntDataset{}
	b := cellindex.NewBuilder()
	err = walk(examples, d, walker{
		table: func(t *cellindex.Table) error {
			return b.StartTable(t.ID)
		},
		column: func(_ *cellindex.Table, c *cellindex.Column) error {
			return b.StartColumn(c.Column)
		},
		cell: func(v cellVisit) error {
			var n int
			if link := v.example.Link(v.column.Column, v.row); link != nil {
				for _, id := range link.Entities {
					e := byID[id]
					result.append(v.ref)
					result.EntityID = append(result.EntityID, e.ID)
					result.EntityLabel = append(result.EntityLabel, e.Label)
					result.EntityDescription = append(result.EntityDescription, e.Description)
					result.EntityAliases = append(result.EntityAliases, e.Aliases)
					result.EntityPopularity = append(result.EntityPopularity, e.Popularity)
					n++
				}
			}
			_, err := b.AddCell(n)
			return err
		},
	})
	if err != nil {
		return nil, fmt.Errorf("building gold ranking rows: %w", err)
	}

	result.Index = b.Build()
	return result, nil
}

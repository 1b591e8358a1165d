package candidates

import (
	"context"
	"errors"
	"fmt"

	"github.com/willbeason/table-linking/pkg/cellindex"
	"github.com/willbeason/table-linking/pkg/kb"
	"github.com/willbeason/table-linking/pkg/metrics"
	"github.com/willbeason/table-linking/pkg/ned"
	"github.com/willbeason/table-linking/pkg/search"
)

var ErrMissingQuery = errors.New("no search result for cell text")

// DistinctIDs returns every candidate id of results in first-seen order,
// visiting queries in the given order.
func DistinctIDs(queries []string, results map[string][]search.Match) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, q := range queries {
		for _, m := range results[q] {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// BuildDataset lays out the candidates of every entity cell of examples.
// Entity fields are resolved with one batched lookup over the distinct
// candidate ids, and every cell proposing an id shares that lookup. Tables are
// walked in order, then the entity columns as listed, then rows; a cell whose
// text has no matches gets an empty range.
func BuildDataset(
	ctx context.Context,
	store kb.EntityStore,
	examples []*ned.Example,
	entityColumns [][]int,
	results map[string][]search.Match,
	provenance string,
) (*Dataset, error) {
	queries, err := DistinctQueries(examples, entityColumns)
	if err != nil {
		return nil, err
	}
	for _, q := range queries {
		if _, ok := results[q]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingQuery, q)
		}
	}

	ids := DistinctIDs(queries, results)
	entities, err := kb.Lookup(ctx, store, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving candidate entities: %w", err)
	}
	byID := make(map[string]int, len(ids))
	for i, id := range ids {
		byID[id] = i
	}

	var columns Columns
	b := cellindex.NewBuilder()
	for i, example := range examples {
		err = b.StartTable(example.Table.ID)
		if err != nil {
			return nil, fmt.Errorf("building candidate index: %w", err)
		}

		for _, column := range columnsOf(example, entityColumns, i) {
			err = b.StartColumn(column)
			if err != nil {
				return nil, fmt.Errorf("building candidate index: %w", err)
			}

			c, _ := example.Table.Column(column)
			for _, text := range c.Values {
				matches := results[text]
				for _, m := range matches {
					columns.Append(Candidate{
						Entity:     entities[byID[m.ID]],
						Score:      m.Score,
						Provenance: provenance,
					})
				}
				_, err = b.AddCell(len(matches))
				if err != nil {
					return nil, fmt.Errorf("building candidate index: %w", err)
				}
			}
		}
	}

	metrics.RecordCandidates(columns.Len())
	return &Dataset{Columns: columns, Index: b.Build()}, nil
}

package tables

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/willbeason/table-linking/pkg/candidates"
	"github.com/willbeason/table-linking/pkg/cellindex"
	"github.com/willbeason/table-linking/pkg/features"
	"github.com/willbeason/table-linking/pkg/kb"
	"github.com/willbeason/table-linking/pkg/ned"
	"github.com/willbeason/table-linking/pkg/ranking"
	"gonum.org/v1/gonum/mat"
)

var (
	paris = candidates.Candidate{
		Entity:     kb.Entity{ID: "Q90", Label: "Paris", Description: "capital of France", Aliases: []string{"City of Light"}, Popularity: 0.9},
		Score:      0.8,
		Provenance: "fts",
	}
	texas = candidates.Candidate{
		Entity:     kb.Entity{ID: "Q1234", Label: "Paris, Texas", Popularity: 0.1},
		Score:      0.2,
		Provenance: "fts",
	}
	berlin = candidates.Candidate{
		Entity:     kb.Entity{ID: "Q64", Label: "Berlin", Aliases: []string{"Berlin, Germany", "BER"}, Popularity: 0.7},
		Score:      1,
		Provenance: candidates.Oracle,
	}
)

// newDataset has t1 with cells [paris texas] and [], and t2 with [berlin].
func newDataset(t *testing.T) *candidates.Dataset {
	t.Helper()

	var columns candidates.Columns
	b := cellindex.NewBuilder()
	require.NoError(t, b.StartTable("t1"))
	require.NoError(t, b.StartColumn(0))
	columns.Append(paris)
	columns.Append(texas)
	_, err := b.AddCell(2)
	require.NoError(t, err)
	_, err = b.AddCell(0)
	require.NoError(t, err)

	require.NoError(t, b.StartTable("t2"))
	require.NoError(t, b.StartColumn(1))
	columns.Append(berlin)
	_, err = b.AddCell(1)
	require.NoError(t, err)

	d := &candidates.Dataset{Columns: columns, Index: b.Build()}
	require.NoError(t, d.Validate())
	return d
}

func newExamples() []*ned.Example {
	return []*ned.Example{
		{
			Table:         ned.Table{ID: "t1", Columns: []ned.Column{{Index: 0, Values: []string{"Paris", "Lyon"}}}},
			EntityColumns: []int{0},
			Links:         [][]*ned.CellLink{{{Entities: []string{"Q90"}}}, {nil}},
		},
		{
			Table: ned.Table{ID: "t2", Columns: []ned.Column{
				{Index: 0, Values: []string{"Germany"}},
				{Index: 1, Values: []string{"Berlin"}},
			}},
			EntityColumns: []int{1},
			Links:         [][]*ned.CellLink{{nil, {Entities: []string{"Q64"}}}},
		},
	}
}

func TestCandidatesRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	d := newDataset(t)
	runID := uuid.New()

	require.NoError(t, WriteCandidates(dir, runID, d))

	got, gotRunID, err := ReadCandidates(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, runID, gotRunID)

	if diff := cmp.Diff(d.Columns, got.Columns, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("ReadCandidates() columns mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(slices.Collect(d.Index.Cells()), slices.Collect(got.Index.Cells())); diff != "" {
		t.Errorf("ReadCandidates() index mismatch (-want +got):\n%s", diff)
	}

	cell, ok := got.Cell("t2", 1, 0)
	require.True(t, ok)
	assert.Equal(t, []string{"Q64"}, cell.ID)
}

func TestCandidatesRoundTrip_Empty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	d := &candidates.Dataset{Index: cellindex.NewBuilder().Build()}

	require.NoError(t, WriteCandidates(dir, uuid.New(), d))

	got, _, err := ReadCandidates(ctx, dir)
	require.NoError(t, err)
	assert.Zero(t, got.Len())
	assert.Zero(t, got.Index.Len())
}

func TestReadCandidates_Missing(t *testing.T) {
	_, _, err := ReadCandidates(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func readAll(t *testing.T, path string, fn func(record arrow.Record)) *arrow.Schema {
	t.Helper()
	schema, err := readRecords(context.Background(), path, func(record arrow.Record) error {
		fn(record)
		return nil
	})
	require.NoError(t, err)
	return schema
}

func TestWriteRanking(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	d := newDataset(t)
	examples := newExamples()
	runID := uuid.New()

	store := kb.NewMemoryStore()
	store.Add(kb.Record{ID: "Q90", Label: "Paris", Popularity: 0.9})
	store.Add(kb.Record{ID: "Q64", Label: "Berlin", Aliases: []string{"BER"}, Popularity: 0.7})

	can, err := ranking.BuildCan(examples, d)
	require.NoError(t, err)
	ent, err := ranking.BuildEnt(ctx, store, examples, d)
	require.NoError(t, err)

	canPath := filepath.Join(dir, RankingCanName+ParquetExt)
	require.NoError(t, WriteCan(canPath, runID, can))
	var ids []string
	var correct []bool
	var tableIndex []uint32
	schema := readAll(t, canPath, func(record arrow.Record) {
		id, err := stringColumn(record, "id")
		require.NoError(t, err)
		isCorrect, err := column[*array.Boolean](record, "is_correct")
		require.NoError(t, err)
		table, err := column[*array.Uint32](record, TableIndexFieldName)
		require.NoError(t, err)
		for i := range int(record.NumRows()) {
			ids = append(ids, id(i))
			correct = append(correct, isCorrect.Value(i))
			tableIndex = append(tableIndex, table.Value(i))
		}
	})

	gotRunID, err := RunID(schema)
	require.NoError(t, err)
	assert.Equal(t, runID, gotRunID)
	assert.Equal(t, []string{"Q90", "Q1234", "Q64"}, ids)
	assert.Equal(t, []bool{true, false, true}, correct)
	assert.Equal(t, []uint32{0, 0, 1}, tableIndex)

	entPath := filepath.Join(dir, RankingEntName+ParquetExt)
	require.NoError(t, WriteEnt(entPath, runID, ent))
	var aliases [][]string
	readAll(t, entPath, func(record arrow.Record) {
		entityAliases, err := listColumn(record, "entity_aliases")
		require.NoError(t, err)
		for i := range int(record.NumRows()) {
			aliases = append(aliases, entityAliases(i))
		}
	})
	assert.Equal(t, [][]string{nil, {"BER"}}, aliases)
}

func TestWriteTypes(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), RankingTypesName+ParquetExt)
	d := newDataset(t)
	runID := uuid.New()

	store := kb.NewMemoryStore()
	store.Add(kb.Record{ID: "Q90", InstanceOf: []string{"city", "capital"}})
	store.Add(kb.Record{ID: "Q64", InstanceOf: []string{"city"}})

	types, err := ranking.BuildTypes(ctx, store, nil, newExamples(), d, ranking.TypesNo)
	require.NoError(t, err)
	require.NoError(t, WriteTypes(path, runID, types))

	var ids []string
	var got [][]string
	schema := readAll(t, path, func(record arrow.Record) {
		id, err := stringColumn(record, "id")
		require.NoError(t, err)
		typesColumn, err := listColumn(record, "types")
		require.NoError(t, err)
		for i := range int(record.NumRows()) {
			ids = append(ids, id(i))
			got = append(got, typesColumn(i))
		}
	})

	gotRunID, err := RunID(schema)
	require.NoError(t, err)
	assert.Equal(t, runID, gotRunID)
	assert.Equal(t, d.ID, ids)
	assert.Equal(t, [][]string{{"city", "capital"}, nil, {"city"}}, got)
}

func TestWriteFeatures(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	d := newDataset(t)

	can, err := ranking.BuildCan(newExamples(), d)
	require.NoError(t, err)

	m, err := features.NewExtractor().Extract(ctx, features.Input{
		Text:       []string{"Paris", "Paris", "Berlin"},
		Label:      d.Label,
		Aliases:    d.Aliases,
		Popularity: d.Popularity,
	})
	require.NoError(t, err)

	path := filepath.Join(dir, FeaturesCanName+ParquetExt)
	require.NoError(t, WriteFeatures(path, uuid.New(), can, m))

	var popularity []float64
	schema := readAll(t, path, func(record arrow.Record) {
		c, err := column[*array.Float64](record, "popularity")
		require.NoError(t, err)
		popularity = append(popularity, c.Float64Values()...)
	})
	require.Len(t, schema.Fields(), features.NumFeatures+1)
	assert.Equal(t, d.Popularity, popularity)

	err = WriteFeatures(path, uuid.New(), can, mat.NewDense(1, features.NumFeatures, nil))
	if !errors.Is(err, ErrShape) {
		t.Errorf("got error %v, want %v", err, ErrShape)
	}
}

func TestRunID_Missing(t *testing.T) {
	_, err := RunID(Candidates)
	if !errors.Is(err, ErrSchema) {
		t.Errorf("got error %v, want %v", err, ErrSchema)
	}
}

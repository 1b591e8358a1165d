package evaluate

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/willbeason/table-linking/pkg/candidates"
	"github.com/willbeason/table-linking/pkg/cellindex"
	"github.com/willbeason/table-linking/pkg/kb"
	"github.com/willbeason/table-linking/pkg/ned"
)

type scored struct {
	id    string
	score float64
}

func newFixture(t *testing.T) ([]*ned.Example, *candidates.Dataset) {
	t.Helper()

	paris := []scored{{"Q1234", 0.1}, {"Q90", 0.9}}
	cells := [][]scored{
		paris,
		paris,
		{{"Q90", 0.5}, {"Q1", 0.5}, {"Q64", 0.2}},
		paris,
		nil,
	}

	var columns candidates.Columns
	b := cellindex.NewBuilder()
	require.NoError(t, b.StartTable("t1"))
	require.NoError(t, b.StartColumn(0))
	for _, cell := range cells {
		for _, c := range cell {
			columns.Append(candidates.Candidate{Entity: kb.Entity{ID: c.id}, Score: c.score})
		}
		_, err := b.AddCell(len(cell))
		require.NoError(t, err)
	}
	d := &candidates.Dataset{Columns: columns, Index: b.Build()}
	require.NoError(t, d.Validate())

	example := &ned.Example{
		Table: ned.Table{ID: "t1", Columns: []ned.Column{
			{Index: 0, Values: []string{"Paris", "Paris", "Berlin", "Paris", "Oz"}},
		}},
		EntityColumns: []int{0},
		Links: [][]*ned.CellLink{
			{{Entities: []string{"Q90"}}},
			{{Entities: []string{}}},
			{{Entities: []string{"Q64"}}},
			{{Entities: []string{"Q90"}}},
			{nil},
		},
	}
	return []*ned.Example{example}, d
}

func TestCells(t *testing.T) {
	examples, d := newFixture(t)

	got, err := Cells(examples, nil, d, Options{})
	require.NoError(t, err)

	want := []Cell{
		{Query: "Paris", Gold: []string{"Q90"}, Candidates: []string{"Q90", "Q1234"}},
		{Query: "Paris", Gold: []string{NILEntity}, Candidates: []string{"Q90", "Q1234"}},
		{Query: "Berlin", Gold: []string{"Q64"}, Candidates: []string{"Q90", "Q1", "Q64"}},
		{Query: "Paris", Gold: []string{"Q90"}, Candidates: []string{"Q90", "Q1234"}},
		{Query: "Oz", Gold: []string{NoEntity}, Candidates: []string{}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Cells() mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, 1, got[0].Rank())
	assert.Equal(t, 3, got[2].Rank())
	assert.Equal(t, 0, got[1].Rank())
}

func TestEvaluate(t *testing.T) {
	examples, d := newFixture(t)

	got, err := Evaluate(examples, nil, d, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 3, got.Total)
	assert.InDelta(t, 7.0/9, got.MRR, 1e-9)
	assert.InDelta(t, 2.0/3, got.Recall[1], 1e-9)
	assert.InDelta(t, 1, got.Recall[5], 1e-9)
	assert.Equal(t, DefaultTopK, got.Cutoffs())

	assert.Equal(t, 2, got.UniqueTotal)
	assert.InDelta(t, 2.0/3, got.UniqueMRR, 1e-9)
	assert.InDelta(t, 0.5, got.UniqueRecall[1], 1e-9)
}

func TestEvaluate_AllCells(t *testing.T) {
	examples, d := newFixture(t)

	got, err := Evaluate(examples, [][]int{{0}}, d, Options{TopK: []int{2}})
	require.NoError(t, err)

	assert.Equal(t, 5, got.Total)
	assert.InDelta(t, (1+1.0/3+1)/5, got.MRR, 1e-9)
	assert.Equal(t, map[int]float64{2: 2.0 / 5}, got.Recall)
}

func TestEvaluate_Errors(t *testing.T) {
	examples, d := newFixture(t)

	_, err := Evaluate(examples, [][]int{{0}, {1}}, d, DefaultOptions())
	if !errors.Is(err, ErrEntityColumns) {
		t.Errorf("got error %v, want %v", err, ErrEntityColumns)
	}

	_, err = Evaluate(examples, [][]int{{4}}, d, DefaultOptions())
	if !errors.Is(err, ErrEntityColumns) {
		t.Errorf("got error %v, want %v", err, ErrEntityColumns)
	}
}

func TestEvaluate_Empty(t *testing.T) {
	got, err := Evaluate(nil, nil, &candidates.Dataset{Index: cellindex.NewBuilder().Build()}, DefaultOptions())
	require.NoError(t, err)
	assert.Zero(t, got.Total)
	assert.Zero(t, got.MRR)
	assert.Len(t, got.Recall, len(DefaultTopK))
}

package ranking

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/willbeason/table-linking/pkg/kb"
	"github.com/willbeason/table-linking/pkg/ned"
)

// newTypedStore gives Paris and Berlin the type "city", Paris, Texas the type
// "town", and places both under "settlement" which is under "place".
func newTypedStore() *kb.MemoryStore {
	store := newStore()
	store.Add(kb.Record{ID: "Q90", Label: "Paris", InstanceOf: []string{"city"}})
	store.Add(kb.Record{ID: "Q1234", Label: "Paris, Texas", InstanceOf: []string{"town"}})
	store.Add(kb.Record{ID: "Q64", Label: "Berlin", InstanceOf: []string{"city"}})
	store.Add(kb.Record{ID: "capital", SubclassOf: []string{"city"}})
	store.Add(kb.Record{ID: "city", SubclassOf: []string{"settlement"}})
	store.Add(kb.Record{ID: "town", SubclassOf: []string{"settlement"}})
	store.Add(kb.Record{ID: "settlement", SubclassOf: []string{"place"}})
	return store
}

// newTypedExamples are newExamples with the gold type "capital" on the
// column of t1.
func newTypedExamples() []*ned.Example {
	examples := newExamples()
	examples[0].EntityColumnTypes = [][]ned.ColumnType{{{ID: "capital", Score: 1}}}
	return examples
}

func TestBuildTypes(t *testing.T) {
	ctx := context.Background()
	examples := newTypedExamples()
	d := buildDataset(t, examples)
	store := newTypedStore()

	tcs := []struct {
		name string
		mode TypesMode
		want [][]string
	}{{
		name: "no",
		mode: TypesNo,
		want: [][]string{{"city"}, {"town"}, {"city"}, {"town"}, {"city"}, {"town"}, {"city"}},
	}, {
		name: "parent1",
		mode: TypesParent1,
		want: [][]string{
			{"city", "settlement"}, {"settlement", "town"},
			{"city", "settlement"}, {"settlement", "town"},
			{"city", "settlement"}, {"settlement", "town"},
			{"city", "settlement"},
		},
	}, {
		// In t1 "city" is the parent of the gold type "capital", so Paris
		// also gets "capital". t2 has no gold types.
		name: "child_parent2prime",
		mode: TypesChildParent2Prime,
		want: [][]string{
			{"capital", "city", "place", "settlement"}, {"place", "settlement", "town"},
			{"capital", "city", "place", "settlement"}, {"place", "settlement", "town"},
			{"city", "place", "settlement"}, {"place", "settlement", "town"},
			{"city", "place", "settlement"},
		},
	}}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			types, err := BuildTypes(ctx, store, store, examples, d, tc.mode)
			if err != nil {
				t.Fatal(err)
			}
			if err := types.Validate(); err != nil {
				t.Fatal(err)
			}

			if diff := cmp.Diff(d.ID, types.ID); diff != "" {
				t.Errorf("candidate order differs from the dataset (-dataset +types):\n%s", diff)
			}
			if diff := cmp.Diff(tc.want, types.Types); diff != "" {
				t.Errorf("Types mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff([]int{0, 0, 1, 1, 2, 2, 3}, types.CellID); diff != "" {
				t.Errorf("CellID mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildTypes_Untyped(t *testing.T) {
	examples := newExamples()
	d := buildDataset(t, examples)

	// Without instance-of data every candidate has an empty type list.
	types, err := BuildTypes(context.Background(), newStore(), nil, examples, d, TypesNo)
	if err != nil {
		t.Fatal(err)
	}
	if types.Len() != d.Len() {
		t.Fatalf("got %d rows, want %d", types.Len(), d.Len())
	}
	for i, got := range types.Types {
		if len(got) != 0 {
			t.Errorf("row %d: got types %v, want none", i, got)
		}
	}
}

func TestBuildTypes_Drift(t *testing.T) {
	examples := []*ned.Example{oneColumn("t1", []string{"Paris", "Paris"})}
	store := newTypedStore()

	_, err := BuildTypes(context.Background(), store, store, examples, driftDataset(), TypesParent1)
	var consistency *ConsistencyError
	if !errors.As(err, &consistency) {
		t.Fatalf("got error %v, want a *ConsistencyError", err)
	}
	want := ConsistencyError{TableID: "t1", Column: 0, Row: 1, Cursor: 1, Start: 2}
	if diff := cmp.Diff(want, *consistency); diff != "" {
		t.Errorf("error mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildTypes_NoOntology(t *testing.T) {
	examples := newExamples()
	d := buildDataset(t, examples)

	_, err := BuildTypes(context.Background(), newTypedStore(), nil, examples, d, TypesParent1)
	if !errors.Is(err, ErrNoOntology) {
		t.Errorf("got error %v, want %v", err, ErrNoOntology)
	}

	_, err = BuildTypes(context.Background(), newTypedStore(), nil, examples, d, TypesMode(7))
	if !errors.Is(err, ErrUnknownTypesMode) {
		t.Errorf("got error %v, want %v", err, ErrUnknownTypesMode)
	}
}

func TestParseTypesMode(t *testing.T) {
	for _, want := range []TypesMode{TypesNo, TypesParent1, TypesChildParent2Prime} {
		got, err := ParseTypesMode(want.String())
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("ParseTypesMode(%q) = %v, want %v", want.String(), got, want)
		}
	}

	got, err := ParseTypesMode("")
	if err != nil || got != TypesNo {
		t.Errorf(`ParseTypesMode("") = %v, %v, want %v`, got, err, TypesNo)
	}

	_, err = ParseTypesMode("clustered_parent1")
	if !errors.Is(err, ErrUnknownTypesMode) {
		t.Errorf("got error %v, want %v", err, ErrUnknownTypesMode)
	}
}

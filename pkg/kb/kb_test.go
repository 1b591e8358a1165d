package kb

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var records = []Record{
	{
		ID:          "Q90",
		Label:       "Paris",
		Description: "capital of France",
		Aliases:     []string{"City of Light", "Paris, France"},
		Popularity:  0.9,
		InstanceOf:  []string{"Q515", "Q5119"},
	},
	{
		ID:          "Q167646",
		Label:       "Paris Hilton",
		Description: "American media personality",
		Popularity:  0.4,
		InstanceOf:  []string{"Q5"},
	},
	{ID: "Q515", Label: "city", SubclassOf: []string{"Q486972"}},
	{ID: "Q486972", Label: "human settlement", SubclassOf: []string{"Q2221906"}},
}

func testStores(t *testing.T) map[string]interface {
	EntityStore
	Ontology
} {
	t.Helper()

	memory := NewMemoryStore()
	for _, r := range records {
		memory.Add(r)
	}

	ctx := context.Background()
	sqlite, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "kb.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = sqlite.Close()
	})
	err = sqlite.Import(ctx, records)
	if err != nil {
		t.Fatal(err)
	}

	return map[string]interface {
		EntityStore
		Ontology
	}{
		"memory": memory,
		"sqlite": sqlite,
	}
}

func TestStores(t *testing.T) {
	ctx := context.Background()

	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			entities, err := Lookup(ctx, store, []string{"Q167646", "Q90", "Q404"})
			if err != nil {
				t.Fatal(err)
			}
			want := []Entity{
				{ID: "Q167646", Label: "Paris Hilton", Description: "American media personality", Popularity: 0.4},
				{ID: "Q90", Label: "Paris", Description: "capital of France", Aliases: []string{"City of Light", "Paris, France"}, Popularity: 0.9},
				{ID: "Q404"},
			}
			if diff := cmp.Diff(want, entities); diff != "" {
				t.Errorf("Lookup() mismatch (-want +got):\n%s", diff)
			}

			types, err := store.InstanceOf(ctx, []string{"Q90", "Q167646", "Q404"})
			if err != nil {
				t.Fatal(err)
			}
			wantTypes := map[string][]string{
				"Q90":     {"Q515", "Q5119"},
				"Q167646": {"Q5"},
			}
			if diff := cmp.Diff(wantTypes, types); diff != "" {
				t.Errorf("InstanceOf() mismatch (-want +got):\n%s", diff)
			}

			parents, err := store.Parents(ctx, "Q515")
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff([]string{"Q486972"}, parents); diff != "" {
				t.Errorf("Parents() mismatch (-want +got):\n%s", diff)
			}

			parents, err = store.Parents(ctx, "Q2221906")
			if err != nil {
				t.Fatal(err)
			}
			if len(parents) != 0 {
				t.Errorf("got parents %v for root class, want none", parents)
			}
		})
	}
}

func TestLoadRecords(t *testing.T) {
	input := `{"id": "Q90", "label": "Paris", "aliases": ["City of Light"], "popularity": 0.9, "instance_of": ["Q515"]}
{"id": "Q515", "label": "city", "subclass_of": ["Q486972"]}
`
	store, err := LoadRecords(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	metadata, err := store.Metadata(ctx, []string{"Q90"})
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]Metadata{"Q90": {Label: "Paris", Aliases: []string{"City of Light"}}}
	if diff := cmp.Diff(want, metadata); diff != "" {
		t.Errorf("Metadata() mismatch (-want +got):\n%s", diff)
	}

	parents, err := store.Parents(ctx, "Q515")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"Q486972"}, parents); diff != "" {
		t.Errorf("Parents() mismatch (-want +got):\n%s", diff)
	}
}

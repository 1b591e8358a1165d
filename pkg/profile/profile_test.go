package profile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/willbeason/table-linking/pkg/ned"
)

func TestInterpret(t *testing.T) {
	tcs := []struct {
		text string
		want any
	}{
		{text: "", want: nil},
		{text: "  ", want: nil},
		{text: "TRUE", want: true},
		{text: "false", want: false},
		{text: "42", want: 42.0},
		{text: " -1.5 ", want: -1.5},
		{text: "Paris", want: "Paris"},
		{text: "NaN", want: "NaN"},
	}

	for _, tc := range tcs {
		t.Run(tc.text, func(t *testing.T) {
			got := Interpret(tc.text)
			if got != tc.want {
				t.Errorf("got %v (%T), want %v (%T)", got, got, tc.want, tc.want)
			}
		})
	}
}

func addAll(t *testing.T, values ...any) Field {
	t.Helper()
	var f Field = &EmptyField{}
	for _, v := range values {
		var err error
		f, err = f.Add(v)
		if err != nil {
			t.Fatal(err)
		}
	}
	return f
}

func TestField(t *testing.T) {
	tcs := []struct {
		name   string
		values []any
		want   string
	}{
		{name: "empty", values: []any{nil, nil}, want: "empty"},
		{name: "bool", values: []any{true, nil, false, true}, want: "true:2;false:1"},
		{name: "small integers", values: []any{3.0, 1.0, 3.0}, want: "uint8;1;3;1:1;3:2;"},
		{name: "negative integers", values: []any{-200.0, 5.0}, want: "int16;-200;5;-200:1;5:1;"},
		{name: "strings", values: []any{"b", "a", "b"}, want: "enum;2;a:1;b:2;"},
		{name: "numbers widened", values: []any{1.0, "a", 1.0}, want: "enum;2;1:2;a:1;"},
		{name: "bools widened", values: []any{true, 2.0}, want: "enum;2;2:1;true:1;"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			got := addAll(t, tc.values...).String()
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestField_ManyStrings(t *testing.T) {
	var values []any
	for i := range MaxEnum + 5 {
		values = append(values, string(rune('a'+i)))
	}
	f := addAll(t, values...)
	if got, want := f.String(), "string;25;"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestStats(t *testing.T) {
	s := NewStats()
	err := s.Add(&ned.Example{
		Table: ned.Table{ID: "t1", Columns: []ned.Column{
			{Index: 0, Values: []string{"Paris", "Berlin", "Oz"}},
			{Index: 1, Values: []string{"2100000", "3600000", ""}},
		}},
		EntityColumns:     []int{0},
		EntityColumnTypes: [][]ned.ColumnType{{{ID: "city", Score: 1}}},
		Links: [][]*ned.CellLink{
			{{Entities: []string{"Q90"}}, nil},
			{{Entities: []string{}}, nil},
			{nil, nil},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	want := []string{
		"examples;1",
		"rows;3",
		"cells;3",
		"linked;1",
		"nil;1",
		"unlinked;1",
		"entities;1",
		"entity;enum;3;Berlin:1;Oz:1;Paris:1;",
		"entity:city;enum;3;Berlin:1;Oz:1;Paris:1;",
		"literal;uint32;2100000;3600000;2100000:1;3600000:1;",
	}
	if diff := cmp.Diff(want, s.Lines()); diff != "" {
		t.Errorf("Lines() mismatch (-want +got):\n%s", diff)
	}
}

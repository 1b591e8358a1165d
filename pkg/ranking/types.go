package ranking

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/willbeason/table-linking/pkg/candidates"
	"github.com/willbeason/table-linking/pkg/kb"
	"github.com/willbeason/table-linking/pkg/ned"
	"github.com/willbeason/table-linking/pkg/typefilter"
)

// TypesMode selects how far the instance-of types of a candidate are
// extended.
type TypesMode int

const (
	// TypesNo keeps the instance-of types as stored.
	TypesNo TypesMode = iota
	// TypesParent1 adds the direct parents of every instance-of type.
	TypesParent1
	// TypesChildParent2Prime adds the column's gold types when a candidate
	// type is a direct parent of one, then every ancestor up to distance 2.
	TypesChildParent2Prime
)

var (
	ErrUnknownTypesMode = errors.New("unknown candidate types mode")
	ErrNoOntology       = errors.New("candidate types mode needs an ontology")
)

var typesModeNames = map[TypesMode]string{
	TypesNo:                "no",
	TypesParent1:           "parent1",
	TypesChildParent2Prime: "child_parent2prime",
}

func (m TypesMode) String() string {
	if name, ok := typesModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("TypesMode(%d)", int(m))
}

// ParseTypesMode resolves "no", "parent1" or "child_parent2prime". The empty
// string is "no".
func ParseTypesMode(name string) (TypesMode, error) {
	if name == "" {
		return TypesNo, nil
	}
	for m, n := range typesModeNames {
		if n == name {
			return m, nil
		}
	}
	return TypesNo, fmt.Errorf("%w: %q", ErrUnknownTypesMode, name)
}

// TypesDataset holds the types of every stored candidate, in the order of the
// candidate dataset it was built from.
type TypesDataset struct {
	cellColumns
	// ID is the candidate entity id.
	ID []string
	// Types are sorted and unique, except in TypesNo mode where they keep the
	// order of the knowledge base.
	Types [][]string
}

func (t *TypesDataset) Len() int {
	return len(t.ID)
}

// Validate checks that every array has the same length.
func (t *TypesDataset) Validate() error {
	lengths := t.lengths()
	lengths["types"] = len(t.Types)
	return checkLengths(t.Len(), lengths)
}

// Ref returns the cell coordinates of row i.
func (t *TypesDataset) Ref(i int) CellRef {
	return t.ref(i)
}

// BuildTypes looks up the instance-of types of every stored candidate of d
// in one call and extends them according to mode. ontology may be nil in
// TypesNo mode.
//
// As with BuildCan, the output cursor is checked against every start recorded
// in d.Index.
func BuildTypes(
	ctx context.Context,
	store kb.EntityStore,
	ontology kb.Ontology,
	examples []*ned.Example,
	d *candidates.Dataset,
	mode TypesMode,
) (*TypesDataset, error) {
	if _, ok := typesModeNames[mode]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTypesMode, mode)
	}
	if mode != TypesNo && ontology == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoOntology, mode)
	}

	ids := slices.Clone(d.ID)
	slices.Sort(ids)
	ids = slices.Compact(ids)
	instanceOf, err := store.InstanceOf(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("building candidate types: %w", err)
	}

	e := &typesExtender{mode: mode, instanceOf: instanceOf}
	if ontology != nil {
		e.parents = typefilter.NewParents(ontology)
	}

	result := &TypesDataset{}
	cursor := 0
	err = walk(examples, d, checked(&cursor, func(v cellVisit) error {
		columnTypes := v.example.ColumnTypes(v.column.Column)
		for i := v.r.Start; i < v.r.End; i++ {
			types, err := e.types(ctx, d.ID[i], columnTypes)
			if err != nil {
				return fmt.Errorf("table %q column %d row %d: %w", v.table.ID, v.column.Column, v.row, err)
			}
			result.append(v.ref)
			result.ID = append(result.ID, d.ID[i])
			result.Types = append(result.Types, types)
			cursor++
		}
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("building candidate types: %w", err)
	}

	if cursor != d.Len() {
		return nil, fmt.Errorf("building candidate types: %w",
			&ConsistencyError{Column: -1, Row: -1, Cursor: cursor, Start: d.Len()})
	}
	return result, nil
}

type typesExtender struct {
	mode       TypesMode
	instanceOf map[string][]string
	parents    *typefilter.Parents
}

func (e *typesExtender) types(ctx context.Context, id string, columnTypes []ned.ColumnType) ([]string, error) {
	types := e.instanceOf[id]

	switch e.mode {
	case TypesParent1:
		levels, err := e.parents.Ancestors(ctx, types, 1)
		if err != nil {
			return nil, err
		}
		return sortedSet(levels.UpTo(1)), nil

	case TypesChildParent2Prime:
		goldTypes := make([]string, len(columnTypes))
		for i, t := range columnTypes {
			goldTypes[i] = t.ID
		}
		goldLevels, err := e.parents.Ancestors(ctx, goldTypes, 1)
		if err != nil {
			return nil, err
		}

		extended := typefilter.NewSet(types...)
		if goldLevels.Level(1).Intersects(extended) {
			for _, t := range goldTypes {
				extended[t] = struct{}{}
			}
		}
		levels, err := e.parents.Ancestors(ctx, slices.Collect(maps.Keys(extended)), 2)
		if err != nil {
			return nil, err
		}
		return sortedSet(levels.UpTo(2)), nil

	default:
		return slices.Clone(types), nil
	}
}

func sortedSet(s typefilter.Set) []string {
	if len(s) == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(s))
}

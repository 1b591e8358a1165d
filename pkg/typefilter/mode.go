// Package typefilter narrows per-cell candidates to those whose instance-of
// types are compatible with the gold types of their column.
package typefilter

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// Mode selects how candidate types are compared with column types.
type Mode interface {
	// Depth is the number of ancestor levels the mode needs.
	Depth() int
	// Keep reports whether a candidate is compatible with its column, given
	// the ancestor levels of the column's gold types and of the candidate's
	// instance-of types.
	Keep(column, candidate Levels) bool
	String() string
}

// Exact keeps candidates whose direct types intersect the column types.
type Exact struct{}

// Parent keeps candidates having a type whose ancestors, up to N levels up,
// include a column type.
type Parent struct{ N int }

// Child keeps candidates having a direct type among the ancestors, up to N
// levels up, of a column type.
type Child struct{ N int }

// ChildParent keeps candidates compatible under Parent or Child.
type ChildParent struct{ N int }

// LimitedFreePath2 keeps candidates compatible under ChildParent at distance
// 2, or whose types share an ancestor with the column types exactly two
// levels up on both sides. The distance is fixed.
type LimitedFreePath2 struct{}

// Any keeps every candidate, including those of columns without types.
type Any struct{}

func (Exact) Depth() int            { return 0 }
func (m Parent) Depth() int         { return m.N }
func (m Child) Depth() int          { return m.N }
func (m ChildParent) Depth() int    { return m.N }
func (LimitedFreePath2) Depth() int { return 2 }
func (Any) Depth() int              { return 0 }

func (Exact) Keep(column, candidate Levels) bool {
	return column.Level(0).Intersects(candidate.Level(0))
}

func (m Parent) Keep(column, candidate Levels) bool {
	return candidate.UpTo(m.N).Intersects(column.Level(0))
}

func (m Child) Keep(column, candidate Levels) bool {
	return column.UpTo(m.N).Intersects(candidate.Level(0))
}

func (m ChildParent) Keep(column, candidate Levels) bool {
	return Parent(m).Keep(column, candidate) || Child(m).Keep(column, candidate)
}

func (LimitedFreePath2) Keep(column, candidate Levels) bool {
	if (ChildParent{N: 2}).Keep(column, candidate) {
		return true
	}
	return column.Level(2).Intersects(candidate.Level(2))
}

func (Any) Keep(_, _ Levels) bool {
	return true
}

func (Exact) String() string            { return "exact" }
func (m Parent) String() string         { return "parent" + strconv.Itoa(m.N) }
func (m Child) String() string          { return "child" + strconv.Itoa(m.N) }
func (m ChildParent) String() string    { return "child_parent" + strconv.Itoa(m.N) }
func (LimitedFreePath2) String() string { return "limited_freepath2" }
func (Any) String() string              { return "any" }

var ErrUnknownMode = errors.New("unknown type filter mode")

var distanceMode = regexp.MustCompile(`^(parent|child|child_parent)([1-9][0-9]*)$`)

// ParseMode resolves a mode name such as "exact", "parent1", "child2",
// "child_parent3", "limited_freepath2" or "any".
func ParseMode(name string) (Mode, error) {
	switch name {
	case "exact":
		return Exact{}, nil
	case "limited_freepath2":
		return LimitedFreePath2{}, nil
	case "any":
		return Any{}, nil
	}

	m := distanceMode.FindStringSubmatch(name)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrUnknownMode, name, err)
	}

	switch m[1] {
	case "parent":
		return Parent{N: n}, nil
	case "child":
		return Child{N: n}, nil
	default:
		return ChildParent{N: n}, nil
	}
}

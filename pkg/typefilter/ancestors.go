package typefilter

import (
	"context"
	"fmt"
	"sync"

	"github.com/willbeason/table-linking/pkg/kb"
)

// Set is a set of type ids.
type Set map[string]struct{}

func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Set) Intersects(other Set) bool {
	if len(other) < len(s) {
		s, other = other, s
	}
	for id := range s {
		if _, ok := other[id]; ok {
			return true
		}
	}
	return false
}

// Levels are breadth levels of ancestors: level 0 is a type set itself and
// level k+1 holds the direct parents of every level k type.
type Levels []Set

// Level returns level k, or an empty set beyond the computed depth.
func (l Levels) Level(k int) Set {
	if k < 0 || k >= len(l) {
		return Set{}
	}
	return l[k]
}

// UpTo returns the union of levels 0 through k.
func (l Levels) UpTo(k int) Set {
	result := make(Set)
	for i := 0; i <= k && i < len(l); i++ {
		for id := range l[i] {
			result[id] = struct{}{}
		}
	}
	return result
}

// Parents memoizes an Ontology. It is safe for concurrent use.
type Parents struct {
	ontology kb.Ontology

	mu    sync.RWMutex
	cache map[string][]string
}

func NewParents(ontology kb.Ontology) *Parents {
	return &Parents{ontology: ontology, cache: make(map[string][]string)}
}

func (p *Parents) Get(ctx context.Context, typeID string) ([]string, error) {
	p.mu.RLock()
	parents, ok := p.cache[typeID]
	p.mu.RUnlock()
	if ok {
		return parents, nil
	}

	parents, err := p.ontology.Parents(ctx, typeID)
	if err != nil {
		return nil, fmt.Errorf("getting parents of %q: %w", typeID, err)
	}

	p.mu.Lock()
	p.cache[typeID] = parents
	p.mu.Unlock()
	return parents, nil
}

// Ancestors expands types into depth+1 breadth levels.
func (p *Parents) Ancestors(ctx context.Context, types []string, depth int) (Levels, error) {
	levels := make(Levels, depth+1)
	levels[0] = NewSet(types...)

	for k := 1; k <= depth; k++ {
		next := make(Set)
		for id := range levels[k-1] {
			parents, err := p.Get(ctx, id)
			if err != nil {
				return nil, err
			}
			for _, parent := range parents {
				next[parent] = struct{}{}
			}
		}
		levels[k] = next
	}

	return levels, nil
}

// Package kb defines the read-only knowledge base lookups the linking
// pipeline consumes: entity metadata, popularity, instance-of types, and the
// class hierarchy.
package kb

import (
	"context"
	"errors"
	"fmt"
)

// Entity is a knowledge base entity with the fields the ranking stages need.
type Entity struct {
	ID          string
	Label       string
	Description string
	Aliases     []string
	Popularity  float64
}

// Metadata holds the descriptive fields of an entity.
type Metadata struct {
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Aliases     []string `json:"aliases"`
}

// EntityStore resolves entity fields in batches. Ids unknown to the store are
// absent from the returned maps.
type EntityStore interface {
	Metadata(ctx context.Context, ids []string) (map[string]Metadata, error)
	Popularity(ctx context.Context, ids []string) (map[string]float64, error)
	InstanceOf(ctx context.Context, ids []string) (map[string][]string, error)
}

// Ontology exposes the direct parents of a class.
type Ontology interface {
	Parents(ctx context.Context, typeID string) ([]string, error)
}

var ErrLookup = errors.New("looking up entities")

// Lookup resolves full entities for ids with exactly one metadata call and one
// popularity call. The result is aligned with ids. Unknown ids yield entities
// with only the ID set.
func Lookup(ctx context.Context, store EntityStore, ids []string) ([]Entity, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	metadata, err := store.Metadata(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: metadata: %w", ErrLookup, err)
	}
	popularity, err := store.Popularity(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: popularity: %w", ErrLookup, err)
	}

	result := make([]Entity, len(ids))
	for i, id := range ids {
		m := metadata[id]
		result[i] = Entity{
			ID:          id,
			Label:       m.Label,
			Description: m.Description,
			Aliases:     m.Aliases,
			Popularity:  popularity[id],
		}
	}
	return result, nil
}

// Record is one line of an entity dump: the entity plus its instance-of types
// and, for entities which are also classes, their direct parents.
type Record struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Aliases     []string `json:"aliases"`
	Popularity  float64  `json:"popularity"`
	InstanceOf  []string `json:"instance_of"`
	SubclassOf  []string `json:"subclass_of"`
}

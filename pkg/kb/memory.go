package kb

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/willbeason/bondsmith/jsonio"
)

// MemoryStore is an EntityStore and Ontology held entirely in memory. It is
// safe for concurrent readers once loading is finished.
type MemoryStore struct {
	entities   map[string]Entity
	instanceOf map[string][]string
	parents    map[string][]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entities:   make(map[string]Entity),
		instanceOf: make(map[string][]string),
		parents:    make(map[string][]string),
	}
}

// Add stores a record, replacing any earlier record with the same id.
func (s *MemoryStore) Add(r Record) {
	s.entities[r.ID] = Entity{
		ID:          r.ID,
		Label:       r.Label,
		Description: r.Description,
		Aliases:     r.Aliases,
		Popularity:  r.Popularity,
	}
	if len(r.InstanceOf) > 0 {
		s.instanceOf[r.ID] = r.InstanceOf
	}
	if len(r.SubclassOf) > 0 {
		s.parents[r.ID] = r.SubclassOf
	}
}

// LoadRecords reads a JSONL entity dump into a new MemoryStore.
func LoadRecords(reader io.Reader) (*MemoryStore, error) {
	s := NewMemoryStore()

	records := jsonio.NewReader(reader, func() *Record {
		return &Record{}
	})
	for record, err := range records.Read() {
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading entity records: %w", err)
		}
		s.Add(*record)
	}

	return s, nil
}

func (s *MemoryStore) Metadata(_ context.Context, ids []string) (map[string]Metadata, error) {
	result := make(map[string]Metadata, len(ids))
	for _, id := range ids {
		e, ok := s.entities[id]
		if !ok {
			continue
		}
		result[id] = Metadata{Label: e.Label, Description: e.Description, Aliases: e.Aliases}
	}
	return result, nil
}

func (s *MemoryStore) Popularity(_ context.Context, ids []string) (map[string]float64, error) {
	result := make(map[string]float64, len(ids))
	for _, id := range ids {
		if e, ok := s.entities[id]; ok {
			result[id] = e.Popularity
		}
	}
	return result, nil
}

func (s *MemoryStore) InstanceOf(_ context.Context, ids []string) (map[string][]string, error) {
	result := make(map[string][]string, len(ids))
	for _, id := range ids {
		if types, ok := s.instanceOf[id]; ok {
			result[id] = types
		}
	}
	return result, nil
}

func (s *MemoryStore) Parents(_ context.Context, typeID string) ([]string, error) {
	return s.parents[typeID], nil
}

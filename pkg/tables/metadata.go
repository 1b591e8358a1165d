package tables

import (
	"fmt"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/google/uuid"
)

const (
	comment = "comment"
	runId   = "run_id"
)

// MetadataBuilder is a convenience type to aid readability of code that
// specifies metadata for Arrow types.
type MetadataBuilder struct {
	keys   []string
	values []string
}

func NewMetadataBuilder() *MetadataBuilder {
	return &MetadataBuilder{}
}

func (b *MetadataBuilder) Add(key, value string) *MetadataBuilder {
	b.keys = append(b.keys, key)
	b.values = append(b.values, value)
	return b
}

// Extend adds every key of an existing metadata.
func (b *MetadataBuilder) Extend(md arrow.Metadata) *MetadataBuilder {
	b.keys = append(b.keys, md.Keys()...)
	b.values = append(b.values, md.Values()...)
	return b
}

// Build constructs and returns the arrow.Metadata.
func (b *MetadataBuilder) Build() arrow.Metadata {
	return arrow.NewMetadata(b.keys, b.values)
}

// BuildReference constructs and returns the arrow.Metadata result as a
// reference.
func (b *MetadataBuilder) BuildReference() *arrow.Metadata {
	result := b.Build()
	return &result
}

// WithRunID returns schema stamped with the id of the run that wrote it.
func WithRunID(schema *arrow.Schema, id uuid.UUID) *arrow.Schema {
	md := NewMetadataBuilder().Extend(schema.Metadata()).Add(runId, id.String()).BuildReference()
	return arrow.NewSchema(schema.Fields(), md)
}

// RunID returns the run id a schema was stamped with.
func RunID(schema *arrow.Schema) (uuid.UUID, error) {
	md := schema.Metadata()
	i := md.FindKey(runId)
	if i < 0 {
		return uuid.Nil, fmt.Errorf("%w: no %s", ErrSchema, runId)
	}
	id, err := uuid.Parse(md.Values()[i])
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: parsing %s: %w", ErrSchema, runId, err)
	}
	return id, nil
}

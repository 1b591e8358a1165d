package typefilter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/willbeason/table-linking/pkg/candidates"
	"github.com/willbeason/table-linking/pkg/cellindex"
	"github.com/willbeason/table-linking/pkg/kb"
	"github.com/willbeason/table-linking/pkg/metrics"
	"github.com/willbeason/table-linking/pkg/ned"
	"github.com/willbeason/table-linking/pkg/workers"
	"go.uber.org/zap"
)

var (
	ErrNoMode       = errors.New("no type filter mode")
	ErrMissingTypes = errors.New("entity column has no gold types")
	ErrNoExample    = errors.New("no example for candidate table")
)

// Filter keeps the candidates whose types are compatible with the gold types
// of their column.
//
// A column without gold types has an empty type set, so every mode except
// Any rejects all of its candidates. Use WithRequireTypes to reject such
// input up front instead.
type Filter struct {
	mode         Mode
	store        kb.EntityStore
	parents      *Parents
	parallelism  int
	requireTypes bool
	logger       *zap.Logger
}

type Option func(*Filter)

// WithParallelism bounds the number of columns filtered concurrently.
func WithParallelism(n int) Option {
	return func(f *Filter) {
		f.parallelism = n
	}
}

// WithRequireTypes makes Apply fail before any work if an entity column has
// no gold types.
func WithRequireTypes() Option {
	return func(f *Filter) {
		f.requireTypes = true
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(f *Filter) {
		f.logger = logger
	}
}

// New creates a Filter. Modes are resolved here, so a Filter never fails on
// its configuration mid-batch.
func New(mode Mode, store kb.EntityStore, ontology kb.Ontology, opts ...Option) (*Filter, error) {
	if mode == nil {
		return nil, ErrNoMode
	}
	if mode.Depth() < 0 {
		return nil, fmt.Errorf("%w: %s has negative depth", ErrUnknownMode, mode)
	}

	f := &Filter{
		mode:        mode,
		store:       store,
		parents:     NewParents(ontology),
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = zap.NewNop()
	}
	return f, nil
}

func (f *Filter) Mode() Mode {
	return f.mode
}

// shard is one column of one table.
type shard struct {
	example *ned.Example
	column  *cellindex.Column
}

// Apply returns a new dataset holding the compatible candidates of every
// cell. The input dataset is not modified.
func (f *Filter) Apply(ctx context.Context, examples []*ned.Example, d *candidates.Dataset) (*candidates.Dataset, error) {
	if _, ok := f.mode.(Any); ok {
		return d.Filter(func(int) bool { return true })
	}

	byTable := make(map[string]*ned.Example, len(examples))
	for _, e := range examples {
		byTable[e.Table.ID] = e
	}

	var shards []shard
	for i := range d.Index.Tables {
		t := &d.Index.Tables[i]
		example, ok := byTable[t.ID]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNoExample, t.ID)
		}
		for j := range t.Columns {
			c := &t.Columns[j]
			if f.requireTypes && len(example.ColumnTypes(c.Column)) == 0 {
				return nil, fmt.Errorf("%w: table %q column %d", ErrMissingTypes, t.ID, c.Column)
			}
			shards = append(shards, shard{example: example, column: c})
		}
	}

	start := time.Now()
	instanceOf, err := f.store.InstanceOf(ctx, distinct(d.ID))
	if err != nil {
		return nil, fmt.Errorf("looking up candidate types: %w", err)
	}

	kept, err := workers.Map(ctx, shards, f.parallelism, func(ctx context.Context, _ int, s shard) ([]bool, error) {
		return f.filterColumn(ctx, s, d, instanceOf)
	})
	if err != nil {
		return nil, err
	}

	keep := workers.Concat(kept)
	result, err := d.Filter(func(i int) bool { return keep[i] })
	if err != nil {
		return nil, err
	}

	removed := d.Len() - result.Len()
	metrics.RecordFiltered(f.mode.String(), removed)
	f.logger.Debug("filtered candidates by type",
		zap.String("mode", f.mode.String()),
		zap.Int("columns", len(shards)),
		zap.Int("kept", result.Len()),
		zap.Int("removed", removed),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

// filterColumn decides every candidate of one column. The result covers the
// column's range of d.
func (f *Filter) filterColumn(ctx context.Context, s shard, d *candidates.Dataset, instanceOf map[string][]string) ([]bool, error) {
	depth := f.mode.Depth()

	var goldTypes []string
	for _, t := range s.example.ColumnTypes(s.column.Column) {
		goldTypes = append(goldTypes, t.ID)
	}
	columnLevels, err := f.parents.Ancestors(ctx, goldTypes, depth)
	if err != nil {
		return nil, err
	}

	result := make([]bool, s.column.Len())
	candidateLevels := make(map[string]Levels)
	for i := s.column.Start; i < s.column.End; i++ {
		id := d.ID[i]
		levels, ok := candidateLevels[id]
		if !ok {
			levels, err = f.parents.Ancestors(ctx, instanceOf[id], depth)
			if err != nil {
				return nil, err
			}
			candidateLevels[id] = levels
		}
		result[i-s.column.Start] = f.mode.Keep(columnLevels, levels)
	}
	return result, nil
}

func distinct(ids []string) []string {
	var result []string
	seen := make(map[string]bool)
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			result = append(result, id)
		}
	}
	return result
}

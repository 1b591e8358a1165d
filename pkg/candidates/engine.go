package candidates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/willbeason/table-linking/pkg/cache"
	"github.com/willbeason/table-linking/pkg/metrics"
	"github.com/willbeason/table-linking/pkg/ned"
	"github.com/willbeason/table-linking/pkg/search"
	"github.com/willbeason/table-linking/pkg/workers"
	"go.uber.org/zap"
)

var ErrInvalidColumn = errors.New("invalid entity column")

// QueryEngine resolves the distinct cell texts of a batch against a search
// backend, optionally through a cache.
type QueryEngine struct {
	searcher    search.Searcher
	cache       cache.Cache
	cacheName   string
	batchSize   int
	parallelism int
	logger      *zap.Logger
}

type EngineOption func(*QueryEngine)

// WithCache reads and writes results through c. name labels cache metrics.
func WithCache(c cache.Cache, name string) EngineOption {
	return func(e *QueryEngine) {
		e.cache = c
		e.cacheName = name
	}
}

// WithBatchSize sets how many queries go into one backend call. Zero or less
// sends every uncached query in one call.
func WithBatchSize(n int) EngineOption {
	return func(e *QueryEngine) {
		e.batchSize = n
	}
}

// WithParallelism bounds the number of backend calls in flight.
func WithParallelism(n int) EngineOption {
	return func(e *QueryEngine) {
		e.parallelism = n
	}
}

func WithEngineLogger(logger *zap.Logger) EngineOption {
	return func(e *QueryEngine) {
		e.logger = logger
	}
}

func NewQueryEngine(searcher search.Searcher, opts ...EngineOption) *QueryEngine {
	e := &QueryEngine{
		searcher:    searcher,
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

// DistinctQueries returns every distinct cell text of the entity columns in
// first-seen order: examples, then columns as listed, then rows. If
// entityColumns is nil, each example's own EntityColumns are used.
func DistinctQueries(examples []*ned.Example, entityColumns [][]int) ([]string, error) {
	if entityColumns != nil && len(entityColumns) != len(examples) {
		return nil, fmt.Errorf("%w: %d column lists for %d examples", ErrInvalidColumn, len(entityColumns), len(examples))
	}

	var result []string
	seen := make(map[string]bool)
	for i, example := range examples {
		for _, column := range columnsOf(example, entityColumns, i) {
			c, ok := example.Table.Column(column)
			if !ok {
				return nil, fmt.Errorf("%w: table %q has no column %d", ErrInvalidColumn, example.Table.ID, column)
			}
			for _, text := range c.Values {
				if seen[text] {
					continue
				}
				seen[text] = true
				result = append(result, text)
			}
		}
	}
	return result, nil
}

func columnsOf(example *ned.Example, entityColumns [][]int, i int) []int {
	if entityColumns == nil {
		return example.EntityColumns
	}
	return entityColumns[i]
}

// Query returns the ranked candidates of every distinct cell text of the
// entity columns. Each list is ordered by descending score, then ascending id.
// Any backend or cache error fails the whole call.
func (e *QueryEngine) Query(ctx context.Context, examples []*ned.Example, entityColumns [][]int) (map[string][]search.Match, error) {
	queries, err := DistinctQueries(examples, entityColumns)
	if err != nil {
		return nil, err
	}
	return e.Resolve(ctx, queries)
}

// Resolve returns the ranked candidates of distinct queries.
func (e *QueryEngine) Resolve(ctx context.Context, queries []string) (map[string][]search.Match, error) {
	result := make(map[string][]search.Match, len(queries))

	toQuery := queries
	if e.cache != nil {
		toQuery = nil
		for _, q := range queries {
			matches, found, err := e.cache.Get(ctx, q)
			if err != nil {
				return nil, fmt.Errorf("reading query cache: %w", err)
			}
			if found {
				result[q] = matches
			} else {
				toQuery = append(toQuery, q)
			}
		}
		metrics.RecordCacheHits(e.cacheName, len(queries)-len(toQuery))
		metrics.RecordCacheMisses(e.cacheName, len(toQuery))
	}

	batches := workers.Chunk(toQuery, e.batchSize)
	start := time.Now()
	resolved, err := workers.Map(ctx, batches, e.parallelism, func(ctx context.Context, _ int, batch []string) (map[string][]search.Match, error) {
		return e.queryBatch(ctx, batch)
	})
	if err != nil {
		return nil, err
	}

	for _, batchResult := range resolved {
		for q, matches := range batchResult {
			result[q] = matches
		}
	}

	e.logger.Debug("resolved candidate queries",
		zap.Int("queries", len(queries)),
		zap.Int("cached", len(queries)-len(toQuery)),
		zap.Int("batches", len(batches)),
		zap.Duration("duration", time.Since(start)))

	return result, nil
}

// queryBatch calls the backend once and writes the sorted results through to
// the cache.
func (e *QueryEngine) queryBatch(ctx context.Context, batch []string) (map[string][]search.Match, error) {
	raw, err := e.searcher.BatchQuery(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("querying search backend: %w", err)
	}
	metrics.RecordSearchBatch(len(batch))

	err = search.CheckTotal(batch, raw)
	if err != nil {
		return nil, err
	}

	result := make(map[string][]search.Match, len(batch))
	for _, q := range batch {
		sorted := search.Sorted(raw[q])
		result[q] = sorted

		if e.cache != nil {
			err = e.cache.Set(ctx, q, sorted)
			if err != nil {
				return nil, fmt.Errorf("writing query cache: %w", err)
			}
		}
	}
	return result, nil
}

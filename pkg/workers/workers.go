// Package workers runs independent tasks over read-only shards and collects
// their results in submission order.
package workers

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Map calls fn for every item with at most limit calls in flight, and returns
// the results in the order of items. A limit of zero or less means no limit.
// The first error cancels the context passed to the remaining calls and is
// returned; no partial results are returned with it.
func Map[T, R any](ctx context.Context, items []T, limit int, fn func(ctx context.Context, i int, item T) (R, error)) ([]R, error) {
	results := make([]R, len(items))

	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := fn(ctx, i, item)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	err := g.Wait()
	if err != nil {
		return nil, err
	}
	return results, nil
}

// Chunk splits items into consecutive shards of at most size items. A size of
// zero or less puts every item into one shard. Empty input yields no shards.
func Chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 || size >= len(items) {
		return [][]T{items}
	}

	result := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		result = append(result, items[start:end:end])
	}
	return result
}

// Concat joins shard results back into one slice, preserving order.
func Concat[T any](shards [][]T) []T {
	n := 0
	for _, s := range shards {
		n += len(s)
	}
	result := make([]T, 0, n)
	for _, s := range shards {
		result = append(result, s...)
	}
	return result
}

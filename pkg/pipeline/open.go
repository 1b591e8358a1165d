package pipeline

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/willbeason/table-linking/pkg/cache"
	"github.com/willbeason/table-linking/pkg/candidates"
	"github.com/willbeason/table-linking/pkg/config"
	"github.com/willbeason/table-linking/pkg/features"
	"github.com/willbeason/table-linking/pkg/kb"
	"github.com/willbeason/table-linking/pkg/search"
	"github.com/willbeason/table-linking/pkg/typefilter"
	"go.uber.org/zap"
)

// Open builds a Pipeline over the sqlite knowledge base and search index of
// cfg, with the configured cache, type filter, feature extractor and top-k
// selection. The caller must Close it.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := kb.OpenSQLite(ctx, cfg.KBPath)
	if err != nil {
		return nil, fmt.Errorf("opening knowledge base: %w", err)
	}
	closers := []func() error{store.Close}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
	}

	engineOpts := []candidates.EngineOption{
		candidates.WithBatchSize(cfg.SearchBatchSize),
		candidates.WithParallelism(cfg.Parallelism),
		candidates.WithEngineLogger(logger.Named("query")),
	}
	switch cfg.CacheKind {
	case config.CacheMemory:
		engineOpts = append(engineOpts, candidates.WithCache(
			cache.NewMemory(cfg.CacheTTL, uint64(cfg.CacheCapacity)), config.CacheMemory))
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		closers = append(closers, client.Close)
		err = client.Ping(ctx).Err()
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		engineOpts = append(engineOpts, candidates.WithCache(
			cache.NewRedis(client, cfg.RedisPrefix, cfg.CacheTTL), config.CacheRedis))
	}
	engine := candidates.NewQueryEngine(search.NewSQLiteIndex(store.DB(), cfg.SearchLimit), engineOpts...)

	extractor := features.NewExtractor(
		features.WithBatchSize(cfg.FeatureBatchSize),
		features.WithParallelism(cfg.Parallelism),
		features.WithThreshold(cfg.FeatureThreshold),
		features.WithLowerBound(cfg.FeatureLowerBound),
		features.WithLogger(logger.Named("features")),
	)

	opts := []Option{
		WithTopK(cfg.TopK, cfg.RemoveNIL),
		WithTypes(cfg.Types, store),
		WithLogger(logger),
	}
	if cfg.Filter != nil {
		filterOpts := []typefilter.Option{
			typefilter.WithParallelism(cfg.Parallelism),
			typefilter.WithLogger(logger.Named("filter")),
		}
		if cfg.FilterRequireTypes {
			filterOpts = append(filterOpts, typefilter.WithRequireTypes())
		}
		filter, err := typefilter.New(cfg.Filter, store, store, filterOpts...)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("creating type filter: %w", err)
		}
		opts = append(opts, WithFilter(filter))
	}

	p := New(store, engine, extractor, opts...)
	p.closers = closers
	return p, nil
}

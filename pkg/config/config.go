// Package config loads the settings of a linking run from an optional YAML
// file, with TL_* environment variables taking precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/willbeason/table-linking/pkg/cache"
	"github.com/willbeason/table-linking/pkg/features"
	"github.com/willbeason/table-linking/pkg/ranking"
	"github.com/willbeason/table-linking/pkg/search"
	"github.com/willbeason/table-linking/pkg/typefilter"
)

// Cache kinds.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds every setting of a linking run.
type Config struct {
	// KBPath is the sqlite knowledge base built by index-entities. It also
	// holds the full-text entity index.
	KBPath string

	SearchLimit     int
	SearchBatchSize int

	CacheKind     string
	CacheTTL      time.Duration
	CacheCapacity int
	RedisAddr     string
	RedisDB       int
	RedisPrefix   string

	// FilterMode is empty when no type filter runs.
	FilterMode         string
	Filter             typefilter.Mode
	FilterRequireTypes bool

	// TypesMode extends the candidate types written with the ranking
	// dataset. Empty means "no".
	TypesMode string
	Types     ranking.TypesMode

	FeatureBatchSize  int
	FeatureThreshold  float64
	FeatureLowerBound float64

	Parallelism int

	// TopK keeps the best candidates of every cell after heuristic scoring.
	// Zero keeps every candidate.
	TopK      int
	RemoveNIL bool
}

// Configuration validation errors.
var (
	ErrMissingKBPath     = errors.New("TL_KB_PATH is required")
	ErrUnknownCacheKind  = errors.New("TL_CACHE_KIND must be none, memory or redis")
	ErrMissingRedisAddr  = errors.New("TL_REDIS_ADDR is required for the redis cache")
	ErrInvalidValue      = errors.New("invalid value")
	ErrNegativeValue     = errors.New("value must not be negative")
	ErrThresholdRange    = errors.New("TL_FEATURE_THRESHOLD must be within [0, 1]")
	ErrRemoveNILWithoutK = errors.New("TL_REMOVE_NIL requires TL_TOPK")
)

const (
	DefaultSearchBatchSize = 256
	DefaultCacheKind       = CacheMemory
	DefaultCacheCapacity   = 100_000
	DefaultParallelism     = 4
)

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("loading config file %s: %w", configFilePath, err)}
		}
	}

	var errs []error
	intValue := func(envKey, koanfKey string, defaultVal int) int {
		v, err := getEnvIntOrDefault(envKey, k, koanfKey, defaultVal)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	floatValue := func(envKey, koanfKey string, defaultVal float64) float64 {
		v, err := getEnvFloatOrDefault(envKey, k, koanfKey, defaultVal)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	boolValue := func(envKey, koanfKey string) bool {
		v, err := getEnvBool(envKey, k, koanfKey)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	ttl, err := getEnvDurationOrDefault("TL_CACHE_TTL", k, "cache.ttl", cache.DefaultTTL)
	if err != nil {
		errs = append(errs, err)
	}

	cfg := &Config{
		KBPath: getEnvOrKoanf("TL_KB_PATH", k, "kb.path"),

		SearchLimit:     intValue("TL_SEARCH_LIMIT", "search.limit", search.DefaultLimit),
		SearchBatchSize: intValue("TL_SEARCH_BATCH_SIZE", "search.batch_size", DefaultSearchBatchSize),

		CacheKind:     getEnvOrDefault("TL_CACHE_KIND", k.String("cache.kind"), DefaultCacheKind),
		CacheTTL:      ttl,
		CacheCapacity: intValue("TL_CACHE_CAPACITY", "cache.capacity", DefaultCacheCapacity),
		RedisAddr:     getEnvOrKoanf("TL_REDIS_ADDR", k, "cache.redis.addr"),
		RedisDB:       intValue("TL_REDIS_DB", "cache.redis.db", 0),
		RedisPrefix:   getEnvOrDefault("TL_REDIS_PREFIX", k.String("cache.redis.prefix"), cache.DefaultPrefix),

		FilterMode:         getEnvOrKoanf("TL_FILTER_MODE", k, "filter.mode"),
		FilterRequireTypes: boolValue("TL_FILTER_REQUIRE_TYPES", "filter.require_types"),

		TypesMode: getEnvOrKoanf("TL_TYPES_MODE", k, "types.mode"),

		FeatureBatchSize:  intValue("TL_FEATURE_BATCH_SIZE", "features.batch_size", features.DefaultBatchSize),
		FeatureThreshold:  floatValue("TL_FEATURE_THRESHOLD", "features.threshold", features.DefaultThreshold),
		FeatureLowerBound: floatValue("TL_FEATURE_LOWER_BOUND", "features.lower_bound", 0),

		Parallelism: intValue("TL_WORKERS", "workers", DefaultParallelism),

		TopK:      intValue("TL_TOPK", "topk.k", 0),
		RemoveNIL: boolValue("TL_REMOVE_NIL", "topk.remove_nil"),
	}

	return cfg, append(errs, cfg.Validate()...)
}

// Validate checks the configuration and resolves the filter and types modes.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.KBPath == "" {
		errs = append(errs, ErrMissingKBPath)
	}

	switch c.CacheKind {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.RedisAddr == "" {
			errs = append(errs, ErrMissingRedisAddr)
		}
	default:
		errs = append(errs, fmt.Errorf("%w: got %q", ErrUnknownCacheKind, c.CacheKind))
	}

	c.Filter = nil
	if c.FilterMode != "" {
		mode, err := typefilter.ParseMode(c.FilterMode)
		if err != nil {
			errs = append(errs, fmt.Errorf("TL_FILTER_MODE: %w", err))
		}
		c.Filter = mode
	}

	types, err := ranking.ParseTypesMode(c.TypesMode)
	if err != nil {
		errs = append(errs, fmt.Errorf("TL_TYPES_MODE: %w", err))
	}
	c.Types = types

	for name, v := range map[string]int{
		"TL_SEARCH_LIMIT":       c.SearchLimit,
		"TL_SEARCH_BATCH_SIZE":  c.SearchBatchSize,
		"TL_CACHE_CAPACITY":     c.CacheCapacity,
		"TL_FEATURE_BATCH_SIZE": c.FeatureBatchSize,
		"TL_WORKERS":            c.Parallelism,
		"TL_TOPK":               c.TopK,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s: %w: got %d", name, ErrNegativeValue, v))
		}
	}

	if c.FeatureThreshold < 0 || c.FeatureThreshold > 1 {
		errs = append(errs, fmt.Errorf("%w: got %g", ErrThresholdRange, c.FeatureThreshold))
	}
	if c.RemoveNIL && c.TopK == 0 {
		errs = append(errs, ErrRemoveNILWithoutK)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"kb_path":           c.KBPath,
		"search_limit":      strconv.Itoa(c.SearchLimit),
		"search_batch_size": strconv.Itoa(c.SearchBatchSize),
		"cache_kind":        c.CacheKind,
		"cache_ttl":         c.CacheTTL.String(),
		"redis_addr":        c.RedisAddr,
		"filter_mode":       c.FilterMode,
		"types_mode":        c.Types.String(),
		"feature_threshold": strconv.FormatFloat(c.FeatureThreshold, 'g', -1, 64),
		"workers":           strconv.Itoa(c.Parallelism),
		"topk":              strconv.Itoa(c.TopK),
	}
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Unlike a zero from the environment, a zero in the file is kept only if the key exists.
func getEnvIntOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidValue)
		}
		return i, nil
	}
	if k.Exists(koanfKey) {
		return k.Int(koanfKey), nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
func getEnvFloatOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, ErrInvalidValue)
		}
		return f, nil
	}
	if k.Exists(koanfKey) {
		return k.Float64(koanfKey), nil
	}
	return defaultVal, nil
}

func getEnvDurationOrDefault(envKey string, k *koanf.Koanf, koanfKey string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(envKey)
	if val == "" && k.Exists(koanfKey) {
		val = k.String(koanfKey)
	}
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", envKey, ErrInvalidValue)
	}
	return d, nil
}

// getEnvBool returns the environment variable as a bool if set, otherwise the koanf value.
func getEnvBool(envKey string, k *koanf.Koanf, koanfKey string) (bool, error) {
	val := os.Getenv(envKey)
	if val == "" {
		return k.Bool(koanfKey), nil
	}
	switch strings.ToLower(val) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("%s must be a boolean: %w", envKey, ErrInvalidValue)
}

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/willbeason/table-linking/pkg/cache"
	"github.com/willbeason/table-linking/pkg/ranking"
	"github.com/willbeason/table-linking/pkg/search"
	"github.com/willbeason/table-linking/pkg/typefilter"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TL_KB_PATH", "kb.sqlite")

	cfg, errs := Load("")
	if len(errs) != 0 {
		t.Fatalf("got errors %v, want none", errs)
	}

	if cfg.SearchLimit != search.DefaultLimit {
		t.Errorf("got search limit %d, want %d", cfg.SearchLimit, search.DefaultLimit)
	}
	if cfg.CacheKind != CacheMemory || cfg.CacheTTL != cache.DefaultTTL {
		t.Errorf("got cache %s with ttl %v, want %s with ttl %v", cfg.CacheKind, cfg.CacheTTL, CacheMemory, cache.DefaultTTL)
	}
	if cfg.RedisPrefix != cache.DefaultPrefix {
		t.Errorf("got redis prefix %q, want %q", cfg.RedisPrefix, cache.DefaultPrefix)
	}
	if cfg.Filter != nil {
		t.Errorf("got filter %v, want none", cfg.Filter)
	}
	if cfg.Types != ranking.TypesNo {
		t.Errorf("got types mode %v, want %v", cfg.Types, ranking.TypesNo)
	}
	if cfg.Parallelism != DefaultParallelism {
		t.Errorf("got %d workers, want %d", cfg.Parallelism, DefaultParallelism)
	}
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
kb:
  path: /data/wikidata.sqlite
search:
  limit: 50
  batch_size: 0
cache:
  kind: redis
  ttl: 1h
  redis:
    addr: localhost:6379
    db: 2
filter:
  mode: child_parent2
types:
  mode: child_parent2prime
features:
  threshold: 0.6
workers: 8
topk:
  k: 100
  remove_nil: true
`)

	cfg, errs := Load(path)
	if len(errs) != 0 {
		t.Fatalf("got errors %v, want none", errs)
	}

	if cfg.KBPath != "/data/wikidata.sqlite" {
		t.Errorf("got kb path %q", cfg.KBPath)
	}
	if cfg.SearchLimit != 50 || cfg.SearchBatchSize != 0 {
		t.Errorf("got search limit %d batch size %d, want 50 and 0", cfg.SearchLimit, cfg.SearchBatchSize)
	}
	if cfg.CacheKind != CacheRedis || cfg.CacheTTL != time.Hour || cfg.RedisAddr != "localhost:6379" || cfg.RedisDB != 2 {
		t.Errorf("got cache %+v", cfg)
	}
	if cfg.Filter != (typefilter.ChildParent{N: 2}) {
		t.Errorf("got filter %v, want child_parent2", cfg.Filter)
	}
	if cfg.Types != ranking.TypesChildParent2Prime {
		t.Errorf("got types mode %v, want %v", cfg.Types, ranking.TypesChildParent2Prime)
	}
	if cfg.FeatureThreshold != 0.6 || cfg.Parallelism != 8 || cfg.TopK != 100 || !cfg.RemoveNIL {
		t.Errorf("got %+v", cfg)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
kb:
  path: file.sqlite
filter:
  mode: exact
`)
	t.Setenv("TL_KB_PATH", "env.sqlite")
	t.Setenv("TL_FILTER_MODE", "parent1")
	t.Setenv("TL_CACHE_KIND", "none")

	cfg, errs := Load(path)
	if len(errs) != 0 {
		t.Fatalf("got errors %v, want none", errs)
	}
	if cfg.KBPath != "env.sqlite" || cfg.CacheKind != CacheNone {
		t.Errorf("got kb path %q cache %q, want env values", cfg.KBPath, cfg.CacheKind)
	}
	if cfg.Filter != (typefilter.Parent{N: 1}) {
		t.Errorf("got filter %v, want parent1", cfg.Filter)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr error
	}{
		{
			name:    "missing kb path",
			envVars: map[string]string{},
			wantErr: ErrMissingKBPath,
		},
		{
			name:    "unknown filter mode",
			envVars: map[string]string{"TL_FILTER_MODE": "sibling1"},
			wantErr: typefilter.ErrUnknownMode,
		},
		{
			name:    "unknown types mode",
			envVars: map[string]string{"TL_TYPES_MODE": "parent3"},
			wantErr: ranking.ErrUnknownTypesMode,
		},
		{
			name:    "unknown cache kind",
			envVars: map[string]string{"TL_CACHE_KIND": "disk"},
			wantErr: ErrUnknownCacheKind,
		},
		{
			name:    "redis without address",
			envVars: map[string]string{"TL_CACHE_KIND": "redis"},
			wantErr: ErrMissingRedisAddr,
		},
		{
			name:    "bad integer",
			envVars: map[string]string{"TL_WORKERS": "many"},
			wantErr: ErrInvalidValue,
		},
		{
			name:    "bad duration",
			envVars: map[string]string{"TL_CACHE_TTL": "forever"},
			wantErr: ErrInvalidValue,
		},
		{
			name:    "negative top k",
			envVars: map[string]string{"TL_TOPK": "-1"},
			wantErr: ErrNegativeValue,
		},
		{
			name:    "threshold out of range",
			envVars: map[string]string{"TL_FEATURE_THRESHOLD": "1.5"},
			wantErr: ErrThresholdRange,
		},
		{
			name:    "remove nil without top k",
			envVars: map[string]string{"TL_REMOVE_NIL": "yes"},
			wantErr: ErrRemoveNILWithoutK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantErr != ErrMissingKBPath {
				t.Setenv("TL_KB_PATH", "kb.sqlite")
			}
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			_, errs := Load("")
			if len(errs) != 1 {
				t.Fatalf("got errors %v, want exactly one", errs)
			}
			if !errors.Is(errs[0], tt.wantErr) {
				t.Errorf("got error %v, want %v", errs[0], tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, errs := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if cfg != nil || len(errs) != 1 {
		t.Errorf("got config %v and errors %v, want one load error", cfg, errs)
	}
}

package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
	"github.com/willbeason/table-linking/pkg/search"
)

// DefaultPrefix namespaces query keys in a shared redis database.
const DefaultPrefix = "tl:query:"

var ErrRedis = errors.New("redis query cache")

// Redis is a Cache shared between processes. Values are JSON encoded match
// lists.
type Redis struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedis wraps client. An empty prefix uses DefaultPrefix; a zero ttl keeps
// entries until evicted by the server.
func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, query string) ([]search.Match, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+query).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, fmt.Errorf("%w: getting %q: %w", ErrRedis, query, err)
	}

	var matches []search.Match
	err = sonic.Unmarshal(data, &matches)
	if err != nil {
		return nil, false, fmt.Errorf("%w: decoding %q: %w", ErrRedis, query, err)
	}
	if matches == nil {
		matches = []search.Match{}
	}
	return matches, true, nil
}

func (r *Redis) Set(ctx context.Context, query string, matches []search.Match) error {
	if matches == nil {
		matches = []search.Match{}
	}
	data, err := sonic.Marshal(matches)
	if err != nil {
		return fmt.Errorf("%w: encoding %q: %w", ErrRedis, query, err)
	}

	err = r.client.Set(ctx, r.prefix+query, data, r.ttl).Err()
	if err != nil {
		return fmt.Errorf("%w: setting %q: %w", ErrRedis, query, err)
	}
	return nil
}

package redis

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/robertotorres1222-beep/verigrade-bookkeeping-platform-sub012/shared/metrics"
)

// ViewCache is a generic JSON-backed Redis cache for read model projections.
// Bind it to a specific view type T; each instance holds a Redis client and an
// optional TTL (pass 0 for keys that should not expire).
type ViewCache[T any] struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewViewCache[T any](client *goredis.Client, ttl time.Duration) *ViewCache[T] {
	return &ViewCache[T]{client: client, ttl: ttl}
}

// Get returns (nil, false) on a miss, a Redis error or an entry that no
// longer decodes into T.
func (c *ViewCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	v, ok := c.get(ctx, key)
	metrics.RecordCacheLookup(viewName(key), ok)
	return v, ok
}

func (c *ViewCache[T]) get(ctx context.Context, key string) (*T, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			zap.L().Warn("view cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		zap.L().Warn("view cache entry undecodable, evicting", zap.String("key", key), zap.Error(err))
		c.Delete(ctx, key)
		return nil, false
	}
	return &v, true
}

// GetOrLoad serves key from the cache and falls back to load on a miss,
// caching what load returns.
func (c *ViewCache[T]) GetOrLoad(ctx context.Context, key string, load func(context.Context) (*T, error)) (*T, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}
	v, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.Set(ctx, key, v)
	return v, nil
}

func viewName(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// Set marshals value and stores it under key. A failed cache write is logged,
// not returned: PostgreSQL stays the source of truth.
func (c *ViewCache[T]) Set(ctx context.Context, key string, value *T) {
	data, err := json.Marshal(value)
	if err != nil {
		zap.L().Warn("view cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		zap.L().Warn("view cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *ViewCache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		zap.L().Warn("view cache delete failed", zap.String("key", key), zap.Error(err))
	}
}

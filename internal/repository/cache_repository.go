package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appErrors "github.com/noah-isme/course-registration/pkg/errors"
)

// RedisCache stores JSON encoded report payloads in Redis.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCache constructs a Redis backed cache.
func NewRedisCache(client *redis.Client, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, logger: logger}
}

// Get retrieves and unmarshals the cached value into the provided destination.
func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	if r.client == nil {
		return appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return appErrors.ErrCacheMiss
		}
		return fmt.Errorf("redis get %s: %w", key, err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// Set marshals the provided value and stores it with the given TTL.
func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	if err := r.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// DeleteByPattern removes cached entries matching the provided glob pattern.
func (r *RedisCache) DeleteByPattern(ctx context.Context, pattern string) error {
	if r.client == nil {
		return nil
	}

	iter := r.client.Scan(ctx, 0, pattern, 0).Iterator()
	deleted := 0
	for iter.Next(ctx) {
		key := iter.Val()
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", key, err)
		}
		deleted++
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan pattern %s: %w", pattern, err)
	}

	r.logger.Debug("cache invalidated", zap.String("pattern", pattern), zap.Int("keys", deleted))
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *RedisCache) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}

// MemoryCache keeps report payloads in process. Values are stored JSON encoded
// so callers get the same copy semantics as with Redis.
type MemoryCache struct {
	cache *gocache.Cache
}

// NewMemoryCache constructs an in-process cache with the given default TTL.
func NewMemoryCache(defaultTTL time.Duration) *MemoryCache {
	cleanup := 2 * defaultTTL
	if cleanup <= 0 {
		cleanup = 10 * time.Minute
	}
	return &MemoryCache{cache: gocache.New(defaultTTL, cleanup)}
}

// Get unmarshals the cached payload into dest.
func (m *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	value, found := m.cache.Get(key)
	if !found {
		return appErrors.ErrCacheMiss
	}
	raw, ok := value.([]byte)
	if !ok {
		m.cache.Delete(key)
		return appErrors.ErrCacheMiss
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return nil
}

// Set stores the JSON encoding of value.
func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.cache.Set(key, payload, ttl)
	return nil
}

// DeleteByPattern drops every key matching the glob pattern.
func (m *MemoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	for key := range m.cache.Items() {
		matched, err := path.Match(pattern, key)
		if err != nil {
			return fmt.Errorf("match cache pattern %s: %w", pattern, err)
		}
		if matched {
			m.cache.Delete(key)
		}
	}
	return nil
}

// ItemCount reports how many entries are currently cached.
func (m *MemoryCache) ItemCount() int {
	return m.cache.ItemCount()
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
)

// KeyPrefix is prepended to every Redis key written by RedisStore.
const KeyPrefix = "wellness"

// RedisStore is a Store backed by Redis, shared between processes.
type RedisStore[T any] struct {
	redis     redis.Cmdable
	namespace string
	maxTTL    time.Duration
	clock     clockwork.Clock
}

// NewRedisStore creates a store writing under wellness:<namespace>:.
// Redis expires entries after maxTTL; readers still apply their own TTL.
// A nil clock uses wall time.
func NewRedisStore[T any](redisClient redis.Cmdable, namespace string, maxTTL time.Duration, clock clockwork.Clock) *RedisStore[T] {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RedisStore[T]{
		redis:     redisClient,
		namespace: namespace,
		maxTTL:    maxTTL,
		clock:     clock,
	}
}

func (s *RedisStore[T]) redisKey(key string) string {
	return fmt.Sprintf("%s:%s:%s", KeyPrefix, s.namespace, key)
}

// Get implements Store.
func (s *RedisStore[T]) Get(ctx context.Context, key string, ttl time.Duration) (*Entry[T], error) {
	data, err := s.redis.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			CacheMisses.WithLabelValues("redis").Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	if !entry.Fresh(s.clock.Now(), ttl) {
		CacheMisses.WithLabelValues("redis").Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues("redis").Inc()
	return &entry, nil
}

// Put implements Store.
func (s *RedisStore[T]) Put(ctx context.Context, key string, value T) error {
	data, err := json.Marshal(Entry[T]{Value: value, Timestamp: s.clock.Now()})
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := s.redis.Set(ctx, s.redisKey(key), data, s.maxTTL).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Invalidate implements Store. Without keys it scans and deletes the
// whole namespace.
func (s *RedisStore[T]) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) > 0 {
		redisKeys := make([]string, len(keys))
		for i, key := range keys {
			redisKeys[i] = s.redisKey(key)
		}
		if err := s.redis.Del(ctx, redisKeys...).Err(); err != nil {
			CacheErrors.WithLabelValues("delete").Inc()
			return fmt.Errorf("redis del: %w", err)
		}
		return nil
	}

	pattern := s.redisKey("*")
	var cursor uint64
	for {
		batch, next, err := s.redis.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			CacheErrors.WithLabelValues("delete").Inc()
			return fmt.Errorf("redis scan: %w", err)
		}
		if len(batch) > 0 {
			if err := s.redis.Del(ctx, batch...).Err(); err != nil {
				CacheErrors.WithLabelValues("delete").Inc()
				return fmt.Errorf("redis del: %w", err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

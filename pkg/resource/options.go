package resource

import (
	"time"

	"github.com/Sternrassler/wellness-sync/pkg/cache"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultListTTL is the cache TTL of list resources.
const DefaultListTTL = time.Minute

// Options configures the concrete resources.
type Options struct {
	// Clock drives polling, cache timestamps and TTL checks
	Clock clockwork.Clock

	// Logger overrides the component logger
	Logger *zerolog.Logger

	// Scope separates cache entries of different users (e.g. the user ID)
	Scope string

	// Redis shares cached results between processes. Nil keeps them in memory.
	Redis redis.Cmdable

	// TTL overrides the resource's default cache TTL; negative disables caching
	TTL time.Duration
}

func (o Options) clock() clockwork.Clock {
	if o.Clock == nil {
		return clockwork.NewRealClock()
	}
	return o.Clock
}

func (o Options) ttl(def time.Duration) time.Duration {
	switch {
	case o.TTL < 0:
		return 0
	case o.TTL > 0:
		return o.TTL
	default:
		return def
	}
}

// newStore returns the cache namespace of one resource.
func newStore[T any](o Options, namespace string, ttl time.Duration) cache.Store[T] {
	if ttl <= 0 {
		return nil
	}
	if o.Redis != nil {
		return cache.NewRedisStore[T](o.Redis, namespace, ttl, o.clock())
	}
	return cache.NewMemoryStore[T](o.clock())
}

package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCacheMiss indicates the key is absent or its entry is older than the TTL.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates a stored entry could not be decoded.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Store is a keyed TTL cache. Put always replaces the previous entry for a
// key; there is no merging.
type Store[T any] interface {
	// Get returns the entry for key if it is younger than ttl, else ErrCacheMiss.
	Get(ctx context.Context, key string, ttl time.Duration) (*Entry[T], error)

	// Put stores value under key with the current time.
	Put(ctx context.Context, key string, value T) error

	// Invalidate removes the given keys, or every entry when none are given.
	Invalidate(ctx context.Context, keys ...string) error
}

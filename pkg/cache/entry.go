// Package cache provides the TTL cache used by resources to avoid
// redundant backend fetches, plus ETag validators for conditional GETs.
package cache

import (
	"time"
)

// Entry is a timestamped snapshot of the last successful fetch.
type Entry[T any] struct {
	// Value is the cached payload.
	Value T `json:"value"`

	// Timestamp is when Value was stored.
	Timestamp time.Time `json:"timestamp"`
}

// Fresh reports whether the entry may satisfy a read with the given TTL
// at time now. A non-positive TTL never matches.
func (e *Entry[T]) Fresh(now time.Time, ttl time.Duration) bool {
	if e == nil || ttl <= 0 {
		return false
	}
	return now.Sub(e.Timestamp) < ttl
}

// Age returns how old the entry is at time now.
func (e *Entry[T]) Age(now time.Time) time.Duration {
	age := now.Sub(e.Timestamp)
	if age < 0 {
		return 0
	}
	return age
}

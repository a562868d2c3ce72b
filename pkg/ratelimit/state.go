// Package ratelimit paces outgoing backend requests and honors the
// Retry-After hints the backend sends with 429 and 503 responses.
package ratelimit

import (
	"time"

	"golang.org/x/time/rate"
)

// State is a snapshot of the limiter.
type State struct {
	// Limit is the steady request rate. rate.Inf means unpaced.
	Limit rate.Limit

	// Burst is the bucket size.
	Burst int

	// BlockedUntil is when the last Retry-After hint expires.
	BlockedUntil time.Time

	// Observed is when the snapshot was taken.
	Observed time.Time
}

// Blocked reports whether requests are held back by a Retry-After hint.
func (s State) Blocked() bool {
	return s.Observed.Before(s.BlockedUntil)
}

// TimeUntilReset returns how long requests stay blocked.
// Returns 0 if the block has already passed.
func (s State) TimeUntilReset() time.Duration {
	d := s.BlockedUntil.Sub(s.Observed)
	if d < 0 {
		return 0
	}
	return d
}

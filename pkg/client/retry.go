package client

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// RetryPolicy holds the configuration for the bounded retry loop.
type RetryPolicy struct {
	// MaxRetries is the number of attempts after the first one.
	// Zero disables retrying.
	MaxRetries int

	// BaseDelay is the backoff before the first retry. Retry n waits
	// BaseDelay * 2^n.
	BaseDelay time.Duration

	// MaxBackoff caps a single backoff.
	MaxBackoff time.Duration

	// Jitter randomizes each backoff by ±Jitter (0.2 = ±20%). Zero keeps
	// backoffs deterministic.
	Jitter float64
}

// DefaultRetryPolicy returns the dashboard retry policy: three retries
// waiting 1s, 2s and 4s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
		MaxBackoff: 30 * time.Second,
	}
}

// NoRetry returns a policy that performs a single attempt.
func NoRetry() RetryPolicy {
	return RetryPolicy{}
}

// MaxAttempts returns the total number of attempts the policy allows.
func (p RetryPolicy) MaxAttempts() int {
	if p.MaxRetries < 0 {
		return 1
	}
	return 1 + p.MaxRetries
}

// Backoff returns the wait before retry number retry (0-based).
func (p RetryPolicy) Backoff(retry int) time.Duration {
	d := time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(retry)))
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		d = p.MaxBackoff
	}
	if p.Jitter > 0 {
		d = time.Duration(float64(d) * (1 - p.Jitter + rand.Float64()*2*p.Jitter))
	}
	return d
}

// retrier drives one logical request through its attempts.
type retrier struct {
	policy RetryPolicy
	clock  clockwork.Clock
	logger zerolog.Logger
}

// do runs fn until it succeeds, fails terminally or the policy is used up.
// fn receives the 1-based attempt number. The returned count is the number
// of attempts actually made.
func (r retrier) do(ctx context.Context, endpoint string, fn func(attempt int) error) (int, error) {
	maxAttempts := r.policy.MaxAttempts()

	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		if err == nil {
			if attempt > 1 {
				r.logger.Info().
					Str("endpoint", endpoint).
					Int("attempt", attempt).
					Msg("Request succeeded after retry")
			}
			return attempt, nil
		}

		errClass := ClassOf(err)
		if !shouldRetry(errClass) {
			return attempt, err
		}

		if attempt >= maxAttempts {
			if maxAttempts > 1 {
				retryExhaustedTotal.WithLabelValues(string(errClass)).Inc()
				r.logger.Warn().
					Str("endpoint", endpoint).
					Str("error_class", string(errClass)).
					Int("max_attempts", maxAttempts).
					Msg("Retry attempts exhausted")
				return attempt, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempt, err)
			}
			return attempt, err
		}

		backoff := r.policy.Backoff(attempt - 1)
		retriesTotal.WithLabelValues(string(errClass)).Inc()
		retryBackoffSeconds.WithLabelValues(string(errClass)).Observe(backoff.Seconds())

		r.logger.Debug().
			Str("endpoint", endpoint).
			Str("error_class", string(errClass)).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Retrying request after backoff")

		select {
		case <-ctx.Done():
			r.logger.Debug().
				Str("endpoint", endpoint).
				Int("attempt", attempt).
				Msg("Context cancelled during retry backoff")
			return attempt, &APIError{
				ErrorClass: ErrorClassCancelled,
				Message:    "cancelled during retry backoff",
				Err:        fmt.Errorf("%w: %w", ErrContextCancelled, ctx.Err()),
			}
		case <-r.clock.After(backoff):
		}
	}
}

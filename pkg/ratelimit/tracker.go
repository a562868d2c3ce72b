package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Prometheus metrics for request pacing.
var (
	rateLimitWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wellness_rate_limit_waits_total",
		Help: "Total number of requests delayed by a Retry-After hint",
	})

	rateLimitHintsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wellness_rate_limit_hints_total",
		Help: "Total number of Retry-After hints received from the backend",
	})
)

// maxRetryAfter bounds how long a single hint may block requests.
const maxRetryAfter = 2 * time.Minute

// Limiter gates requests with a token bucket and server Retry-After hints.
type Limiter struct {
	limiter *rate.Limiter
	clock   clockwork.Clock
	logger  zerolog.Logger

	mu           sync.Mutex
	blockedUntil time.Time
}

// NewLimiter creates a limiter allowing rps requests per second with the
// given burst. rps <= 0 disables pacing; Retry-After hints still apply.
func NewLimiter(rps float64, burst int, clock clockwork.Clock, logger zerolog.Logger) *Limiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	if burst <= 0 {
		burst = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
		clock:   clock,
		logger:  logger,
	}
}

// Wait blocks until a request may be sent or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if d := l.State().TimeUntilReset(); d > 0 {
		rateLimitWaitsTotal.Inc()
		l.logger.Warn().Dur("wait_duration", d).Msg("Backend asked to back off - delaying request")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.clock.After(d):
		}
	}
	return l.limiter.Wait(ctx)
}

// UpdateFromResponse records a Retry-After hint carried by a 429 or 503.
func (l *Limiter) UpdateFromResponse(status int, headers http.Header) {
	if status != http.StatusTooManyRequests && status != http.StatusServiceUnavailable {
		return
	}
	d, ok := parseRetryAfter(headers.Get("Retry-After"), l.clock.Now())
	if !ok {
		return
	}
	if d > maxRetryAfter {
		d = maxRetryAfter
	}

	rateLimitHintsTotal.Inc()
	until := l.clock.Now().Add(d)

	l.mu.Lock()
	if until.After(l.blockedUntil) {
		l.blockedUntil = until
	}
	l.mu.Unlock()

	l.logger.Info().
		Int("status", status).
		Dur("retry_after", d).
		Msg("Backend rate limit hint recorded")
}

// State returns a snapshot of the limiter.
func (l *Limiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return State{
		Limit:        l.limiter.Limit(),
		Burst:        l.limiter.Burst(),
		BlockedUntil: l.blockedUntil,
		Observed:     l.clock.Now(),
	}
}

// parseRetryAfter accepts both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(value); err == nil {
		d := at.Sub(now)
		if d < 0 {
			return 0, false
		}
		return d, true
	}
	return 0, false
}

// Package poll runs a callback on a fixed interval while enabled.
package poll

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	pollTicksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wellness_poll_ticks_total",
		Help: "Total number of poll callbacks fired by scheduler",
	}, []string{"scheduler"})

	pollErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wellness_poll_errors_total",
		Help: "Total number of poll callbacks that returned an error",
	}, []string{"scheduler"})
)

// ErrStop ends the timer that ran the callback when returned (or wrapped)
// by a Callback. A timer registered later by Start is not affected.
var ErrStop = errors.New("stop polling")

// Callback is invoked on every tick. A returned error delays the next tick
// with exponential backoff. Callbacks must not call Start or Stop on their
// own scheduler synchronously; they return ErrStop instead.
type Callback func(ctx context.Context) error

// Scheduler fires the latest registered Callback every interval. The timer
// is only re-registered when the interval or the enabled flag changes;
// swapping the callback never delays the next tick.
type Scheduler struct {
	name   string
	clock  clockwork.Clock
	logger zerolog.Logger

	// MaxBackoff caps the error backoff (default 10 intervals).
	MaxBackoff time.Duration

	callback atomic.Pointer[Callback]

	mu       sync.Mutex
	interval time.Duration
	enabled  bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a stopped scheduler. A nil clock uses wall time.
func New(name string, clock clockwork.Clock, logger zerolog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		name:   name,
		clock:  clock,
		logger: logger.With().Str("scheduler", name).Logger(),
	}
}

// Start registers cb and runs it every interval while enabled. Calling
// Start again with the same interval and enabled flag only swaps the
// callback. With enabled false no timer is created.
func (s *Scheduler) Start(cb Callback, interval time.Duration, enabled bool) {
	s.callback.Store(&cb)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runningLocked() && s.interval == interval && s.enabled == enabled {
		return
	}

	s.stopLocked()
	s.interval = interval
	s.enabled = enabled

	if !enabled || interval <= 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	s.logger.Debug().Dur("interval", interval).Msg("Polling started")
	go s.loop(ctx, interval, done)
}

// Stop clears the timer and waits for an in-flight callback to return.
// No callback runs after Stop returns. Stop is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.enabled = false
}

// Running reports whether a timer is registered.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runningLocked()
}

// runningLocked is false once the loop has exited, including after a
// callback returned ErrStop.
func (s *Scheduler) runningLocked() bool {
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Interval returns the current interval.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

func (s *Scheduler) stopLocked() {
	if s.done == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
	s.logger.Debug().Msg("Polling stopped")
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	maxBackoff := s.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 10 * interval
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = interval
	bo.MaxInterval = maxBackoff
	bo.MaxElapsedTime = 0 // poll indefinitely
	bo.Reset()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}
		if ctx.Err() != nil {
			return
		}

		pollTicksTotal.WithLabelValues(s.name).Inc()
		cb := *s.callback.Load()

		if err := cb(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, ErrStop) {
				s.logger.Debug().Err(err).Msg("Polling stopped by callback")
				return
			}
			pollErrorsTotal.WithLabelValues(s.name).Inc()
			delay := bo.NextBackOff()
			s.logger.Warn().Err(err).Dur("backoff", delay).Msg("Poll failed - backing off")

			select {
			case <-ctx.Done():
				return
			case <-s.clock.After(delay):
			}
			continue
		}
		bo.Reset()
	}
}

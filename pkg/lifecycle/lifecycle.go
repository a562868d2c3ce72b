// Package lifecycle tracks the requests dispatched on behalf of one
// resource and decides which of their results may still be applied.
//
// Every dispatch gets a ticket with a monotonically increasing sequence
// number. Foreground dispatches (user actions, filter changes) cancel the
// previous foreground request and raise a staleness floor; background
// dispatches (polls) cancel nothing. A completion is applied only if its
// ticket is not cancelled, is at or above the floor, and is newer than the
// last applied ticket, so responses are applied in completion order
// without a slow stale response overwriting a fresher one.
package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var staleDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "wellness_stale_responses_dropped_total",
	Help: "Total number of responses dropped because a newer request superseded them",
})

// Ticket identifies one dispatched request.
type Ticket struct {
	Seq        uint64
	Foreground bool

	ctx context.Context
}

// Context returns the context the request must run under.
func (t Ticket) Context() context.Context {
	return t.ctx
}

// Controller issues tickets for one resource.
type Controller struct {
	mu          sync.Mutex
	next        uint64
	floor       uint64
	lastApplied uint64
	cancel      context.CancelFunc
	fgSeq       uint64
	closed      bool
}

// New creates a Controller.
func New() *Controller {
	return &Controller{}
}

// Begin dispatches a request under parent. A foreground ticket cancels the
// previous foreground request and makes every older ticket stale.
func (c *Controller) Begin(parent context.Context, foreground bool) Ticket {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.next++
	t := Ticket{Seq: c.next, Foreground: foreground}

	if c.closed {
		ctx, cancel := context.WithCancel(parent)
		cancel()
		t.ctx = ctx
		return t
	}

	if !foreground {
		t.ctx = parent
		return t
	}

	if c.cancel != nil {
		c.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	c.cancel = cancel
	c.fgSeq = t.Seq
	c.floor = t.Seq
	t.ctx = ctx
	return t
}

// Commit reports whether t may still be applied and, if so, records it as
// the latest applied ticket. It must be called when the response arrives,
// not at dispatch time.
func (c *Controller) Commit(t Ticket) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || t.ctx == nil || t.ctx.Err() != nil || t.Seq < c.floor || t.Seq <= c.lastApplied {
		staleDroppedTotal.Inc()
		return false
	}
	c.lastApplied = t.Seq
	if t.Foreground && t.Seq == c.fgSeq && c.cancel != nil {
		// request finished; release its context
		c.cancel()
		c.cancel = nil
	}
	return true
}

// Current reports whether t would still be accepted by Commit.
func (c *Controller) Current(t Ticket) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && t.ctx != nil && t.ctx.Err() == nil && t.Seq >= c.floor && t.Seq > c.lastApplied
}

// Cancel aborts the in-flight foreground request and makes every ticket
// issued so far stale. It reports whether anything was cancelled; calling
// it again without a new foreground dispatch is a no-op.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel == nil {
		return false
	}
	c.cancel()
	c.cancel = nil
	c.floor = c.next + 1
	return true
}

// Close cancels everything and rejects all future completions.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.closed = true
}

// ErrStale is returned by Execute when the result was superseded.
var ErrStale = fmt.Errorf("stale response: %w", context.Canceled)

// Execute runs fn under a new ticket and returns its result only if the
// ticket is still authoritative when fn returns. A superseded result is
// reported as ErrStale, a cancellation rather than a failure.
func Execute[T any](parent context.Context, c *Controller, foreground bool, fn func(ctx context.Context) (T, error)) (T, Ticket, error) {
	t := c.Begin(parent, foreground)
	v, err := fn(t.Context())

	var zero T
	if !c.Commit(t) {
		return zero, t, ErrStale
	}
	if err != nil {
		return zero, t, err
	}
	return v, t, nil
}

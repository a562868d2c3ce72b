// Package resource provides stateful accessors that bundle fetching,
// caching and polling for one backend entity.
//
// A Resource owns its FetchState, its cache namespace, its request
// lifecycle controller and its poll scheduler. User actions (Load, Refetch,
// SetParams, Retry) are foreground requests: they show Loading and cancel
// the previous foreground request. Polls are background requests: they
// never cancel anything and never show Loading, but their results pass the
// same staleness check, so a slow poll cannot overwrite a newer result.
package resource

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/Sternrassler/wellness-sync/pkg/cache"
	"github.com/Sternrassler/wellness-sync/pkg/client"
	"github.com/Sternrassler/wellness-sync/pkg/lifecycle"
	"github.com/Sternrassler/wellness-sync/pkg/logging"
	"github.com/Sternrassler/wellness-sync/pkg/poll"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Status is the phase of a FetchState.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// State is the observable FetchState of a resource.
type State[T any] struct {
	Status Status
	Data   T
	// HasData is set once any fetch succeeded; Data is kept on later failures.
	HasData bool
	Loading bool
	Err     *client.APIError
	// LastUpdated is when Data was fetched (the cache timestamp on a cache hit).
	LastUpdated time.Time
	// FromCache reports whether Data was served from the cache.
	FromCache bool
}

// FetchFunc loads the entity for params.
type FetchFunc[P comparable, T any] func(ctx context.Context, params P) (T, error)

// Valuer is implemented by parameter types that render as query values;
// the default cache key uses it.
type Valuer interface {
	Values() url.Values
}

// Config configures a Resource.
type Config[P comparable, T any] struct {
	// Name identifies the resource in logs and cache keys (REQUIRED)
	Name string

	// Fetch loads the entity (REQUIRED)
	Fetch FetchFunc[P, T]

	// Store caches successful results. Nil disables caching.
	Store cache.Store[T]

	// TTL is how long a cached result satisfies a non-forced Load
	TTL time.Duration

	// Key renders the cache key for params (default: Name plus Values(),
	// or the formatted params when P is not a Valuer)
	Key func(P) cache.Key

	// Scope separates cache entries of different users
	Scope string

	// Clock drives polling and timestamps (default: wall clock)
	Clock clockwork.Clock

	// Logger overrides the component logger
	Logger *zerolog.Logger
}

// Resource is a generic fetch/cache/poll state machine.
type Resource[P comparable, T any] struct {
	name   string
	fetch  FetchFunc[P, T]
	store  cache.Store[T]
	ttl    time.Duration
	key    func(P) cache.Key
	scope  string
	clock  clockwork.Clock
	logger zerolog.Logger

	ctrl   *lifecycle.Controller
	poller *poll.Scheduler

	// ctx bounds background work; cancelled by Close
	ctx  context.Context
	stop context.CancelFunc

	mu         sync.Mutex
	params     P
	state      State[T]
	loadingSeq uint64
	subs       map[int]func(State[T])
	nextSub    int
	closed     bool

	// queue holds snapshots not yet delivered to subscribers, oldest first
	queue  []State[T]
	notify chan struct{}
}

// New creates a Resource with initial params. No request is made until
// Load is called.
func New[P comparable, T any](cfg Config[P, T], params P) (*Resource[P, T], error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("resource name is required")
	}
	if cfg.Fetch == nil {
		return nil, fmt.Errorf("resource %s: fetch function is required", cfg.Name)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	logger := logging.ForResource(cfg.Name)
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("resource", cfg.Name).Logger()
	}

	key := cfg.Key
	if key == nil {
		key = func(p P) cache.Key {
			k := cache.Key{Name: cfg.Name}
			if v, ok := any(p).(Valuer); ok {
				k.Params = v.Values()
			} else if s := fmt.Sprintf("%v", p); s != "" && s != "{}" {
				k.Params = url.Values{"params": {s}}
			}
			return k
		}
	}

	ctx, stop := context.WithCancel(context.Background())

	r := &Resource[P, T]{
		name:   cfg.Name,
		fetch:  cfg.Fetch,
		store:  cfg.Store,
		ttl:    cfg.TTL,
		key:    key,
		scope:  cfg.Scope,
		clock:  clock,
		logger: logger,
		ctrl:   lifecycle.New(),
		poller: poll.New(cfg.Name, clock, logger),
		ctx:    ctx,
		stop:   stop,
		params: params,
		state:  State[T]{Status: StatusIdle},
		subs:   make(map[int]func(State[T])),
		notify: make(chan struct{}, 1),
	}
	go r.deliver()
	return r, nil
}

// Name returns the resource name.
func (r *Resource[P, T]) Name() string {
	return r.name
}

// State returns a snapshot of the current FetchState.
func (r *Resource[P, T]) State() State[T] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Params returns the current parameters.
func (r *Resource[P, T]) Params() P {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.params
}

// Subscribe registers fn to be called after every state change. Snapshots
// are delivered in order on a dedicated goroutine, so fn may call back into
// the resource. The returned function unregisters it.
func (r *Resource[P, T]) Subscribe(fn func(State[T])) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return func() {}
	}
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn
	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// Load fetches params in the foreground. Unless force is set, a cache
// entry younger than the TTL is served without a network call.
func (r *Resource[P, T]) Load(ctx context.Context, params P, force bool) State[T] {
	r.mu.Lock()
	if r.closed {
		defer r.mu.Unlock()
		return r.state
	}
	r.params = params
	r.mu.Unlock()

	if !force {
		if entry, ok := r.cached(ctx, params); ok {
			t := r.ctrl.Begin(ctx, true)
			if r.ctrl.Commit(t) {
				r.update(func(s *State[T]) {
					s.Status = StatusSuccess
					s.Data = entry.Value
					s.HasData = true
					s.Loading = false
					s.Err = nil
					s.LastUpdated = entry.Timestamp
					s.FromCache = true
				})
			}
			return r.State()
		}
	}

	st, _ := r.run(ctx, params, true)
	return st
}

// Refetch fetches the current params in the foreground, bypassing the cache.
func (r *Resource[P, T]) Refetch(ctx context.Context) State[T] {
	return r.Load(ctx, r.Params(), true)
}

// SetParams applies a filter change: the in-flight request is cancelled,
// the cache entry of the old params is dropped and params are loaded.
func (r *Resource[P, T]) SetParams(ctx context.Context, params P) State[T] {
	r.mu.Lock()
	old := r.params
	r.mu.Unlock()

	r.ctrl.Cancel()
	if old != params {
		r.invalidate(ctx, old)
	}
	return r.Load(ctx, params, false)
}

// Switch moves to params, cancelling the in-flight request but keeping
// the cache of the old params (e.g. page navigation).
func (r *Resource[P, T]) Switch(ctx context.Context, params P) State[T] {
	r.ctrl.Cancel()
	return r.Load(ctx, params, false)
}

// Retry clears the error and refetches.
func (r *Resource[P, T]) Retry(ctx context.Context) State[T] {
	r.update(func(s *State[T]) { s.Err = nil })
	return r.Refetch(ctx)
}

// Cancel aborts the in-flight foreground request. It reports whether a
// request was cancelled.
func (r *Resource[P, T]) Cancel() bool {
	if !r.ctrl.Cancel() {
		return false
	}
	r.update(func(s *State[T]) {
		s.Loading = false
		s.Status = settledStatus(*s)
	})
	return true
}

// Invalidate drops the cache entry of the current params.
func (r *Resource[P, T]) Invalidate(ctx context.Context) {
	r.invalidate(ctx, r.Params())
}

// StartPolling refreshes the resource silently every interval. Calling it
// again with the same interval keeps the running timer; interval <= 0
// stops polling.
func (r *Resource[P, T]) StartPolling(interval time.Duration) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return
	}
	r.poller.Start(r.pollOnce, interval, interval > 0)
}

// StopPolling stops the poll timer.
func (r *Resource[P, T]) StopPolling() {
	r.poller.Stop()
}

// Polling reports whether the poll timer is running.
func (r *Resource[P, T]) Polling() bool {
	return r.poller.Running()
}

// RefreshSilently fetches the current params in the background: no
// Loading state and no cancellation of other requests.
func (r *Resource[P, T]) RefreshSilently(ctx context.Context) State[T] {
	if err := r.refresh(ctx); endsSession(err) {
		r.poller.Stop()
	}
	return r.State()
}

// Mutate runs a write against the backend. On success the cache entry of
// the current params is dropped and the resource is refreshed silently.
// The write's error is returned as an *client.APIError and not recorded in
// the state.
func (r *Resource[P, T]) Mutate(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := fn(ctx); err != nil {
		apiErr := client.AsAPIError(err)
		r.logger.Warn().
			Err(err).
			Str("error_class", string(apiErr.ErrorClass)).
			Msg("Mutation failed")
		return apiErr
	}
	r.Invalidate(ctx)
	if err := r.refresh(ctx); endsSession(err) {
		r.poller.Stop()
	}
	return nil
}

// Close stops polling, cancels in-flight requests and drops subscribers.
// Snapshots still queued are discarded. The resource must not be used
// afterwards.
func (r *Resource[P, T]) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.subs = make(map[int]func(State[T]))
	r.queue = nil
	r.mu.Unlock()

	r.ctrl.Close()
	r.poller.Stop()
	r.stop()
}

// pollOnce runs on the scheduler goroutine, so an ended session stops the
// timer through poll.ErrStop rather than a synchronous Stop.
func (r *Resource[P, T]) pollOnce(ctx context.Context) error {
	err := r.refresh(ctx)
	if endsSession(err) {
		return fmt.Errorf("%w: %w", poll.ErrStop, err)
	}
	return err
}

// refresh runs a background fetch and returns the error this fetch
// applied to the state, so the poll scheduler can back off. A response
// dropped as stale or cancelled returns nil.
func (r *Resource[P, T]) refresh(ctx context.Context) error {
	parent, cancel := mergeDone(ctx, r.ctx)
	defer cancel()

	_, err := r.run(parent, r.Params(), false)
	return err
}

// run dispatches one fetch and applies its result if it is still current.
// The returned error is the failure this call recorded, nil otherwise.
func (r *Resource[P, T]) run(ctx context.Context, params P, foreground bool) (State[T], error) {
	t := r.ctrl.Begin(ctx, foreground)

	if foreground {
		r.update(func(s *State[T]) {
			s.Status = StatusLoading
			s.Loading = true
			r.loadingSeq = t.Seq
		})
	}

	value, err := r.fetch(t.Context(), params)

	if !r.ctrl.Commit(t) {
		r.logger.Debug().
			Uint64("seq", t.Seq).
			Bool("foreground", foreground).
			Msg("Dropping stale response")
		r.settleDropped(t)
		return r.State(), nil
	}

	if err != nil {
		applied := r.fail(t, err)
		if applied == nil {
			return r.State(), nil
		}
		if foreground && endsSession(applied) {
			r.poller.Stop()
		}
		return r.State(), applied
	}

	if r.store != nil {
		key := r.cacheKey(params)
		if putErr := r.store.Put(r.ctx, key, value); putErr != nil {
			r.logger.Warn().Err(putErr).Str("cache_key", key).Msg("Failed to cache result")
		}
	}

	r.update(func(s *State[T]) {
		s.Status = StatusSuccess
		s.Data = value
		s.HasData = true
		s.Loading = false
		s.Err = nil
		s.LastUpdated = r.clock.Now()
		s.FromCache = false
	})
	return r.State(), nil
}

// fail records err on the state and returns it as an *client.APIError.
// Cancellations are settled instead and return nil.
func (r *Resource[P, T]) fail(t lifecycle.Ticket, err error) error {
	apiErr := client.AsAPIError(err)

	if apiErr.ErrorClass == client.ErrorClassCancelled {
		r.settleDropped(t)
		return nil
	}

	r.logger.Warn().
		Err(err).
		Str("error_class", string(apiErr.ErrorClass)).
		Uint64("seq", t.Seq).
		Bool("foreground", t.Foreground).
		Msg("Fetch failed")

	r.update(func(s *State[T]) {
		s.Status = StatusFailure
		s.Loading = false
		s.Err = apiErr
	})
	return apiErr
}

// endsSession reports whether err means the session is gone and polling
// must stop.
func endsSession(err error) bool {
	return client.ClassOf(err) == client.ErrorClassAuth || errors.Is(err, client.ErrNotAuthenticated)
}

// settleDropped clears the Loading flag when the dropped request was the
// one that set it and no newer foreground request has taken over.
func (r *Resource[P, T]) settleDropped(t lifecycle.Ticket) {
	if !t.Foreground {
		return
	}
	r.mu.Lock()
	current := r.loadingSeq == t.Seq
	r.mu.Unlock()
	if !current {
		return
	}
	r.update(func(s *State[T]) {
		if s.Loading {
			s.Loading = false
			s.Status = settledStatus(*s)
		}
	})
}

func settledStatus[T any](s State[T]) Status {
	switch {
	case s.Err != nil:
		return StatusFailure
	case s.HasData:
		return StatusSuccess
	default:
		return StatusIdle
	}
}

func (r *Resource[P, T]) cached(ctx context.Context, params P) (*cache.Entry[T], bool) {
	if r.store == nil || r.ttl <= 0 {
		return nil, false
	}
	key := r.cacheKey(params)
	entry, err := r.store.Get(ctx, key, r.ttl)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			r.logger.Warn().Err(err).Str("cache_key", key).Msg("Cache read failed")
		}
		return nil, false
	}
	r.logger.Debug().Str("cache_key", key).Dur("age", entry.Age(r.clock.Now())).Msg("Serving cached result")
	return entry, true
}

func (r *Resource[P, T]) invalidate(ctx context.Context, params P) {
	if r.store == nil {
		return
	}
	key := r.cacheKey(params)
	if err := r.store.Invalidate(ctx, key); err != nil {
		r.logger.Warn().Err(err).Str("cache_key", key).Msg("Cache invalidation failed")
	}
}

func (r *Resource[P, T]) cacheKey(params P) string {
	k := r.key(params)
	if k.Scope == "" {
		k.Scope = r.scope
	}
	return k.String()
}

// update mutates the state under the lock and queues a snapshot for the
// subscribers. It never calls a subscriber itself.
func (r *Resource[P, T]) update(fn func(*State[T])) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	fn(&r.state)
	if len(r.subs) > 0 {
		r.queue = append(r.queue, r.state)
	}
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// deliver hands queued snapshots to the subscribers until Close.
func (r *Resource[P, T]) deliver() {
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.notify:
		}
		for {
			snapshot, subs, ok := r.nextSnapshot()
			if !ok {
				break
			}
			for _, sub := range subs {
				sub(snapshot)
			}
		}
	}
}

func (r *Resource[P, T]) nextSnapshot() (State[T], []func(State[T]), bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || len(r.queue) == 0 {
		r.queue = nil
		return State[T]{}, nil, false
	}
	snapshot := r.queue[0]
	r.queue = r.queue[1:]
	subs := make([]func(State[T]), 0, len(r.subs))
	for _, sub := range r.subs {
		subs = append(subs, sub)
	}
	return snapshot, subs, true
}

// mergeDone returns a context of a that is also cancelled when b is done.
func mergeDone(a, b context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(a)
	stop := context.AfterFunc(b, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

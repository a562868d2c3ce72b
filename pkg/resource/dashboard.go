package resource

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Sternrassler/wellness-sync/pkg/api"
	"github.com/Sternrassler/wellness-sync/pkg/cache"
	"github.com/Sternrassler/wellness-sync/pkg/client"
	"github.com/Sternrassler/wellness-sync/pkg/lifecycle"
	"github.com/Sternrassler/wellness-sync/pkg/models"
	"golang.org/x/sync/errgroup"
)

// Dashboard cache settings.
const (
	DashboardCacheKey = "dashboard_overview"
	DashboardTTL      = 5 * time.Minute

	// WidgetFetchLimit caps the widget requests in flight per Widgets call.
	WidgetFetchLimit = 3
)

// WidgetState is the last known state of one dashboard widget.
type WidgetState struct {
	Data        *models.WidgetData
	Err         *client.APIError
	LastUpdated time.Time
}

// Dashboard is the specialist dashboard: the overview resource plus
// independently fetched widgets.
type Dashboard struct {
	*Resource[struct{}, models.DashboardOverview]

	api     *api.API
	opts    Options
	widgets *lifecycle.Controller

	mu      sync.Mutex
	widgetS map[models.WidgetType]WidgetState
}

// NewDashboard creates the dashboard resource.
func NewDashboard(a *api.API, opts Options) (*Dashboard, error) {
	ttl := opts.ttl(DashboardTTL)
	r, err := New(Config[struct{}, models.DashboardOverview]{
		Name: "dashboard",
		Fetch: func(ctx context.Context, _ struct{}) (models.DashboardOverview, error) {
			overview, err := a.DashboardOverview(ctx)
			if err != nil {
				return models.DashboardOverview{}, err
			}
			return *overview, nil
		},
		Store:  newStore[models.DashboardOverview](opts, "dashboard", ttl),
		TTL:    ttl,
		Key:    func(struct{}) cache.Key { return cache.Key{Name: DashboardCacheKey} },
		Scope:  opts.Scope,
		Clock:  opts.Clock,
		Logger: opts.Logger,
	}, struct{}{})
	if err != nil {
		return nil, err
	}

	return &Dashboard{
		Resource: r,
		api:      a,
		opts:     opts,
		widgets:  lifecycle.New(),
		widgetS:  make(map[models.WidgetType]WidgetState),
	}, nil
}

// Fetch loads the overview. With forceRefresh unset, a result younger
// than five minutes is served from the cache.
func (d *Dashboard) Fetch(ctx context.Context, forceRefresh bool) State[models.DashboardOverview] {
	return d.Load(ctx, struct{}{}, forceRefresh)
}

type widgetResult struct {
	data *models.WidgetData
	err  error
}

type widgetBatch struct {
	results map[models.WidgetType]widgetResult
	// err is the first widget failure, nil when all succeeded
	err error
}

// Widgets fetches the given widgets in parallel, at most WidgetFetchLimit
// at a time. A failed widget keeps its
// previous data and records its error; the others are unaffected. A newer
// Widgets call supersedes an in-flight one, which then returns
// lifecycle.ErrStale.
func (d *Dashboard) Widgets(ctx context.Context, types ...models.WidgetType) (map[models.WidgetType]WidgetState, error) {
	batch, _, err := lifecycle.Execute(ctx, d.widgets, true, func(ctx context.Context) (widgetBatch, error) {
		var mu sync.Mutex
		out := make(map[models.WidgetType]widgetResult, len(types))

		// No WithContext: one failing widget must not cancel its siblings.
		var g errgroup.Group
		g.SetLimit(WidgetFetchLimit)
		for _, wt := range types {
			g.Go(func() error {
				data, err := d.api.Widget(ctx, wt)
				mu.Lock()
				out[wt] = widgetResult{data: data, err: err}
				mu.Unlock()
				return err
			})
		}
		// Execute drops the value on error, so the group error travels in the batch.
		return widgetBatch{results: out, err: g.Wait()}, nil
	})
	if err != nil {
		return d.WidgetStates(), err
	}

	now := d.opts.clock().Now()

	d.mu.Lock()
	for wt, res := range batch.results {
		prev := d.widgetS[wt]
		if res.err != nil {
			apiErr := client.AsAPIError(res.err)
			if apiErr.ErrorClass == client.ErrorClassCancelled {
				continue
			}
			prev.Err = apiErr
			d.widgetS[wt] = prev
			continue
		}
		d.widgetS[wt] = WidgetState{Data: res.data, LastUpdated: now}
	}
	d.mu.Unlock()

	states := d.WidgetStates()
	if batch.err == nil {
		return states, nil
	}
	var errs []error
	for _, wt := range types {
		if st := states[wt]; st.Err != nil {
			errs = append(errs, st.Err)
		}
	}
	return states, errors.Join(errs...)
}

// WidgetStates returns a snapshot of all widget states.
func (d *Dashboard) WidgetStates() map[models.WidgetType]WidgetState {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[models.WidgetType]WidgetState, len(d.widgetS))
	for k, v := range d.widgetS {
		out[k] = v
	}
	return out
}

// Close releases the overview resource and cancels widget requests.
func (d *Dashboard) Close() {
	d.widgets.Close()
	d.Resource.Close()
}

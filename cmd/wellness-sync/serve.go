package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Sternrassler/wellness-sync/pkg/metrics"
	"github.com/Sternrassler/wellness-sync/pkg/resource"
	"github.com/spf13/cobra"
)

// syncStatus is the per-resource view served on /status.
type syncStatus struct {
	Status      resource.Status `json:"status"`
	LastUpdated time.Time       `json:"last_updated,omitempty"`
	Polling     bool            `json:"polling"`
	Error       string          `json:"error,omitempty"`
}

// statusBoard collects the latest state of every synced resource.
type statusBoard struct {
	mu    sync.RWMutex
	items map[string]syncStatus
}

func newStatusBoard() *statusBoard {
	return &statusBoard{items: make(map[string]syncStatus)}
}

func (b *statusBoard) snapshot() map[string]syncStatus {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]syncStatus, len(b.items))
	for k, v := range b.items {
		out[k] = v
	}
	return out
}

// track keeps the board current for r until the returned func is called.
func track[P comparable, T any](b *statusBoard, r *resource.Resource[P, T]) func() {
	set := func(st resource.State[T]) {
		s := syncStatus{Status: st.Status, LastUpdated: st.LastUpdated, Polling: r.Polling()}
		if st.Err != nil {
			s.Error = st.Err.Error()
		}
		b.mu.Lock()
		b.items[r.Name()] = s
		b.mu.Unlock()
	}
	set(r.State())
	return r.Subscribe(set)
}

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep the dashboard and lists synced and expose health and metrics",
		Long: "Keep the dashboard and lists synced and expose health and metrics.\n\n" +
			"Resources are polled at the configured intervals. With the redis cache\n" +
			"backend the results are shared with other wellness-sync processes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.cfg.Metrics.Addr
			}
			return serve(cmd.Context(), a, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default: metrics.addr)")
	return cmd
}

func serve(ctx context.Context, a *app, addr string) error {
	if err := a.ping(ctx); err != nil {
		return err
	}

	board := newStatusBoard()

	dashboard, err := resource.NewDashboard(a.api, a.options(a.cfg.Cache.DashboardTTL))
	if err != nil {
		return err
	}
	defer dashboard.Close()
	defer track(board, dashboard.Resource)()

	appts, err := resource.NewAppointments(a.api, resource.AppointmentFilter{}, a.listOptions())
	if err != nil {
		return err
	}
	defer appts.Close()
	defer track(board, appts.Resource)()

	slots, err := resource.NewSlots(a.api, resource.SlotFilter{}, a.listOptions())
	if err != nil {
		return err
	}
	defer slots.Close()
	defer track(board, slots.Resource)()

	dashboard.Fetch(ctx, false)
	appts.Load(ctx, appts.Params(), false)
	dashboard.StartPolling(a.cfg.Poll.Dashboard)
	appts.StartPolling(a.cfg.Poll.Appointments)
	if a.cfg.Poll.Slots > 0 {
		slots.Load(ctx, slots.Params(), false)
		slots.StartPolling(a.cfg.Poll.Slots)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newServeMux(a, board),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info().Str("addr", addr).Msg("Serving health and metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newServeMux(a *app, board *statusBoard) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(a))
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := writeJSON(w, board.snapshot()); err != nil {
			a.logger.Error().Err(err).Msg("Failed to write status")
		}
	})
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// readyHandler reports 503 while the session is rejected or the shared
// cache is unreachable.
func readyHandler(a *app) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.guard.Tripped() {
			http.Error(w, "not authenticated", http.StatusServiceUnavailable)
			return
		}
		if err := a.ping(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "READY")
	}
}

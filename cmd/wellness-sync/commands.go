package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Sternrassler/wellness-sync/pkg/client"
	"github.com/Sternrassler/wellness-sync/pkg/models"
	"github.com/Sternrassler/wellness-sync/pkg/pagination"
	"github.com/Sternrassler/wellness-sync/pkg/resource"
	"github.com/spf13/cobra"
)

// watch prints every new snapshot of r while it polls, until ctx ends or
// the session is rejected.
func watch[P comparable, T any](ctx context.Context, a *app, r *resource.Resource[P, T], interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("watch interval must be > 0 (got %s)", interval)
	}

	parent := ctx
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	last := r.State().LastUpdated
	unsubscribe := r.Subscribe(func(st resource.State[T]) {
		if st.Err != nil && st.Err.ErrorClass == client.ErrorClassAuth {
			cancel(st.Err)
			return
		}
		if st.Status != resource.StatusSuccess || !st.LastUpdated.After(last) {
			return
		}
		last = st.LastUpdated
		if err := a.print(st.Data); err != nil {
			cancel(err)
		}
	})
	defer unsubscribe()

	a.logger.Info().Str("resource", r.Name()).Dur("interval", interval).Msg("Watching for updates")
	r.StartPolling(interval)
	defer r.StopPolling()

	<-ctx.Done()
	if parent.Err() != nil {
		return nil
	}
	return context.Cause(ctx)
}

func newDashboardCmd() *cobra.Command {
	var (
		force    bool
		watchFor bool
		interval time.Duration
		widgets  []string
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show the specialist dashboard overview",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			d, err := resource.NewDashboard(a.api, a.options(a.cfg.Cache.DashboardTTL))
			if err != nil {
				return err
			}
			defer d.Close()

			st := d.Fetch(ctx, force)
			if err := stateError(a, d.Name(), st); err != nil {
				return err
			}
			if err := a.print(st.Data); err != nil {
				return err
			}

			if len(widgets) > 0 {
				types := make([]models.WidgetType, 0, len(widgets))
				for _, w := range widgets {
					types = append(types, models.WidgetType(strings.TrimSpace(w)))
				}
				states, err := d.Widgets(ctx, types...)
				if err != nil {
					a.logger.Warn().Err(err).Msg("Some widgets failed to load")
				}
				if err := a.print(states); err != nil {
					return err
				}
			}

			if !watchFor {
				return nil
			}
			if !cmd.Flags().Changed("interval") {
				interval = a.cfg.Poll.Dashboard
			}
			return watch(ctx, a, d.Resource, interval)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Bypass the cache")
	cmd.Flags().BoolVarP(&watchFor, "watch", "w", false, "Keep polling and print updates")
	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "Poll interval for --watch (default: poll.dashboard)")
	cmd.Flags().StringSliceVar(&widgets, "widgets", nil, "Widgets to load: appointments, patients, revenue, forum, schedule")
	return cmd
}

func newPatientsCmd() *cobra.Command {
	var (
		status   string
		search   string
		page     int
		pageSize int
		all      bool
	)

	cmd := &cobra.Command{
		Use:   "patients",
		Short: "List the specialist's patients",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			p, err := resource.NewPatients(a.api, pageSize, a.listOptions())
			if err != nil {
				return err
			}
			defer p.Close()

			if all {
				cfg := pagination.DefaultConfig()
				if pageSize > 0 {
					cfg.PageSize = pageSize
				}
				patients, err := p.FetchAll(ctx, status, search, cfg)
				if err != nil && len(patients) == 0 {
					return err
				}
				if err != nil {
					a.logger.Warn().Err(err).Int("fetched", len(patients)).Msg("Patient list incomplete")
				}
				return a.print(patients)
			}

			filter := p.Params()
			filter.Status = status
			filter.Search = strings.TrimSpace(search)
			filter.Page = pagination.NewState(filter.PageSize).WithPage(page).Page

			st := p.Load(ctx, filter, false)
			if err := stateError(a, p.Name(), st); err != nil {
				return err
			}
			return a.print(st.Data)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by patient status")
	cmd.Flags().StringVar(&search, "search", "", "Search by name or email")
	cmd.Flags().IntVar(&page, "page", 1, "Page number (1-based)")
	cmd.Flags().IntVar(&pageSize, "page-size", pagination.DefaultPageSize, "Patients per page")
	cmd.Flags().BoolVar(&all, "all", false, "Fetch every page concurrently")
	return cmd
}

func newSlotsCmd() *cobra.Command {
	var (
		from     string
		to       string
		status   string
		watchFor bool
	)

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List and manage schedule slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			s, err := resource.NewSlots(a.api, resource.SlotFilter{
				DateFrom: from, DateTo: to, Status: models.SlotStatus(status),
			}, a.listOptions())
			if err != nil {
				return err
			}
			defer s.Close()

			st := s.Load(ctx, s.Params(), false)
			if err := stateError(a, s.Name(), st); err != nil {
				return err
			}
			if err := a.print(st.Data); err != nil {
				return err
			}
			if watchFor {
				return watch(ctx, a, s.Resource, a.cfg.Poll.Slots)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&from, "from", "", "First day (YYYY-MM-DD)")
	cmd.PersistentFlags().StringVar(&to, "to", "", "Last day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status: available, booked, blocked")
	cmd.Flags().BoolVarP(&watchFor, "watch", "w", false, "Keep polling (poll.slots) and print updates")

	cmd.AddCommand(newSlotsBlockCmd(), newSlotsUnblockCmd(), newSlotsGenerateCmd(&from, &to), newSlotsSummaryCmd(&from, &to))
	return cmd
}

func newSlotsBlockCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "block <slot-id>",
		Short: "Block a slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if err := a.api.BlockSlot(cmd.Context(), args[0], reason); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Slot %s blocked\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the slot is blocked")
	return cmd
}

func newSlotsUnblockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unblock <slot-id>",
		Short: "Unblock a slot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			if err := a.api.UnblockSlot(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Slot %s unblocked\n", args[0])
			return nil
		},
	}
}

func newSlotsGenerateCmd(from, to *string) *cobra.Command {
	var req models.GenerateSlotsRequest
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate slots from a daily template",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			s, err := resource.NewSlots(a.api, resource.SlotFilter{DateFrom: *from, DateTo: *to}, a.listOptions())
			if err != nil {
				return err
			}
			defer s.Close()

			req.DateFrom, req.DateTo = *from, *to
			res, err := s.Generate(cmd.Context(), req)
			if err != nil {
				return err
			}
			return a.print(res)
		},
	}
	cmd.Flags().StringVar(&req.StartTime, "start", "09:00", "Daily start time (HH:MM)")
	cmd.Flags().StringVar(&req.EndTime, "end", "17:00", "Daily end time (HH:MM)")
	cmd.Flags().IntVar(&req.DurationMinutes, "duration", 60, "Slot length in minutes")
	return cmd
}

func newSlotsSummaryCmd(from, to *string) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Show slot counts for the date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			s, err := resource.NewSlots(a.api, resource.SlotFilter{DateFrom: *from, DateTo: *to}, a.listOptions())
			if err != nil {
				return err
			}
			defer s.Close()

			summary, err := s.Summary(cmd.Context())
			if err != nil {
				return err
			}
			return a.print(summary)
		},
	}
}

func newAppointmentsCmd() *cobra.Command {
	var (
		status   string
		watchFor bool
	)

	cmd := &cobra.Command{
		Use:   "appointments",
		Short: "List appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			appts, err := resource.NewAppointments(a.api, resource.AppointmentFilter{
				Status: models.AppointmentStatus(status),
			}, a.listOptions())
			if err != nil {
				return err
			}
			defer appts.Close()

			st := appts.Load(ctx, appts.Params(), false)
			if err := stateError(a, appts.Name(), st); err != nil {
				return err
			}
			if err := a.print(st.Data); err != nil {
				return err
			}
			if watchFor {
				return watch(ctx, a, appts.Resource, a.cfg.Poll.Appointments)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().BoolVarP(&watchFor, "watch", "w", false, "Keep polling (poll.appointments) and print updates")
	cmd.AddCommand(newAppointmentStatusCmd())
	return cmd
}

func newAppointmentStatusCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "set-status <appointment-id> <status>",
		Short: "Confirm, complete, cancel or mark an appointment as no-show",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			appts, err := resource.NewAppointments(a.api, resource.AppointmentFilter{}, a.listOptions())
			if err != nil {
				return err
			}
			defer appts.Close()

			appts.Load(ctx, appts.Params(), false)
			if err := appts.UpdateStatus(ctx, args[0], models.AppointmentStatus(args[1]), reason); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Appointment %s is now %s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Reason (for cancellations)")
	return cmd
}

func newForumCmd() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "forum",
		Short: "Browse forum questions",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := appFrom(cmd)
			if err != nil {
				return err
			}
			f, err := resource.NewForum(a.api, a.listOptions())
			if err != nil {
				return err
			}
			defer f.Close()

			st := f.Search(cmd.Context(), search)
			if err := stateError(a, f.Name(), st); err != nil {
				return err
			}
			return a.print(st.Data)
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "Search text")
	return cmd
}

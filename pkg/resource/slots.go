package resource

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Sternrassler/wellness-sync/pkg/api"
	"github.com/Sternrassler/wellness-sync/pkg/models"
)

// SlotFilter selects slots by date range (YYYY-MM-DD) and status.
type SlotFilter struct {
	DateFrom string
	DateTo   string
	Status   models.SlotStatus
}

// Values implements Valuer.
func (f SlotFilter) Values() url.Values {
	v := url.Values{}
	if f.DateFrom != "" {
		v.Set("date_from", f.DateFrom)
	}
	if f.DateTo != "" {
		v.Set("date_to", f.DateTo)
	}
	if f.Status != "" {
		v.Set("status", string(f.Status))
	}
	return v
}

func (f SlotFilter) query() api.SlotQuery {
	return api.SlotQuery{DateFrom: f.DateFrom, DateTo: f.DateTo, Status: f.Status}
}

// Slots is the specialist's schedule.
type Slots struct {
	*Resource[SlotFilter, []models.Slot]

	api *api.API
}

// NewSlots creates the slot list resource.
func NewSlots(a *api.API, filter SlotFilter, opts Options) (*Slots, error) {
	ttl := opts.ttl(DefaultListTTL)
	r, err := New(Config[SlotFilter, []models.Slot]{
		Name: "slots",
		Fetch: func(ctx context.Context, f SlotFilter) ([]models.Slot, error) {
			return a.Slots(ctx, f.query())
		},
		Store:  newStore[[]models.Slot](opts, "slots", ttl),
		TTL:    ttl,
		Scope:  opts.Scope,
		Clock:  opts.Clock,
		Logger: opts.Logger,
	}, filter)
	if err != nil {
		return nil, err
	}
	return &Slots{Resource: r, api: a}, nil
}

// Generate creates slots from a schedule template and refreshes the list.
func (s *Slots) Generate(ctx context.Context, req models.GenerateSlotsRequest) (*models.GenerateSlotsResult, error) {
	if req.DateFrom == "" || req.DateTo == "" {
		return nil, fmt.Errorf("date range is required")
	}
	if req.DurationMinutes <= 0 {
		return nil, fmt.Errorf("slot duration must be > 0 (got %d)", req.DurationMinutes)
	}

	var result *models.GenerateSlotsResult
	err := s.Mutate(ctx, func(ctx context.Context) error {
		var err error
		result, err = s.api.GenerateSlots(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Block marks a slot unavailable and refreshes the list.
func (s *Slots) Block(ctx context.Context, id, reason string) error {
	return s.Mutate(ctx, func(ctx context.Context) error {
		return s.api.BlockSlot(ctx, id, reason)
	})
}

// Unblock makes a slot available again and refreshes the list.
func (s *Slots) Unblock(ctx context.Context, id string) error {
	return s.Mutate(ctx, func(ctx context.Context) error {
		return s.api.UnblockSlot(ctx, id)
	})
}

// Summary fetches slot counts for the current date range.
func (s *Slots) Summary(ctx context.Context) (*models.SlotSummary, error) {
	f := s.Params()
	return s.api.SlotSummary(ctx, api.SlotQuery{DateFrom: f.DateFrom, DateTo: f.DateTo})
}

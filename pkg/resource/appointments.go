package resource

import (
	"context"
	"fmt"
	"net/url"

	"github.com/Sternrassler/wellness-sync/pkg/api"
	"github.com/Sternrassler/wellness-sync/pkg/models"
)

// AppointmentFilter selects appointments by status ("" for all).
type AppointmentFilter struct {
	Status models.AppointmentStatus
}

// Values implements Valuer.
func (f AppointmentFilter) Values() url.Values {
	v := url.Values{}
	if f.Status != "" {
		v.Set("status", string(f.Status))
	}
	return v
}

// ErrInvalidTransition is returned for a status change the appointment
// workflow does not allow.
var ErrInvalidTransition = fmt.Errorf("invalid appointment status transition")

// Appointments is the appointment list.
type Appointments struct {
	*Resource[AppointmentFilter, []models.Appointment]

	api *api.API
}

// NewAppointments creates the appointment list resource.
func NewAppointments(a *api.API, filter AppointmentFilter, opts Options) (*Appointments, error) {
	ttl := opts.ttl(DefaultListTTL)
	r, err := New(Config[AppointmentFilter, []models.Appointment]{
		Name: "appointments",
		Fetch: func(ctx context.Context, f AppointmentFilter) ([]models.Appointment, error) {
			return a.Appointments(ctx, f.Status)
		},
		Store:  newStore[[]models.Appointment](opts, "appointments", ttl),
		TTL:    ttl,
		Scope:  opts.Scope,
		Clock:  opts.Clock,
		Logger: opts.Logger,
	}, filter)
	if err != nil {
		return nil, err
	}
	return &Appointments{Resource: r, api: a}, nil
}

// UpdateStatus moves appointment id to status. The transition is checked
// against the loaded data when the appointment is known; the list is
// refreshed afterwards.
func (a *Appointments) UpdateStatus(ctx context.Context, id string, status models.AppointmentStatus, reason string) error {
	if current, ok := a.find(id); ok && !current.Status.CanTransition(status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}

	return a.Mutate(ctx, func(ctx context.Context) error {
		_, err := a.api.UpdateAppointmentStatus(ctx, id, models.AppointmentStatusUpdate{
			Status: status,
			Reason: reason,
		})
		return err
	})
}

func (a *Appointments) find(id string) (models.Appointment, bool) {
	for _, appt := range a.State().Data {
		if appt.ID == id {
			return appt, true
		}
	}
	return models.Appointment{}, false
}

// Package api implements typed calls for the wellness platform endpoints on
// top of the retrying backend client.
package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/Sternrassler/wellness-sync/pkg/client"
	"github.com/Sternrassler/wellness-sync/pkg/models"
)

// Endpoint timeouts.
const (
	DashboardTimeout = 10 * time.Second
	SummaryTimeout   = 30 * time.Second
	DownloadTimeout  = 30 * time.Second
)

const (
	specialistPrefix = "/api/v1/specialist"
	dashboardPath    = specialistPrefix + "/dashboard/overview"
	widgetPath       = specialistPrefix + "/dashboard/widgets/"
	patientsPath     = specialistPrefix + "/patients/filter"
	slotsPath        = specialistPrefix + "/slots"
	appointmentsPath = "/api/v1/appointments"
	questionsPath    = "/api/v1/forum/questions"
	profilePath      = "/api/v1/profile"
	documentsPath    = profilePath + "/documents"
)

// Doer is the subset of *client.Client used by API.
type Doer interface {
	Get(ctx context.Context, path string, opts ...client.Option) (*client.Response, error)
	Post(ctx context.Context, path string, body any, opts ...client.Option) (*client.Response, error)
	Put(ctx context.Context, path string, body any, opts ...client.Option) (*client.Response, error)
	Delete(ctx context.Context, path string, opts ...client.Option) (*client.Response, error)
}

// API exposes the backend endpoints.
type API struct {
	c Doer
}

// New wraps c.
func New(c Doer) *API {
	return &API{c: c}
}

// DashboardOverview fetches the specialist dashboard summary.
func (a *API) DashboardOverview(ctx context.Context, opts ...client.Option) (*models.DashboardOverview, error) {
	opts = append([]client.Option{client.WithTimeout(DashboardTimeout)}, opts...)

	resp, err := a.c.Get(ctx, dashboardPath, opts...)
	if err != nil {
		return nil, err
	}
	var out models.DashboardOverview
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Widget fetches the data of one dashboard widget.
func (a *API) Widget(ctx context.Context, widget models.WidgetType, opts ...client.Option) (*models.WidgetData, error) {
	opts = append([]client.Option{client.WithTimeout(DashboardTimeout)}, opts...)

	resp, err := a.c.Get(ctx, widgetPath+url.PathEscape(string(widget)), opts...)
	if err != nil {
		return nil, err
	}
	return &models.WidgetData{Type: widget, Data: resp.Data}, nil
}

// FilterPatients runs the patients filter query. The call is a read and is
// retried like a GET.
func (a *API) FilterPatients(ctx context.Context, req models.PatientsFilterRequest, opts ...client.Option) (*models.PatientsPage, error) {
	opts = append([]client.Option{client.Idempotent()}, opts...)

	resp, err := a.c.Post(ctx, patientsPath, req, opts...)
	if err != nil {
		return nil, err
	}
	var out models.PatientsPage
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	if out.Patients == nil {
		out.Patients = []models.Patient{}
	}
	return &out, nil
}

// SlotQuery filters the slot list. Dates are YYYY-MM-DD.
type SlotQuery struct {
	DateFrom string
	DateTo   string
	Status   models.SlotStatus
}

func (q SlotQuery) values() url.Values {
	v := url.Values{}
	if q.DateFrom != "" {
		v.Set("date_from", q.DateFrom)
	}
	if q.DateTo != "" {
		v.Set("date_to", q.DateTo)
	}
	if q.Status != "" {
		v.Set("status", string(q.Status))
	}
	return v
}

// Slots lists the specialist's slots.
func (a *API) Slots(ctx context.Context, q SlotQuery, opts ...client.Option) ([]models.Slot, error) {
	opts = append([]client.Option{client.WithQuery(q.values())}, opts...)

	resp, err := a.c.Get(ctx, slotsPath, opts...)
	if err != nil {
		return nil, err
	}
	return List[models.Slot](resp.Data, "slots")
}

// GenerateSlots creates slots from a schedule template.
func (a *API) GenerateSlots(ctx context.Context, req models.GenerateSlotsRequest) (*models.GenerateSlotsResult, error) {
	resp, err := a.c.Post(ctx, slotsPath+"/generate", req)
	if err != nil {
		return nil, err
	}
	var out models.GenerateSlotsResult
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// BlockSlot marks a slot unavailable.
func (a *API) BlockSlot(ctx context.Context, id, reason string) error {
	_, err := a.c.Put(ctx, slotPath(id, "block"), models.BlockSlotRequest{Reason: reason})
	return err
}

// UnblockSlot makes a blocked slot available again.
func (a *API) UnblockSlot(ctx context.Context, id string) error {
	_, err := a.c.Put(ctx, slotPath(id, "unblock"), struct{}{})
	return err
}

// SlotSummary aggregates slot counts for a date range.
func (a *API) SlotSummary(ctx context.Context, q SlotQuery, opts ...client.Option) (*models.SlotSummary, error) {
	opts = append([]client.Option{
		client.WithQuery(q.values()),
		client.WithTimeout(SummaryTimeout),
	}, opts...)

	resp, err := a.c.Get(ctx, slotsPath+"/summary", opts...)
	if err != nil {
		return nil, err
	}
	var out models.SlotSummary
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func slotPath(id, action string) string {
	return fmt.Sprintf("%s/%s/%s", slotsPath, url.PathEscape(id), action)
}

// Appointments lists appointments, optionally filtered by status.
func (a *API) Appointments(ctx context.Context, status models.AppointmentStatus, opts ...client.Option) ([]models.Appointment, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	opts = append([]client.Option{client.WithQuery(q)}, opts...)

	resp, err := a.c.Get(ctx, appointmentsPath, opts...)
	if err != nil {
		return nil, err
	}
	return List[models.Appointment](resp.Data, "appointments")
}

// UpdateAppointmentStatus moves an appointment to a new status.
func (a *API) UpdateAppointmentStatus(ctx context.Context, id string, update models.AppointmentStatusUpdate) (*models.Appointment, error) {
	path := fmt.Sprintf("%s/%s/status", appointmentsPath, url.PathEscape(id))
	resp, err := a.c.Put(ctx, path, update)
	if err != nil {
		return nil, err
	}
	var out models.Appointment
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// QuestionQuery filters forum questions.
type QuestionQuery struct {
	Search   string
	Category string
	Limit    int
	Offset   int
}

// Questions lists forum questions.
func (a *API) Questions(ctx context.Context, q QuestionQuery, opts ...client.Option) ([]models.Question, error) {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	opts = append([]client.Option{client.WithQuery(v)}, opts...)

	resp, err := a.c.Get(ctx, questionsPath, opts...)
	if err != nil {
		return nil, err
	}
	return List[models.Question](resp.Data, "questions")
}

// AskQuestion posts a new question.
func (a *API) AskQuestion(ctx context.Context, in models.QuestionInput) (*models.Question, error) {
	resp, err := a.c.Post(ctx, questionsPath, in)
	if err != nil {
		return nil, err
	}
	var out models.Question
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateQuestion edits a question.
func (a *API) UpdateQuestion(ctx context.Context, id string, in models.QuestionInput) (*models.Question, error) {
	resp, err := a.c.Put(ctx, questionPath(id), in)
	if err != nil {
		return nil, err
	}
	var out models.Question
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteQuestion removes a question.
func (a *API) DeleteQuestion(ctx context.Context, id string) error {
	_, err := a.c.Delete(ctx, questionPath(id))
	return err
}

// Answers lists the answers to a question.
func (a *API) Answers(ctx context.Context, questionID string, opts ...client.Option) ([]models.Answer, error) {
	resp, err := a.c.Get(ctx, questionPath(questionID)+"/answers", opts...)
	if err != nil {
		return nil, err
	}
	return List[models.Answer](resp.Data, "answers")
}

// PostAnswer answers a question.
func (a *API) PostAnswer(ctx context.Context, questionID string, in models.AnswerInput) (*models.Answer, error) {
	resp, err := a.c.Post(ctx, questionPath(questionID)+"/answers", in)
	if err != nil {
		return nil, err
	}
	var out models.Answer
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func questionPath(id string) string {
	return questionsPath + "/" + url.PathEscape(id)
}

// Profile fetches the signed-in user's profile.
func (a *API) Profile(ctx context.Context) (*models.Profile, error) {
	resp, err := a.c.Get(ctx, profilePath)
	if err != nil {
		return nil, err
	}
	var out models.Profile
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile saves profile changes.
func (a *API) UpdateProfile(ctx context.Context, in models.ProfileUpdate) (*models.Profile, error) {
	resp, err := a.c.Put(ctx, profilePath, in)
	if err != nil {
		return nil, err
	}
	var out models.Profile
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Documents lists the profile documents.
func (a *API) Documents(ctx context.Context) ([]models.Document, error) {
	resp, err := a.c.Get(ctx, documentsPath)
	if err != nil {
		return nil, err
	}
	return List[models.Document](resp.Data, "documents")
}

// DownloadDocument returns the raw bytes of a document.
func (a *API) DownloadDocument(ctx context.Context, id string) ([]byte, error) {
	resp, err := a.c.Get(ctx, documentsPath+"/"+url.PathEscape(id)+"/download",
		client.WithAccept("application/octet-stream"),
		client.WithTimeout(DownloadTimeout),
	)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

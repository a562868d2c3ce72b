// Package models defines the wire types exchanged with the platform backend.
package models

import (
	"encoding/json"
	"time"
)

// DashboardOverview is the specialist dashboard summary.
type DashboardOverview struct {
	TotalPatients        int                `json:"total_patients"`
	ActivePatients       int                `json:"active_patients"`
	AppointmentsToday    int                `json:"appointments_today"`
	AppointmentsUpcoming int                `json:"appointments_upcoming"`
	PendingQuestions     int                `json:"pending_questions"`
	Revenue              float64            `json:"revenue"`
	Rating               float64            `json:"rating"`
	Stats                map[string]float64 `json:"stats,omitempty"`
	UpdatedAt            time.Time          `json:"updated_at,omitempty"`
}

// WidgetType names a dashboard widget.
type WidgetType string

const (
	WidgetAppointments WidgetType = "appointments"
	WidgetPatients     WidgetType = "patients"
	WidgetRevenue      WidgetType = "revenue"
	WidgetForum        WidgetType = "forum"
	WidgetSchedule     WidgetType = "schedule"
)

// WidgetData is the payload of one widget; its shape depends on the type.
type WidgetData struct {
	Type WidgetType      `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Patient is one entry of the specialist's patient list.
type Patient struct {
	ID              string    `json:"id"`
	FullName        string    `json:"full_name"`
	Email           string    `json:"email,omitempty"`
	Phone           string    `json:"phone,omitempty"`
	Status          string    `json:"status"`
	LastAppointment time.Time `json:"last_appointment,omitempty"`
	NextAppointment time.Time `json:"next_appointment,omitempty"`
	TotalVisits     int       `json:"total_visits"`
}

// PatientsFilterRequest is the body of the patients filter endpoint.
type PatientsFilterRequest struct {
	Status string `json:"status,omitempty"`
	Search string `json:"search,omitempty"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// PatientsPage is the patients filter response.
type PatientsPage struct {
	Patients   []Patient `json:"patients"`
	TotalCount int       `json:"total_count"`
	Page       int       `json:"page"`
	HasMore    bool      `json:"has_more"`
}

// SlotStatus is the booking state of a slot.
type SlotStatus string

const (
	SlotAvailable SlotStatus = "available"
	SlotBooked    SlotStatus = "booked"
	SlotBlocked   SlotStatus = "blocked"
)

// Slot is a bookable time window of a specialist.
type Slot struct {
	ID        string     `json:"id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
	Status    SlotStatus `json:"status"`
	Reason    string     `json:"reason,omitempty"`
}

// GenerateSlotsRequest asks the backend to create slots for a date range.
type GenerateSlotsRequest struct {
	DateFrom        string   `json:"date_from"`
	DateTo          string   `json:"date_to"`
	StartTime       string   `json:"start_time"` // "09:00"
	EndTime         string   `json:"end_time"`   // "17:00"
	DurationMinutes int      `json:"duration_minutes"`
	BreakMinutes    int      `json:"break_minutes,omitempty"`
	Weekdays        []int    `json:"weekdays,omitempty"`
	Exclude         []string `json:"exclude_dates,omitempty"`
}

// BlockSlotRequest carries the reason a slot is blocked.
type BlockSlotRequest struct {
	Reason string `json:"reason,omitempty"`
}

// SlotSummary aggregates slot counts for a period.
type SlotSummary struct {
	Total     int            `json:"total"`
	Available int            `json:"available"`
	Booked    int            `json:"booked"`
	Blocked   int            `json:"blocked"`
	ByDay     map[string]int `json:"by_day,omitempty"`
}

// GenerateSlotsResult reports how many slots were created.
type GenerateSlotsResult struct {
	Created int    `json:"created"`
	Skipped int    `json:"skipped"`
	Message string `json:"message,omitempty"`
}

// AppointmentStatus is the state of an appointment.
type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentNoShow    AppointmentStatus = "no_show"
)

var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentPending:   {AppointmentConfirmed, AppointmentCancelled},
	AppointmentConfirmed: {AppointmentCompleted, AppointmentCancelled, AppointmentNoShow},
}

// CanTransition reports whether an appointment may move from s to next.
func (s AppointmentStatus) CanTransition(next AppointmentStatus) bool {
	for _, allowed := range appointmentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Appointment is a booked consultation.
type Appointment struct {
	ID           string            `json:"id"`
	PatientID    string            `json:"patient_id"`
	PatientName  string            `json:"patient_name,omitempty"`
	SpecialistID string            `json:"specialist_id"`
	SlotID       string            `json:"slot_id,omitempty"`
	StartTime    time.Time         `json:"start_time"`
	EndTime      time.Time         `json:"end_time"`
	Status       AppointmentStatus `json:"status"`
	Notes        string            `json:"notes,omitempty"`
}

// AppointmentStatusUpdate is the body of a status transition.
type AppointmentStatusUpdate struct {
	Status AppointmentStatus `json:"status"`
	Reason string            `json:"reason,omitempty"`
}

// Question is a forum question.
type Question struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Category    string    `json:"category,omitempty"`
	AuthorID    string    `json:"author_id"`
	AnswerCount int       `json:"answer_count"`
	IsAnonymous bool      `json:"is_anonymous"`
	CreatedAt   time.Time `json:"created_at"`
}

// QuestionInput creates or edits a question.
type QuestionInput struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	Category    string `json:"category,omitempty"`
	IsAnonymous bool   `json:"is_anonymous"`
}

// Answer is a specialist's reply to a question.
type Answer struct {
	ID           string    `json:"id"`
	QuestionID   string    `json:"question_id"`
	SpecialistID string    `json:"specialist_id"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"`
}

// AnswerInput creates an answer.
type AnswerInput struct {
	Body string `json:"body"`
}

// Profile is the signed-in user's profile.
type Profile struct {
	ID             string   `json:"id"`
	FullName       string   `json:"full_name"`
	Email          string   `json:"email"`
	Phone          string   `json:"phone,omitempty"`
	Role           string   `json:"role"`
	Specialization string   `json:"specialization,omitempty"`
	Bio            string   `json:"bio,omitempty"`
	Languages      []string `json:"languages,omitempty"`
}

// ProfileUpdate holds the editable profile fields.
type ProfileUpdate struct {
	FullName       string   `json:"full_name,omitempty"`
	Phone          string   `json:"phone,omitempty"`
	Specialization string   `json:"specialization,omitempty"`
	Bio            string   `json:"bio,omitempty"`
	Languages      []string `json:"languages,omitempty"`
}

// Document is a file attached to a profile (diplomas, certificates).
type Document struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Verified    bool      `json:"verified"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

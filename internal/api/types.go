package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue-scheduling/internal/appointment"
	"github.com/hackgods/clinic-queue-scheduling/internal/queue"
)

type BookAppointmentRequest struct {
	PatientID       string     `json:"patient_id"`
	PractitionerID  *string    `json:"practitioner_id,omitempty"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Channel         string     `json:"channel"`
	Notes           string     `json:"notes,omitempty"`
}

type StatusRequest struct {
	Status string `json:"status"`
}

type PromoteRequest struct {
	Reason string `json:"reason"`
}

type ReorderRequest struct {
	Position *int `json:"position"`
}

type SwapRequest struct {
	A string `json:"a"`
	B string `json:"b"`
}

type AppointmentResponse struct {
	ID                    uuid.UUID  `json:"id"`
	PatientID             uuid.UUID  `json:"patient_id"`
	PractitionerID        *uuid.UUID `json:"practitioner_id,omitempty"`
	StartTime             time.Time  `json:"start_time"`
	EndTime               time.Time  `json:"end_time"`
	DurationMinutes       int        `json:"duration_minutes"`
	Status                string     `json:"status"`
	Channel               string     `json:"channel"`
	Notes                 string     `json:"notes,omitempty"`
	PredictedCompletionAt *time.Time `json:"predicted_completion_at,omitempty"`
}

type AvailabilityResponse struct {
	Date           string             `json:"date"`
	PractitionerID *uuid.UUID         `json:"practitioner_id,omitempty"`
	Slots          []appointment.Slot `json:"slots"`
}

type QueueEntryResponse struct {
	ID                    uuid.UUID  `json:"id"`
	AppointmentID         uuid.UUID  `json:"appointment_id"`
	Rank                  int        `json:"rank"`
	PatientName           string     `json:"patient_name"`
	PractitionerID        *uuid.UUID `json:"practitioner_id,omitempty"`
	Priority              string     `json:"priority"`
	Status                string     `json:"status"`
	ArrivalPosition       int        `json:"arrival_position"`
	ManualPosition        *int       `json:"manual_position,omitempty"`
	EffectivePosition     int        `json:"effective_position"`
	Reason                string     `json:"reason,omitempty"`
	EstimatedWaitMinutes  int        `json:"estimated_wait_minutes"`
	PredictedCompletionAt *time.Time `json:"predicted_completion_at,omitempty"`
}

type QueueResponse struct {
	Date        string               `json:"date,omitempty"`
	Version     uint64               `json:"version,omitempty"`
	RefreshedAt *time.Time           `json:"refreshed_at,omitempty"`
	Entries     []QueueEntryResponse `json:"entries"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                    a.ID,
		PatientID:             a.PatientID,
		PractitionerID:        a.PractitionerID,
		StartTime:             a.StartTime,
		EndTime:               a.EndTime(),
		DurationMinutes:       a.DurationMinutes,
		Status:                string(a.Status),
		Channel:               string(a.Channel),
		Notes:                 a.Notes,
		PredictedCompletionAt: a.PredictedCompletionAt,
	}
}

func toQueueEntries(ranked []queue.Ranked) []QueueEntryResponse {
	out := make([]QueueEntryResponse, len(ranked))
	for i, r := range ranked {
		out[i] = QueueEntryResponse{
			ID:                    r.ID,
			AppointmentID:         r.AppointmentID,
			Rank:                  r.Rank,
			PatientName:           r.PatientName,
			PractitionerID:        r.PractitionerID,
			Priority:              string(r.Priority),
			Status:                string(r.Status),
			ArrivalPosition:       r.ArrivalPosition,
			ManualPosition:        r.ManualPosition,
			EffectivePosition:     r.EffectivePosition(),
			Reason:                r.Reason,
			EstimatedWaitMinutes:  r.EstimatedWaitMinutes,
			PredictedCompletionAt: r.PredictedCompletionAt,
		}
	}
	return out
}

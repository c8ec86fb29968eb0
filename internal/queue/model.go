package queue

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue-scheduling/internal/appointment"
)

type Priority string

const (
	PriorityEmergency Priority = "emergency"
	PriorityScheduled Priority = "scheduled"
	PriorityWalkIn    Priority = "walk_in"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityEmergency, PriorityScheduled, PriorityWalkIn:
		return true
	}
	return false
}

// Entry is a queue row joined with the appointment it was created for.
type Entry struct {
	ID              uuid.UUID
	AppointmentID   uuid.UUID
	QueueDate       time.Time
	ArrivalPosition int
	ManualPosition  *int
	Priority        Priority
	Status          Status
	Reason          string
	CreatedAt       time.Time
	UpdatedAt       time.Time

	PatientID             uuid.UUID
	PatientName           string
	PractitionerID        *uuid.UUID
	StartTime             time.Time
	DurationMinutes       int
	Channel               appointment.Channel
	Notes                 string
	PredictedCompletionAt *time.Time
}

// EffectivePosition is the manual override when set, else the arrival order.
func (e Entry) EffectivePosition() int {
	if e.ManualPosition != nil {
		return *e.ManualPosition
	}
	return e.ArrivalPosition
}

// Appointment rebuilds the appointment fields carried by the entry.
func (e Entry) Appointment() appointment.Appointment {
	return appointment.Appointment{
		ID:                    e.AppointmentID,
		PatientID:             e.PatientID,
		PractitionerID:        e.PractitionerID,
		StartTime:             e.StartTime,
		DurationMinutes:       e.DurationMinutes,
		Channel:               e.Channel,
		Notes:                 e.Notes,
		PredictedCompletionAt: e.PredictedCompletionAt,
	}
}

// Ranked is an entry in serving order with its derived wait.
type Ranked struct {
	Entry
	Rank                 int
	EstimatedWaitMinutes int
}

// Placement is the ordering state written back for one entry.
type Placement struct {
	ID             uuid.UUID
	Priority       Priority
	ManualPosition *int
	Reason         string
}

func placementOf(e Entry) Placement {
	return Placement{
		ID:             e.ID,
		Priority:       e.Priority,
		ManualPosition: e.ManualPosition,
		Reason:         e.Reason,
	}
}

package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusBooked     Status = "booked"
	StatusCheckedIn  Status = "checked_in"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

type Channel string

const (
	ChannelOnline    Channel = "online"
	ChannelWalkIn    Channel = "walk_in"
	ChannelEmergency Channel = "emergency"
)

// Valid reports whether c is one of the known booking channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelOnline, ChannelWalkIn, ChannelEmergency:
		return true
	}
	return false
}

// QueuePriority is the priority class a queue entry created for this channel gets.
func (c Channel) QueuePriority() string {
	switch c {
	case ChannelEmergency:
		return "emergency"
	case ChannelWalkIn:
		return "walk_in"
	default:
		return "scheduled"
	}
}

// ArrivesImmediately is true for channels that skip the calendar and go
// straight into today's queue.
func (c Channel) ArrivesImmediately() bool {
	return c == ChannelWalkIn || c == ChannelEmergency
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	Phone     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Practitioner struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID                    uuid.UUID
	PatientID             uuid.UUID
	PractitionerID        *uuid.UUID // nil means any available practitioner
	StartTime             time.Time
	DurationMinutes       int
	Status                Status
	Channel               Channel
	Notes                 string
	PredictedCompletionAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (a Appointment) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

func (a Appointment) EndTime() time.Time {
	return a.StartTime.Add(a.Duration())
}

// Interval is the occupied span this appointment contributes to availability.
func (a Appointment) Interval() Interval {
	return Interval{
		PractitionerID: a.PractitionerID,
		Start:          a.StartTime,
		Duration:       a.Duration(),
	}
}

// NewAppointment is the input for inserting an appointment row.
type NewAppointment struct {
	PatientID       uuid.UUID
	PractitionerID  *uuid.UUID
	StartTime       time.Time
	DurationMinutes int
	Status          Status
	Channel         Channel
	Notes           string
}

// CheckIn describes the queue entry created together with a check-in.
type CheckIn struct {
	QueueDate time.Time
	Priority  string
}

package queue

import (
	"fmt"

	"github.com/hackgods/clinic-queue-scheduling/internal/apperr"
	"github.com/hackgods/clinic-queue-scheduling/internal/appointment"
)

type Status string

const (
	StatusWaiting     Status = "waiting"
	StatusCalled      Status = "called"
	StatusInTreatment Status = "in_treatment"
	StatusCompleted   Status = "completed"
	StatusNoShow      Status = "no_show"
	StatusSkipped     Status = "skipped"
	StatusCancelled   Status = "cancelled"
)

var ErrInvalidStatusTransition = fmt.Errorf("queue entry: %w", apperr.ErrInvalidTransition)

// transitions moves forward only along waiting, called, in_treatment,
// completed. Skipped is a side state: a skipped patient can be called again
// but never returns to waiting.
var transitions = map[Status][]Status{
	StatusWaiting:     {StatusCalled, StatusInTreatment, StatusSkipped, StatusNoShow, StatusCancelled},
	StatusCalled:      {StatusInTreatment, StatusSkipped, StatusNoShow, StatusCancelled},
	StatusSkipped:     {StatusCalled, StatusNoShow, StatusCancelled},
	StatusInTreatment: {StatusCompleted},
	StatusCompleted:   nil,
	StatusNoShow:      nil,
	StatusCancelled:   nil,
}

func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := transitions[s]; !ok {
		return "", apperr.InvalidArgument("unknown queue status %q", raw)
	}
	return s, nil
}

// Active reports whether entries in s still appear on the board.
func (s Status) Active() bool {
	return len(transitions[s]) > 0
}

func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, from, to)
	}
	return nil
}

// AppointmentStatusFor is the appointment status mirrored when an entry moves
// to s. ok is false for called and skipped, which leave the appointment
// checked in.
func AppointmentStatusFor(s Status) (appointment.Status, bool) {
	switch s {
	case StatusInTreatment:
		return appointment.StatusInProgress, true
	case StatusCompleted:
		return appointment.StatusCompleted, true
	case StatusNoShow:
		return appointment.StatusNoShow, true
	case StatusCancelled:
		return appointment.StatusCancelled, true
	}
	return "", false
}

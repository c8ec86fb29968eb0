package appointment

import (
	"fmt"

	"github.com/hackgods/clinic-queue-scheduling/internal/apperr"
)

// transitions is the only place allowed appointment status changes are defined.
var transitions = map[Status][]Status{
	StatusBooked:     {StatusCheckedIn, StatusCancelled, StatusNoShow},
	StatusCheckedIn:  {StatusInProgress, StatusCancelled, StatusNoShow},
	StatusInProgress: {StatusCompleted},
	StatusCompleted:  nil,
	StatusCancelled:  nil,
	StatusNoShow:     nil,
}

// ParseStatus converts a wire value into a Status, rejecting unknown values.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if _, ok := transitions[s]; !ok {
		return "", apperr.InvalidArgument("unknown appointment status %q", raw)
	}
	return s, nil
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
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

// QueueStatusFor is the queue entry status mirrored when an appointment moves
// to s. An empty result means the queue entry is left as is.
func QueueStatusFor(s Status) string {
	switch s {
	case StatusInProgress:
		return "in_treatment"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	case StatusNoShow:
		return "no_show"
	}
	return ""
}

// QueueSourcesFor lists the queue entry statuses that may move to
// QueueStatusFor(s). A queue entry in any other status is not overwritten.
func QueueSourcesFor(s Status) []string {
	switch s {
	case StatusInProgress:
		return []string{"waiting", "called"}
	case StatusCompleted:
		return []string{"in_treatment"}
	case StatusCancelled, StatusNoShow:
		return []string{"waiting", "called", "skipped"}
	}
	return nil
}

// SourcesOf lists the statuses from which to can be reached, in table order.
func SourcesOf(to Status) []Status {
	var out []Status
	for _, from := range []Status{StatusBooked, StatusCheckedIn, StatusInProgress} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

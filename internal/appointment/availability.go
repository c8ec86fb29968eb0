package appointment

import (
	"iter"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue-scheduling/internal/apperr"
)

// Interval is an occupied half-open span [Start, Start+Duration).
type Interval struct {
	PractitionerID *uuid.UUID
	Start          time.Time
	Duration       time.Duration
}

func (i Interval) End() time.Time {
	return i.Start.Add(i.Duration)
}

type Slot struct {
	Start     time.Time `json:"start"`
	Available bool      `json:"available"`
}

// Window is the clinic operating window for one day.
type Window struct {
	OpenHour    int
	CloseHour   int
	Granularity time.Duration
	Location    *time.Location
}

func (w Window) validate() error {
	if w.Granularity <= 0 {
		return apperr.InvalidArgument("granularity must be positive, got %s", w.Granularity)
	}
	if w.OpenHour < 0 || w.CloseHour > 24 || w.OpenHour >= w.CloseHour {
		return apperr.InvalidArgument("invalid operating hours %d-%d", w.OpenHour, w.CloseHour)
	}
	return nil
}

func (w Window) location() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

// Bounds returns the opening and closing instants of the window on the
// calendar day of date. The calendar fields of date are used as given.
func (w Window) Bounds(date time.Time) (open, close time.Time) {
	y, m, d := date.Date()
	loc := w.location()
	open = time.Date(y, m, d, w.OpenHour, 0, 0, 0, loc)
	close = time.Date(y, m, d, w.CloseHour, 0, 0, 0, loc)
	return open, close
}

// Contains reports whether [start, start+d) lies inside the window.
func (w Window) Contains(start time.Time, d time.Duration) bool {
	open, close := w.Bounds(start.In(w.location()))
	return !start.Before(open) && !start.Add(d).After(close)
}

type AvailabilityQuery struct {
	Date           time.Time
	PractitionerID *uuid.UUID
	Window         Window
	Occupied       []Interval
	// Now marks the boundary of the past. Zero disables past checks.
	Now time.Time
}

// Slots returns the candidate slots of the query's day in start order. The
// sequence is lazy and can be ranged over any number of times.
func Slots(q AvailabilityQuery) (iter.Seq[Slot], error) {
	if q.Date.IsZero() {
		return nil, apperr.InvalidArgument("date is required")
	}
	if err := q.Window.validate(); err != nil {
		return nil, err
	}

	open, close := q.Window.Bounds(q.Date)
	step := q.Window.Granularity
	occupied := append([]Interval(nil), q.Occupied...)
	pastDay := !q.Now.IsZero() && dayBefore(open, q.Now.In(q.Window.location()))

	return func(yield func(Slot) bool) {
		for t := open; !t.Add(step).After(close); t = t.Add(step) {
			available := !pastDay && (q.Now.IsZero() || !t.Before(q.Now))
			if available {
				_, blocked := firstOverlap(occupied, q.PractitionerID, t, t.Add(step))
				available = !blocked
			}
			if !yield(Slot{Start: t, Available: available}) {
				return
			}
		}
	}, nil
}

// Conflicts reports the first occupied interval that would block booking
// [start, start+d) for the practitioner, using the same matching rule as Slots.
func Conflicts(occupied []Interval, practitionerID *uuid.UUID, start time.Time, d time.Duration) (Interval, bool) {
	return firstOverlap(occupied, practitionerID, start, start.Add(d))
}

func firstOverlap(occupied []Interval, practitionerID *uuid.UUID, start, end time.Time) (Interval, bool) {
	for _, occ := range occupied {
		if !blocksPractitioner(occ, practitionerID) {
			continue
		}
		if start.Before(occ.End()) && end.After(occ.Start) {
			return occ, true
		}
	}
	return Interval{}, false
}

// blocksPractitioner: an unfiltered query and an unassigned occupied interval
// both match everything.
func blocksPractitioner(occ Interval, filter *uuid.UUID) bool {
	if filter == nil || occ.PractitionerID == nil {
		return true
	}
	return *occ.PractitionerID == *filter
}

func dayBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}

package queue

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue-scheduling/internal/apperr"
)

var ErrEntryNotFound = fmt.Errorf("queue entry %w", apperr.ErrNotFound)

// The functions below decide a mutation against a snapshot of one day's
// active entries. They never modify the snapshot; callers write the returned
// placements and refetch.

func find(active []Entry, id uuid.UUID) (Entry, error) {
	for _, e := range active {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrEntryNotFound, id)
}

// Promote makes the entry an emergency placed ahead of every active entry.
func Promote(active []Entry, id uuid.UUID, reason string) (Placement, error) {
	target, err := find(active, id)
	if err != nil {
		return Placement{}, err
	}

	lowest := target.EffectivePosition()
	for _, e := range active {
		lowest = min(lowest, e.EffectivePosition())
	}

	pos := lowest - 1
	target.Priority = PriorityEmergency
	target.ManualPosition = &pos
	target.Reason = reason
	return placementOf(target), nil
}

// Reorder pins the entry at position. Siblings keep their positions; ties are
// settled by Compare.
func Reorder(active []Entry, id uuid.UUID, position int) (Placement, error) {
	if position < 1 {
		return Placement{}, apperr.InvalidArgument("position must be at least 1, got %d", position)
	}
	target, err := find(active, id)
	if err != nil {
		return Placement{}, err
	}

	target.ManualPosition = &position
	return placementOf(target), nil
}

// Swap exchanges the effective positions of two entries. Priorities are left
// alone, so swapping across tiers changes positions but not tiers.
func Swap(active []Entry, a, b uuid.UUID) ([2]Placement, error) {
	if a == b {
		return [2]Placement{}, apperr.InvalidArgument("cannot swap an entry with itself")
	}
	ea, err := find(active, a)
	if err != nil {
		return [2]Placement{}, err
	}
	eb, err := find(active, b)
	if err != nil {
		return [2]Placement{}, err
	}

	posA, posB := eb.EffectivePosition(), ea.EffectivePosition()
	ea.ManualPosition = &posA
	eb.ManualPosition = &posB
	return [2]Placement{placementOf(ea), placementOf(eb)}, nil
}

// Advance validates moving the entry to status to.
func Advance(active []Entry, id uuid.UUID, to Status) (Entry, error) {
	target, err := find(active, id)
	if err != nil {
		return Entry{}, err
	}
	if err := ValidateTransition(target.Status, to); err != nil {
		return Entry{}, err
	}
	return target, nil
}

// Apply returns a copy of active with placements written over it.
func Apply(active []Entry, placements ...Placement) []Entry {
	out := make([]Entry, len(active))
	copy(out, active)
	for _, p := range placements {
		for i := range out {
			if out[i].ID == p.ID {
				out[i].Priority = p.Priority
				out[i].ManualPosition = p.ManualPosition
				out[i].Reason = p.Reason
			}
		}
	}
	return out
}

// ApplyStatus returns a copy of active with the entry moved to status to.
// An entry leaving the active statuses is dropped.
func ApplyStatus(active []Entry, id uuid.UUID, to Status, predicted *time.Time) []Entry {
	out := make([]Entry, 0, len(active))
	for _, e := range active {
		if e.ID == id {
			if !to.Active() {
				continue
			}
			e.Status = to
			if predicted != nil {
				at := *predicted
				e.PredictedCompletionAt = &at
			}
		}
		out = append(out, e)
	}
	return out
}

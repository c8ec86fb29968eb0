package queue

import (
	"bytes"
	"cmp"
	"slices"
	"time"
)

func tier(p Priority) int {
	if p == PriorityEmergency {
		return 0
	}
	return 1
}

// Compare orders entries for serving: emergencies first, then effective
// position, then arrival position, then id. Distinct entries never compare
// equal.
func Compare(a, b Entry) int {
	if c := cmp.Compare(tier(a.Priority), tier(b.Priority)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.EffectivePosition(), b.EffectivePosition()); c != 0 {
		return c
	}
	if c := cmp.Compare(a.ArrivalPosition, b.ArrivalPosition); c != 0 {
		return c
	}
	return bytes.Compare(a.ID[:], b.ID[:])
}

// Sort orders entries in place.
func Sort(entries []Entry) {
	slices.SortStableFunc(entries, Compare)
}

// Rank sorts a copy of entries and derives each one's estimated wait from the
// remaining work of the entries ahead of it.
func Rank(entries []Entry, now time.Time) []Ranked {
	ordered := slices.Clone(entries)
	Sort(ordered)

	ranked := make([]Ranked, len(ordered))
	var ahead time.Duration
	for i, e := range ordered {
		ranked[i] = Ranked{
			Entry:                e,
			Rank:                 i + 1,
			EstimatedWaitMinutes: int(ahead / time.Minute),
		}
		ahead += remaining(e, now)
	}
	return ranked
}

func remaining(e Entry, now time.Time) time.Duration {
	switch e.Status {
	case StatusSkipped:
		return 0
	case StatusInTreatment:
		if e.PredictedCompletionAt != nil {
			return max(e.PredictedCompletionAt.Sub(now), 0)
		}
	}
	return time.Duration(e.DurationMinutes) * time.Minute
}

package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// ListActive returns the active entries of one queue day in storage order.
	ListActive(ctx context.Context, day time.Time) ([]Entry, error)

	// ApplyPlacements writes all placements in one transaction. An entry that
	// is no longer active fails the whole batch.
	ApplyPlacements(ctx context.Context, placements ...Placement) error

	// UpdateStatus moves the entry from -> to only if it is still in from and
	// mirrors the appointment status in the same transaction.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, predictedCompletion *time.Time) error
}

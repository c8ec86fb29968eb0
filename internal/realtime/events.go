// Package realtime carries "something changed" signals between writers,
// server-side view states and browser clients. Events are hints to refetch,
// never deltas to apply.
package realtime

import (
	"context"
	"time"
)

const (
	TableAppointments = "appointments"
	TableQueueEntries = "queue_entries"

	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

type ChangeEvent struct {
	Table string    `json:"table"`
	Op    string    `json:"op"`
	ID    string    `json:"id,omitempty"`
	At    time.Time `json:"at"`
}

// Publisher announces a committed write.
type Publisher interface {
	Publish(ctx context.Context, ev ChangeEvent) error
}

// NopPublisher drops events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, ChangeEvent) error { return nil }

package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-queue-scheduling/internal/db"
)

const (
	EventAppointmentBooked = "APPOINTMENT_BOOKED"
	EventAppointmentStatus = "APPOINTMENT_STATUS_CHANGED"
	EventAppointmentNoShow = "APPOINTMENT_NO_SHOW"
	EventQueuePromoted     = "QUEUE_ENTRY_PROMOTED"
	EventQueueReordered    = "QUEUE_ENTRY_REORDERED"
	EventQueueSwapped      = "QUEUE_ENTRIES_SWAPPED"
	EventQueueStatus       = "QUEUE_ENTRY_STATUS_CHANGED"
	EntityAppointment      = "appointment"
	EntityQueueEntry       = "queue_entry"
)

type Entry struct {
	EventType  string
	EntityType string
	EntityID   uuid.UUID
	Payload    map[string]any
	CreatedAt  time.Time
}

// Recorder writes audit trail entries. Recording is a side effect of a
// successful write and never fails the caller's operation.
type Recorder interface {
	Record(ctx context.Context, e Entry)
}

type PgRecorder struct {
	exec   db.Querier
	logger zerolog.Logger
}

func NewPgRecorder(exec db.Querier, logger zerolog.Logger) *PgRecorder {
	return &PgRecorder{exec: exec, logger: logger}
}

func (r *PgRecorder) Record(ctx context.Context, e Entry) {
	if err := r.insert(ctx, e); err != nil {
		r.logger.Error().Err(err).
			Str("event_type", e.EventType).
			Str("entity_id", e.EntityID.String()).
			Msg("failed to insert audit entry")
	}
}

func (r *PgRecorder) insert(ctx context.Context, e Entry) error {
	var data []byte
	if e.Payload != nil {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshal audit payload: %w", err)
		}
		data = b
	}

	var entityID *uuid.UUID
	if e.EntityID != uuid.Nil {
		id := e.EntityID
		entityID = &id
	}

	_, err := r.exec.Exec(ctx, `
		INSERT INTO event_logs (event_type, entity_type, entity_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, e.EventType, e.EntityType, entityID, data, nullableTime(e.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Nop discards entries.
type Nop struct{}

func (Nop) Record(context.Context, Entry) {}

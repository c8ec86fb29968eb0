package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgRecorderInsertsEntry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	created := time.Date(2030, 1, 15, 9, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO event_logs").
		WithArgs(EventQueuePromoted, EntityQueueEntry, &id, []byte(`{"reason":"swelling"}`), &created).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := NewPgRecorder(mock, zerolog.Nop())
	rec.Record(context.Background(), Entry{
		EventType:  EventQueuePromoted,
		EntityType: EntityQueueEntry,
		EntityID:   id,
		Payload:    map[string]any{"reason": "swelling"},
		CreatedAt:  created,
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgRecorderSwallowsErrors(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO event_logs").WillReturnError(errors.New("db down"))

	rec := NewPgRecorder(mock, zerolog.Nop())
	assert.NotPanics(t, func() {
		rec.Record(context.Background(), Entry{EventType: EventAppointmentBooked, EntityType: EntityAppointment})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

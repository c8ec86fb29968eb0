package queue

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-queue-scheduling/internal/apperr"
	"github.com/hackgods/clinic-queue-scheduling/internal/appointment"
	"github.com/hackgods/clinic-queue-scheduling/internal/db"
)

var entryColumns = []string{
	"id", "appointment_id", "queue_date", "arrival_position", "manual_position",
	"priority", "status", "reason", "created_at", "updated_at",
	"patient_id", "name", "practitioner_id", "start_time", "duration_minutes",
	"channel", "notes", "predicted_completion_at",
}

func TestPgListActive(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	day := time.Date(2030, 1, 15, 0, 0, 0, 0, time.UTC)
	at := time.Date(2030, 1, 15, 9, 5, 0, 0, time.UTC)
	first, second := uuid.New(), uuid.New()
	practitioner := uuid.New()

	rows := pgxmock.NewRows(entryColumns).
		AddRow(first, uuid.New(), day, 1, (*int)(nil), "scheduled", "waiting", "", at, at,
			uuid.New(), "Ada Lovelace", &practitioner, at, 30, "online", "", (*time.Time)(nil)).
		AddRow(second, uuid.New(), day, 2, ptr(-1), "emergency", "called", "abscess", at, at,
			uuid.New(), "Alan Turing", (*uuid.UUID)(nil), at, 45, "emergency", "", (*time.Time)(nil))

	mock.ExpectQuery("FROM queue_entries q").
		WithArgs(db.Date(day)).
		WillReturnRows(rows)

	repo := NewPgRepository(mock)
	got, err := repo.ListActive(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, first, got[0].ID)
	assert.Nil(t, got[0].ManualPosition)
	assert.Equal(t, PriorityScheduled, got[0].Priority)
	assert.Equal(t, "Ada Lovelace", got[0].PatientName)
	require.NotNil(t, got[0].PractitionerID)
	assert.Equal(t, practitioner, *got[0].PractitionerID)

	assert.Equal(t, second, got[1].ID)
	assert.Equal(t, -1, got[1].EffectivePosition())
	assert.Equal(t, StatusCalled, got[1].Status)
	assert.Equal(t, appointment.ChannelEmergency, got[1].Channel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgApplyPlacementsInOneTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := Placement{ID: uuid.New(), Priority: PriorityScheduled, ManualPosition: ptr(4)}
	b := Placement{ID: uuid.New(), Priority: PriorityWalkIn, ManualPosition: ptr(2)}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE queue_entries").
		WithArgs(a.ID, "scheduled", a.ManualPosition, "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE queue_entries").
		WithArgs(b.ID, "walk_in", b.ManualPosition, "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	require.NoError(t, NewPgRepository(mock).ApplyPlacements(context.Background(), a, b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgApplyPlacementsRollsBackWhenEntryLeftQueue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	a := Placement{ID: uuid.New(), Priority: PriorityScheduled, ManualPosition: ptr(4)}
	b := Placement{ID: uuid.New(), Priority: PriorityScheduled, ManualPosition: ptr(1)}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE queue_entries").
		WithArgs(a.ID, "scheduled", a.ManualPosition, "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE queue_entries").
		WithArgs(b.ID, "scheduled", b.ManualPosition, "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err = NewPgRepository(mock).ApplyPlacements(context.Background(), a, b)
	assert.ErrorIs(t, err, ErrEntryNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateStatusMirrorsAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, apptID := uuid.New(), uuid.New()
	predicted := time.Date(2030, 1, 15, 10, 40, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE queue_entries").
		WithArgs(id, "in_treatment", "waiting").
		WillReturnRows(pgxmock.NewRows([]string{"appointment_id"}).AddRow(apptID))
	mock.ExpectExec("UPDATE appointments").
		WithArgs(apptID, "in_progress", []string{"checked_in"}, &predicted).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err = NewPgRepository(mock).UpdateStatus(context.Background(), id, StatusWaiting, StatusInTreatment, &predicted)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateStatusCalledLeavesAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE queue_entries").
		WithArgs(id, "called", "waiting").
		WillReturnRows(pgxmock.NewRows([]string{"appointment_id"}).AddRow(uuid.New()))
	mock.ExpectCommit()

	require.NoError(t, NewPgRepository(mock).UpdateStatus(context.Background(), id, StatusWaiting, StatusCalled, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateStatusConcurrentChange(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE queue_entries").
		WithArgs(id, "called", "waiting").
		WillReturnRows(pgxmock.NewRows([]string{"appointment_id"}))
	mock.ExpectRollback()

	err = NewPgRepository(mock).UpdateStatus(context.Background(), id, StatusWaiting, StatusCalled, nil)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateStatusRollsBackWhenAppointmentDisagrees(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, apptID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE queue_entries").
		WithArgs(id, "completed", "in_treatment").
		WillReturnRows(pgxmock.NewRows([]string{"appointment_id"}).AddRow(apptID))
	mock.ExpectExec("UPDATE appointments").
		WithArgs(apptID, "completed", []string{"in_progress"}, (*time.Time)(nil)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err = NewPgRepository(mock).UpdateStatus(context.Background(), id, StatusInTreatment, StatusCompleted, nil)
	assert.ErrorIs(t, err, appointment.ErrInvalidStatusTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

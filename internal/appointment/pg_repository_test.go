package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/clinic-queue-scheduling/internal/apperr"
	"github.com/hackgods/clinic-queue-scheduling/internal/db"
)

var apptColumns = []string{
	"id", "patient_id", "practitioner_id", "start_time", "duration_minutes", "status",
	"channel", "notes", "predicted_completion_at", "created_at", "updated_at",
}

func TestPgGetAppointmentNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectQuery("FROM appointments").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(apptColumns))

	_, err = NewPgRepository(mock).GetAppointmentByID(context.Background(), id)
	assert.ErrorIs(t, err, ErrAppointmentNotFound)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCreateWalkInWithQueueEntry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	apptID, patientID := uuid.New(), uuid.New()
	start := time.Date(2030, 1, 15, 9, 12, 0, 0, time.UTC)
	day := time.Date(2030, 1, 15, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), patientID, (*uuid.UUID)(nil), start, 20, "checked_in", "walk_in", "toothache").
		WillReturnRows(pgxmock.NewRows(apptColumns).
			AddRow(apptID, patientID, (*uuid.UUID)(nil), start, 20, "checked_in", "walk_in", "toothache", (*time.Time)(nil), start, start))
	mock.ExpectExec("INSERT INTO queue_entries").
		WithArgs(pgxmock.AnyArg(), apptID, db.Date(day), "walk_in").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	got, err := NewPgRepository(mock).CreateAppointment(context.Background(), NewAppointment{
		PatientID:       patientID,
		StartTime:       start,
		DurationMinutes: 20,
		Status:          StatusCheckedIn,
		Channel:         ChannelWalkIn,
		Notes:           "toothache",
	}, &CheckIn{QueueDate: day, Priority: "walk_in"})
	require.NoError(t, err)
	assert.Equal(t, apptID, got.ID)
	assert.Equal(t, StatusCheckedIn, got.Status)
	assert.Equal(t, ChannelWalkIn, got.Channel)
	assert.Nil(t, got.PractitionerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateStatusLostRace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, "cancelled", "booked", (*time.Time)(nil)).
		WillReturnRows(pgxmock.NewRows(apptColumns))
	mock.ExpectRollback()

	_, err = NewPgRepository(mock).UpdateStatus(context.Background(), id, StatusBooked, StatusCancelled, nil)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateStatusMirrorsQueue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, patientID := uuid.New(), uuid.New()
	at := time.Date(2030, 1, 15, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, "no_show", "checked_in", (*time.Time)(nil)).
		WillReturnRows(pgxmock.NewRows(apptColumns).
			AddRow(id, patientID, (*uuid.UUID)(nil), at, 30, "no_show", "online", "", (*time.Time)(nil), at, at))
	mock.ExpectExec("UPDATE queue_entries").
		WithArgs(id, "no_show", []string{"waiting", "called", "skipped"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	got, err := NewPgRepository(mock).UpdateStatus(context.Background(), id, StatusCheckedIn, StatusNoShow, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusNoShow, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateStatusRefusesQueueEntryOutsideTable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, patientID := uuid.New(), uuid.New()
	at := time.Date(2030, 1, 15, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, "in_progress", "checked_in", (*time.Time)(nil)).
		WillReturnRows(pgxmock.NewRows(apptColumns).
			AddRow(id, patientID, (*uuid.UUID)(nil), at, 30, "in_progress", "online", "", (*time.Time)(nil), at, at))
	mock.ExpectExec("UPDATE queue_entries").
		WithArgs(id, "in_treatment", []string{"waiting", "called"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT status").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("skipped"))
	mock.ExpectRollback()

	_, err = NewPgRepository(mock).UpdateStatus(context.Background(), id, StatusCheckedIn, StatusInProgress, nil)
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.ErrorIs(t, err, apperr.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPgUpdateStatusWithoutQueueEntry(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id, patientID := uuid.New(), uuid.New()
	at := time.Date(2030, 1, 16, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments").
		WithArgs(id, "cancelled", "booked", (*time.Time)(nil)).
		WillReturnRows(pgxmock.NewRows(apptColumns).
			AddRow(id, patientID, (*uuid.UUID)(nil), at, 30, "cancelled", "online", "", (*time.Time)(nil), at, at))
	mock.ExpectExec("UPDATE queue_entries").
		WithArgs(id, "cancelled", []string{"waiting", "called", "skipped"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT status").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"status"}))
	mock.ExpectCommit()

	got, err := NewPgRepository(mock).UpdateStatus(context.Background(), id, StatusBooked, StatusCancelled, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

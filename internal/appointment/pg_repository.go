package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-queue-scheduling/internal/apperr"
	"github.com/hackgods/clinic-queue-scheduling/internal/db"
)

const appointmentColumns = `id, patient_id, practitioner_id, start_time, duration_minutes, status, channel, notes, predicted_completion_at, created_at, updated_at`

// activeQueueStatuses are the queue entry statuses still shown on the board.
const activeQueueStatuses = `('waiting', 'called', 'in_treatment', 'skipped')`

type PgRepository struct {
	pool db.Pool
}

func NewPgRepository(pool db.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Email,
		&p.Phone,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, apperr.FromPg(err)
	}

	return &p, nil
}

func scanPractitioner(row pgx.Row) (*Practitioner, error) {
	var p Practitioner

	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Specialty,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPractitionerNotFound
		}
		return nil, apperr.FromPg(err)
	}

	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status, channel string

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.PractitionerID,
		&a.StartTime,
		&a.DurationMinutes,
		&status,
		&channel,
		&a.Notes,
		&a.PredictedCompletionAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, apperr.FromPg(err)
	}

	a.Status = Status(status)
	a.Channel = Channel(channel)
	return &a, nil
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, email, phone, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

func (r *PgRepository) GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, specialty, created_at, updated_at
		FROM practitioners
		WHERE id = $1
	`, id)
	return scanPractitioner(row)
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListActiveBetween(ctx context.Context, from, to time.Time, practitionerID *uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE start_time >= $1
		  AND start_time < $2
		  AND status <> 'cancelled'
		  AND ($3::uuid IS NULL OR practitioner_id = $3 OR practitioner_id IS NULL)
		ORDER BY start_time, id
	`, from, to, practitionerID)
	if err != nil {
		return nil, apperr.FromPg(err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, apperr.FromPg(err)
	}

	return result, nil
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a NewAppointment, checkIn *CheckIn) (*Appointment, error) {
	var created *Appointment

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO appointments (id, patient_id, practitioner_id, start_time, duration_minutes, status, channel, notes, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now())
			RETURNING `+appointmentColumns,
			uuid.New(), a.PatientID, a.PractitionerID, a.StartTime, a.DurationMinutes, string(a.Status), string(a.Channel), a.Notes)

		appt, err := scanAppointment(row)
		if err != nil {
			return fmt.Errorf("insert appointment: %w", err)
		}

		if checkIn != nil {
			if err := insertQueueEntry(ctx, tx, appt.ID, *checkIn); err != nil {
				return err
			}
		}

		created = appt
		return nil
	})
	if err != nil {
		return nil, apperr.FromPg(err)
	}

	return created, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, predictedCompletion *time.Time) (*Appointment, error) {
	var updated *Appointment

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		appt, err := updateStatus(ctx, tx, id, from, to, predictedCompletion)
		if err != nil {
			return err
		}

		if qs := QueueStatusFor(to); qs != "" {
			if err := mirrorQueueStatus(ctx, tx, id, qs, QueueSourcesFor(to)); err != nil {
				return err
			}
		}

		updated = appt
		return nil
	})
	if err != nil {
		return nil, apperr.FromPg(err)
	}

	return updated, nil
}

// mirrorQueueStatus moves the appointment's active queue entry to status when
// the queue allows it from the entry's current status. No active entry, or one
// already in status, is left alone. Any other entry fails the transaction.
func mirrorQueueStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status string, sources []string) error {
	tag, err := tx.Exec(ctx, `
		UPDATE queue_entries
		SET status = $2,
		    updated_at = now()
		WHERE appointment_id = $1
		  AND status = ANY($3)
	`, id, status, sources)
	if err != nil {
		return fmt.Errorf("mirror queue status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var current string
	err = tx.QueryRow(ctx, `
		SELECT status
		FROM queue_entries
		WHERE appointment_id = $1
		  AND status IN `+activeQueueStatuses+`
		LIMIT 1
	`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read queue status: %w", err)
	}
	if current == status {
		return nil
	}
	return fmt.Errorf("%w: queue entry is %s, cannot become %s", ErrInvalidStatusTransition, current, status)
}

func (r *PgRepository) CheckInAppointment(ctx context.Context, id uuid.UUID, from Status, checkIn CheckIn) (*Appointment, error) {
	var updated *Appointment

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		appt, err := updateStatus(ctx, tx, id, from, StatusCheckedIn, nil)
		if err != nil {
			return err
		}
		if err := insertQueueEntry(ctx, tx, id, checkIn); err != nil {
			return err
		}
		updated = appt
		return nil
	})
	if err != nil {
		return nil, apperr.FromPg(err)
	}

	return updated, nil
}

func (r *PgRepository) FindStaleBooked(ctx context.Context, startedBefore time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'booked'
		  AND start_time < $1
		ORDER BY start_time
	`, startedBefore)
	if err != nil {
		return nil, apperr.FromPg(err)
	}
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, apperr.FromPg(err)
	}

	return result, nil
}

func updateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to Status, predictedCompletion *time.Time) (*Appointment, error) {
	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET status = $2,
		    predicted_completion_at = COALESCE($4, predicted_completion_at),
		    updated_at = now()
		WHERE id = $1
		  AND status = $3
		RETURNING `+appointmentColumns,
		id, string(to), string(from), predictedCompletion)

	appt, err := scanAppointment(row)
	if errors.Is(err, ErrAppointmentNotFound) {
		// the row exists (the caller loaded it) but is no longer in from
		return nil, fmt.Errorf("%w: status is no longer %s", ErrInvalidStatusTransition, from)
	}
	return appt, err
}

func insertQueueEntry(ctx context.Context, tx pgx.Tx, appointmentID uuid.UUID, checkIn CheckIn) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO queue_entries (id, appointment_id, queue_date, arrival_position, priority, status, created_at, updated_at)
		SELECT $1, $2, $3, COALESCE(MAX(arrival_position), 0) + 1, $4, 'waiting', now(), now()
		FROM queue_entries
		WHERE queue_date = $3
	`, uuid.New(), appointmentID, db.Date(checkIn.QueueDate), checkIn.Priority)
	if err != nil {
		return fmt.Errorf("insert queue entry: %w", err)
	}
	return nil
}

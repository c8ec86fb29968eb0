package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/clinic-queue-scheduling/internal/apperr"
	"github.com/hackgods/clinic-queue-scheduling/internal/appointment"
	"github.com/hackgods/clinic-queue-scheduling/internal/db"
)

const activeStatuses = `('waiting', 'called', 'in_treatment', 'skipped')`

type PgRepository struct {
	pool db.Pool
}

func NewPgRepository(pool db.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	var priority, status, channel string

	err := row.Scan(
		&e.ID,
		&e.AppointmentID,
		&e.QueueDate,
		&e.ArrivalPosition,
		&e.ManualPosition,
		&priority,
		&status,
		&e.Reason,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.PatientID,
		&e.PatientName,
		&e.PractitionerID,
		&e.StartTime,
		&e.DurationMinutes,
		&channel,
		&e.Notes,
		&e.PredictedCompletionAt,
	)
	if err != nil {
		return Entry{}, err
	}

	e.Priority = Priority(priority)
	e.Status = Status(status)
	e.Channel = appointment.Channel(channel)
	return e, nil
}

func (r *PgRepository) ListActive(ctx context.Context, day time.Time) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT q.id, q.appointment_id, q.queue_date, q.arrival_position, q.manual_position,
		       q.priority, q.status, q.reason, q.created_at, q.updated_at,
		       a.patient_id, p.name, a.practitioner_id, a.start_time, a.duration_minutes,
		       a.channel, a.notes, a.predicted_completion_at
		FROM queue_entries q
		JOIN appointments a ON a.id = q.appointment_id
		JOIN patients p ON p.id = a.patient_id
		WHERE q.queue_date = $1
		  AND q.status IN `+activeStatuses+`
		ORDER BY q.arrival_position
	`, db.Date(day))
	if err != nil {
		return nil, apperr.FromPg(err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, apperr.FromPg(err)
		}
		result = append(result, e)
	}

	if err := rows.Err(); err != nil {
		return nil, apperr.FromPg(err)
	}

	return result, nil
}

func (r *PgRepository) ApplyPlacements(ctx context.Context, placements ...Placement) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, p := range placements {
			tag, err := tx.Exec(ctx, `
				UPDATE queue_entries
				SET priority = $2,
				    manual_position = $3,
				    reason = $4,
				    updated_at = now()
				WHERE id = $1
				  AND status IN `+activeStatuses,
				p.ID, string(p.Priority), p.ManualPosition, p.Reason)
			if err != nil {
				return fmt.Errorf("update placement: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("%w: %s", ErrEntryNotFound, p.ID)
			}
		}
		return nil
	})
	if err != nil {
		return apperr.FromPg(err)
	}
	return nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, predictedCompletion *time.Time) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var appointmentID uuid.UUID
		err := tx.QueryRow(ctx, `
			UPDATE queue_entries
			SET status = $2,
			    updated_at = now()
			WHERE id = $1
			  AND status = $3
			RETURNING appointment_id
		`, id, string(to), string(from)).Scan(&appointmentID)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: status is no longer %s", ErrInvalidStatusTransition, from)
		}
		if err != nil {
			return fmt.Errorf("update queue status: %w", err)
		}

		apptStatus, ok := AppointmentStatusFor(to)
		if !ok {
			return nil
		}

		sources := appointment.SourcesOf(apptStatus)
		allowed := make([]string, len(sources))
		for i, s := range sources {
			allowed[i] = string(s)
		}

		tag, err := tx.Exec(ctx, `
			UPDATE appointments
			SET status = $2,
			    predicted_completion_at = COALESCE($4, predicted_completion_at),
			    updated_at = now()
			WHERE id = $1
			  AND status = ANY($3)
		`, appointmentID, string(apptStatus), allowed, predictedCompletion)
		if err != nil {
			return fmt.Errorf("mirror appointment status: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: appointment %s cannot become %s", appointment.ErrInvalidStatusTransition, appointmentID, apptStatus)
		}
		return nil
	})
	if err != nil {
		return apperr.FromPg(err)
	}
	return nil
}

package appointment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-queue-scheduling/internal/apperr"
)

var (
	ErrPatientNotFound         = fmt.Errorf("patient %w", apperr.ErrNotFound)
	ErrPractitionerNotFound    = fmt.Errorf("practitioner %w", apperr.ErrNotFound)
	ErrAppointmentNotFound     = fmt.Errorf("appointment %w", apperr.ErrNotFound)
	ErrInvalidStatusTransition = fmt.Errorf("appointment: %w", apperr.ErrInvalidTransition)
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetPractitionerByID(ctx context.Context, id uuid.UUID) (*Practitioner, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// ListActiveBetween returns non-cancelled appointments starting in [from, to),
	// optionally restricted to one practitioner, ordered by start time.
	ListActiveBetween(ctx context.Context, from, to time.Time, practitionerID *uuid.UUID) ([]Appointment, error)

	// CreateAppointment inserts the appointment and, when checkIn is not nil,
	// its queue entry in the same transaction.
	CreateAppointment(ctx context.Context, a NewAppointment, checkIn *CheckIn) (*Appointment, error)

	// UpdateStatus moves the appointment from -> to only if it is still in
	// from, mirroring the active queue entry when the new status requires it.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status, predictedCompletion *time.Time) (*Appointment, error)

	// CheckInAppointment moves the appointment to checked_in and creates its
	// queue entry in one transaction.
	CheckInAppointment(ctx context.Context, id uuid.UUID, from Status, checkIn CheckIn) (*Appointment, error)

	// No-show worker
	FindStaleBooked(ctx context.Context, startedBefore time.Time) ([]Appointment, error)
}

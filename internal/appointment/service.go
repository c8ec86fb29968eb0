package appointment

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-queue-scheduling/internal/apperr"
	"github.com/hackgods/clinic-queue-scheduling/internal/audit"
	"github.com/hackgods/clinic-queue-scheduling/internal/metrics"
	"github.com/hackgods/clinic-queue-scheduling/internal/notify"
	"github.com/hackgods/clinic-queue-scheduling/internal/realtime"
	redisclient "github.com/hackgods/clinic-queue-scheduling/internal/redis"
)

var (
	ErrSlotTaken      = fmt.Errorf("slot overlaps an existing appointment: %w", apperr.ErrConflict)
	ErrDayBeingBooked = fmt.Errorf("day is currently being booked, please retry: %w", apperr.ErrConflict)
)

// Estimator predicts how long a treatment will run once started.
type Estimator interface {
	Estimate(ctx context.Context, a Appointment) time.Duration
}

type BookRequest struct {
	PatientID       uuid.UUID
	PractitionerID  *uuid.UUID
	StartTime       time.Time // ignored for walk-ins and emergencies, which start now
	DurationMinutes int
	Channel         Channel
	Notes           string
}

type Options struct {
	Window      Window
	NoShowGrace time.Duration
	Recorder    audit.Recorder
	Publisher   realtime.Publisher
	Notifier    notify.Notifier
	Estimator   Estimator
	Metrics     *metrics.ClinicMetrics
	Logger      zerolog.Logger
	Now         func() time.Time
}

type Service struct {
	repo        Repository
	locker      redisclient.Locker
	window      Window
	noShowGrace time.Duration
	recorder    audit.Recorder
	publisher   realtime.Publisher
	notifier    notify.Notifier
	estimator   Estimator
	metrics     *metrics.ClinicMetrics
	logger      zerolog.Logger
	now         func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, opts Options) *Service {
	s := &Service{
		repo:        repo,
		locker:      locker,
		window:      opts.Window,
		noShowGrace: opts.NoShowGrace,
		recorder:    opts.Recorder,
		publisher:   opts.Publisher,
		notifier:    opts.Notifier,
		estimator:   opts.Estimator,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		now:         opts.Now,
	}
	if s.recorder == nil {
		s.recorder = audit.Nop{}
	}
	if s.publisher == nil {
		s.publisher = realtime.NopPublisher{}
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *Service) location() *time.Location {
	if s.window.Location != nil {
		return s.window.Location
	}
	return time.UTC
}

// day returns midnight of t's calendar day in the clinic location.
func (s *Service) day(t time.Time) time.Time {
	y, m, d := t.In(s.location()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.location())
}

// Availability computes the bookable slots of date, optionally for one practitioner.
func (s *Service) Availability(ctx context.Context, date time.Time, practitionerID *uuid.UUID) ([]Slot, error) {
	if date.IsZero() {
		return nil, apperr.InvalidArgument("date is required")
	}
	if practitionerID != nil {
		if _, err := s.repo.GetPractitionerByID(ctx, *practitionerID); err != nil {
			return nil, err
		}
	}

	day := s.day(date)
	existing, err := s.repo.ListActiveBetween(ctx, day, day.AddDate(0, 0, 1), practitionerID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}

	slots, err := Slots(AvailabilityQuery{
		Date:           day,
		PractitionerID: practitionerID,
		Window:         s.window,
		Occupied:       intervals(existing),
		Now:            s.now(),
	})
	if err != nil {
		return nil, err
	}
	return slices.Collect(slots), nil
}

// Book creates an appointment. Online bookings are checked against the
// calendar under the day's booking lock. Walk-ins and emergencies start now
// and are checked in to today's queue in the same transaction; when they name
// a practitioner they are checked against that practitioner's day as well.
func (s *Service) Book(ctx context.Context, req BookRequest) (*Appointment, error) {
	appt, err := s.book(ctx, req)
	s.metrics.ObserveBooking(string(req.Channel), bookingOutcome(err))
	if err != nil {
		return nil, err
	}

	s.recorder.Record(ctx, audit.Entry{
		EventType:  audit.EventAppointmentBooked,
		EntityType: audit.EntityAppointment,
		EntityID:   appt.ID,
		Payload: map[string]any{
			"patient_id": appt.PatientID.String(),
			"channel":    string(appt.Channel),
			"start_time": appt.StartTime,
			"status":     string(appt.Status),
		},
		CreatedAt: s.now(),
	})
	s.publish(ctx, realtime.TableAppointments, realtime.OpInsert, appt.ID)
	if appt.Status == StatusCheckedIn {
		s.publish(ctx, realtime.TableQueueEntries, realtime.OpInsert, appt.ID)
	}
	if appt.Channel == ChannelOnline {
		s.confirm(ctx, appt)
	}

	return appt, nil
}

func (s *Service) book(ctx context.Context, req BookRequest) (*Appointment, error) {
	if !req.Channel.Valid() {
		return nil, apperr.InvalidArgument("unknown booking channel %q", req.Channel)
	}
	if req.DurationMinutes <= 0 {
		return nil, apperr.InvalidArgument("duration must be positive, got %d", req.DurationMinutes)
	}
	if _, err := s.repo.GetPatientByID(ctx, req.PatientID); err != nil {
		return nil, err
	}
	if req.PractitionerID != nil {
		if _, err := s.repo.GetPractitionerByID(ctx, *req.PractitionerID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	duration := time.Duration(req.DurationMinutes) * time.Minute
	input := NewAppointment{
		PatientID:       req.PatientID,
		PractitionerID:  req.PractitionerID,
		DurationMinutes: req.DurationMinutes,
		Channel:         req.Channel,
		Notes:           req.Notes,
	}

	if req.Channel.ArrivesImmediately() {
		today := s.day(now)
		input.StartTime = now.Truncate(time.Minute)
		input.Status = StatusCheckedIn
		checkIn := &CheckIn{QueueDate: today, Priority: req.Channel.QueuePriority()}

		var created *Appointment
		err := s.withLock(ctx, redisclient.QueueDayKey(today), func(lockCtx context.Context) error {
			if req.PractitionerID != nil {
				if err := s.ensureFree(lockCtx, today, req.PractitionerID, input.StartTime, duration); err != nil {
					return err
				}
			}
			appt, err := s.repo.CreateAppointment(lockCtx, input, checkIn)
			if err != nil {
				return fmt.Errorf("create appointment: %w", err)
			}
			created = appt
			return nil
		})
		return created, err
	}

	if req.StartTime.IsZero() {
		return nil, apperr.InvalidArgument("start_time is required for online bookings")
	}
	start := req.StartTime.In(s.location())
	if !s.day(start).After(s.day(now)) {
		return nil, apperr.InvalidArgument("online bookings must start on %s or later", s.day(now).AddDate(0, 0, 1).Format(time.DateOnly))
	}
	if !s.window.Contains(start, duration) {
		return nil, apperr.InvalidArgument("%s (%d min) is outside operating hours", start.Format(time.DateTime), req.DurationMinutes)
	}
	input.StartTime = start
	input.Status = StatusBooked

	day := s.day(start)
	var created *Appointment
	err := s.withLock(ctx, redisclient.BookingDayKey(day), func(lockCtx context.Context) error {
		if err := s.ensureFree(lockCtx, day, req.PractitionerID, start, duration); err != nil {
			return err
		}

		appt, err := s.repo.CreateAppointment(lockCtx, input, nil)
		if err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		created = appt
		return nil
	})
	return created, err
}

// AdvanceStatus moves the appointment along the status machine. Checking in
// creates the queue entry; starting treatment stamps the predicted completion.
func (s *Service) AdvanceStatus(ctx context.Context, id uuid.UUID, to Status) (*Appointment, error) {
	current, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := ValidateTransition(current.Status, to); err != nil {
		return nil, err
	}

	var updated *Appointment
	switch to {
	case StatusCheckedIn:
		today := s.day(s.now())
		err = s.withLock(ctx, redisclient.QueueDayKey(today), func(lockCtx context.Context) error {
			updated, err = s.repo.CheckInAppointment(lockCtx, id, current.Status, CheckIn{
				QueueDate: today,
				Priority:  current.Channel.QueuePriority(),
			})
			return err
		})
	case StatusInProgress:
		predicted := s.now().Add(s.estimate(ctx, *current))
		updated, err = s.repo.UpdateStatus(ctx, id, current.Status, to, &predicted)
	default:
		updated, err = s.repo.UpdateStatus(ctx, id, current.Status, to, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("update appointment status: %w", err)
	}

	s.statusChanged(ctx, current.Status, updated, "staff")
	return updated, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetAppointmentByID(ctx, id)
}

// ListForDay returns the non-cancelled appointments starting on date.
func (s *Service) ListForDay(ctx context.Context, date time.Time, practitionerID *uuid.UUID) ([]Appointment, error) {
	if date.IsZero() {
		return nil, apperr.InvalidArgument("date is required")
	}
	day := s.day(date)
	appts, err := s.repo.ListActiveBetween(ctx, day, day.AddDate(0, 0, 1), practitionerID)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appts, nil
}

// MarkNoShows is called by the worker periodically. Appointments still
// booked NoShowGrace after their start become no-shows.
func (s *Service) MarkNoShows(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.noShowGrace)
	stale, err := s.repo.FindStaleBooked(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("find stale booked appointments: %w", err)
	}

	marked := 0
	for _, appt := range stale {
		updated, err := s.repo.UpdateStatus(ctx, appt.ID, StatusBooked, StatusNoShow, nil)
		if err != nil {
			// checked in or cancelled since the scan
			if !errors.Is(err, ErrInvalidStatusTransition) {
				s.logger.Error().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to mark no-show")
			}
			continue
		}
		s.statusChanged(ctx, StatusBooked, updated, "worker")
		marked++
	}

	return marked, nil
}

// ensureFree rejects [start, start+duration) when it overlaps a
// non-cancelled appointment of day under the calculator's matching rule.
func (s *Service) ensureFree(ctx context.Context, day time.Time, practitionerID *uuid.UUID, start time.Time, duration time.Duration) error {
	existing, err := s.repo.ListActiveBetween(ctx, day, day.AddDate(0, 0, 1), practitionerID)
	if err != nil {
		return fmt.Errorf("list appointments: %w", err)
	}
	if occ, clash := Conflicts(intervals(existing), practitionerID, start, duration); clash {
		return fmt.Errorf("%w: %s-%s", ErrSlotTaken, occ.Start.Format("15:04"), occ.End().Format("15:04"))
	}
	return nil
}

func (s *Service) withLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	err := s.locker.WithLock(ctx, key, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrDayBeingBooked
	}
	return err
}

func (s *Service) estimate(ctx context.Context, a Appointment) time.Duration {
	if s.estimator == nil {
		return a.Duration()
	}
	return s.estimator.Estimate(ctx, a)
}

func (s *Service) statusChanged(ctx context.Context, from Status, appt *Appointment, actor string) {
	s.metrics.ObserveTransition(audit.EntityAppointment, string(from), string(appt.Status))

	event := audit.EventAppointmentStatus
	if appt.Status == StatusNoShow && actor == "worker" {
		event = audit.EventAppointmentNoShow
	}
	payload := map[string]any{
		"from":  string(from),
		"to":    string(appt.Status),
		"actor": actor,
	}
	if appt.PredictedCompletionAt != nil {
		payload["predicted_completion_at"] = *appt.PredictedCompletionAt
	}
	s.recorder.Record(ctx, audit.Entry{
		EventType:  event,
		EntityType: audit.EntityAppointment,
		EntityID:   appt.ID,
		Payload:    payload,
		CreatedAt:  s.now(),
	})

	s.publish(ctx, realtime.TableAppointments, realtime.OpUpdate, appt.ID)
	if appt.Status == StatusCheckedIn || QueueStatusFor(appt.Status) != "" {
		s.publish(ctx, realtime.TableQueueEntries, realtime.OpUpdate, appt.ID)
	}
}

func (s *Service) publish(ctx context.Context, table, op string, id uuid.UUID) {
	ev := realtime.ChangeEvent{Table: table, Op: op, ID: id.String(), At: s.now()}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("table", table).Str("id", ev.ID).Msg("failed to publish change event")
	}
}

func (s *Service) confirm(ctx context.Context, appt *Appointment) {
	if s.notifier == nil {
		return
	}
	patient, err := s.repo.GetPatientByID(ctx, appt.PatientID)
	if err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("skipping confirmation, patient not loaded")
		return
	}

	c := notify.Confirmation{
		PatientName:     patient.Name,
		Start:           appt.StartTime.In(s.location()),
		DurationMinutes: appt.DurationMinutes,
	}
	if patient.Email != nil {
		c.PatientEmail = *patient.Email
	}
	if appt.PractitionerID != nil {
		if p, err := s.repo.GetPractitionerByID(ctx, *appt.PractitionerID); err == nil {
			c.PractitionerName = p.Name
		}
	}

	if err := s.notifier.BookingConfirmed(ctx, c); err != nil {
		s.logger.Warn().Err(err).Str("appointment_id", appt.ID.String()).Msg("failed to send booking confirmation")
	}
}

func intervals(appts []Appointment) []Interval {
	out := make([]Interval, len(appts))
	for i, a := range appts {
		out[i] = a.Interval()
	}
	return out
}

func bookingOutcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, apperr.ErrConflict):
		return "conflict"
	case errors.Is(err, apperr.ErrInvalidArgument), errors.Is(err, apperr.ErrNotFound):
		return "rejected"
	default:
		return "error"
	}
}

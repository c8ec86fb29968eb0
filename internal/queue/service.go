package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-queue-scheduling/internal/apperr"
	"github.com/hackgods/clinic-queue-scheduling/internal/appointment"
	"github.com/hackgods/clinic-queue-scheduling/internal/audit"
	"github.com/hackgods/clinic-queue-scheduling/internal/estimate"
	"github.com/hackgods/clinic-queue-scheduling/internal/metrics"
	"github.com/hackgods/clinic-queue-scheduling/internal/realtime"
	redisclient "github.com/hackgods/clinic-queue-scheduling/internal/redis"
)

var ErrQueueBusy = fmt.Errorf("queue is being updated, please retry: %w", apperr.ErrConflict)

type Options struct {
	Recorder  audit.Recorder
	Publisher realtime.Publisher
	Estimator appointment.Estimator
	Metrics   *metrics.ClinicMetrics
	Logger    zerolog.Logger
	Location  *time.Location
	Now       func() time.Time
}

// Service applies staff actions to today's queue. Every mutation reads the
// active entries, decides with the policy functions and writes under the
// queue-day lock, then returns the refetched order. If the refetch fails after
// a committed write, the locally applied order is returned instead.
type Service struct {
	repo      Repository
	locker    redisclient.Locker
	recorder  audit.Recorder
	publisher realtime.Publisher
	estimator appointment.Estimator
	metrics   *metrics.ClinicMetrics
	logger    zerolog.Logger
	location  *time.Location
	now       func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, opts Options) *Service {
	s := &Service{
		repo:      repo,
		locker:    locker,
		recorder:  opts.Recorder,
		publisher: opts.Publisher,
		estimator: opts.Estimator,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		location:  opts.Location,
		now:       opts.Now,
	}
	if s.recorder == nil {
		s.recorder = audit.Nop{}
	}
	if s.publisher == nil {
		s.publisher = realtime.NopPublisher{}
	}
	if s.estimator == nil {
		s.estimator = estimate.Fixed{}
	}
	if s.location == nil {
		s.location = time.UTC
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Today is the current clinic day at midnight in the clinic location.
func (s *Service) Today() time.Time {
	y, m, d := s.now().In(s.location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.location)
}

// Active returns the active entries of day in serving order.
func (s *Service) Active(ctx context.Context, day time.Time) ([]Ranked, error) {
	entries, err := s.repo.ListActive(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	return Rank(entries, s.now()), nil
}

func (s *Service) PromoteToEmergency(ctx context.Context, id uuid.UUID, reason string) ([]Ranked, error) {
	return s.mutate(ctx, func(ctx context.Context, active []Entry) ([]Entry, error) {
		p, err := Promote(active, id, reason)
		if err != nil {
			return nil, err
		}
		if err := s.repo.ApplyPlacements(ctx, p); err != nil {
			return nil, fmt.Errorf("promote entry: %w", err)
		}
		s.changed(ctx, audit.EventQueuePromoted, id, map[string]any{
			"reason":          reason,
			"manual_position": *p.ManualPosition,
		})
		return Apply(active, p), nil
	})
}

func (s *Service) Reorder(ctx context.Context, id uuid.UUID, position int) ([]Ranked, error) {
	return s.mutate(ctx, func(ctx context.Context, active []Entry) ([]Entry, error) {
		p, err := Reorder(active, id, position)
		if err != nil {
			return nil, err
		}
		if err := s.repo.ApplyPlacements(ctx, p); err != nil {
			return nil, fmt.Errorf("reorder entry: %w", err)
		}
		s.changed(ctx, audit.EventQueueReordered, id, map[string]any{"manual_position": position})
		return Apply(active, p), nil
	})
}

func (s *Service) Swap(ctx context.Context, a, b uuid.UUID) ([]Ranked, error) {
	return s.mutate(ctx, func(ctx context.Context, active []Entry) ([]Entry, error) {
		ps, err := Swap(active, a, b)
		if err != nil {
			return nil, err
		}
		if err := s.repo.ApplyPlacements(ctx, ps[0], ps[1]); err != nil {
			return nil, fmt.Errorf("swap entries: %w", err)
		}
		s.changed(ctx, audit.EventQueueSwapped, a, map[string]any{
			"other_entry_id": b.String(),
			"positions":      []int{*ps[0].ManualPosition, *ps[1].ManualPosition},
		})
		return Apply(active, ps[0], ps[1]), nil
	})
}

// AdvanceStatus moves an active entry along the queue state machine. Moving
// into treatment stamps the appointment's predicted completion.
func (s *Service) AdvanceStatus(ctx context.Context, id uuid.UUID, to Status) ([]Ranked, error) {
	return s.mutate(ctx, func(ctx context.Context, active []Entry) ([]Entry, error) {
		target, err := Advance(active, id, to)
		if err != nil {
			return nil, err
		}

		var predicted *time.Time
		if to == StatusInTreatment {
			at := s.now().Add(s.estimator.Estimate(ctx, target.Appointment()))
			predicted = &at
		}

		if err := s.repo.UpdateStatus(ctx, id, target.Status, to, predicted); err != nil {
			return nil, fmt.Errorf("update queue status: %w", err)
		}

		s.metrics.ObserveTransition(audit.EntityQueueEntry, string(target.Status), string(to))
		s.changed(ctx, audit.EventQueueStatus, id, map[string]any{
			"from": string(target.Status),
			"to":   string(to),
		})
		if _, mirrored := AppointmentStatusFor(to); mirrored {
			s.publish(ctx, realtime.ChangeEvent{Table: realtime.TableAppointments, Op: realtime.OpUpdate, ID: target.AppointmentID.String()})
		}
		return ApplyStatus(active, id, to, predicted), nil
	})
}

// mutate runs fn under the queue-day lock. fn writes and returns the active
// entries as it expects them after the write.
func (s *Service) mutate(ctx context.Context, fn func(ctx context.Context, active []Entry) ([]Entry, error)) ([]Ranked, error) {
	day := s.Today()
	var result []Ranked

	err := s.locker.WithLock(ctx, redisclient.QueueDayKey(day), func(lockCtx context.Context) error {
		active, err := s.repo.ListActive(lockCtx, day)
		if err != nil {
			return fmt.Errorf("list queue: %w", err)
		}
		applied, err := fn(lockCtx, active)
		if err != nil {
			return err
		}

		// the write is committed; a failed refetch must not report failure
		result, err = s.Active(lockCtx, day)
		if err != nil {
			s.logger.Warn().Err(err).Str("day", day.Format(time.DateOnly)).Msg("refetch after queue write failed, returning local order")
			result = Rank(applied, s.now())
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrQueueBusy
		}
		return nil, err
	}

	return result, nil
}

// changed records the audit entry and announces the write. Neither failure
// undoes the committed write.
func (s *Service) changed(ctx context.Context, event string, id uuid.UUID, payload map[string]any) {
	s.recorder.Record(ctx, audit.Entry{
		EventType:  event,
		EntityType: audit.EntityQueueEntry,
		EntityID:   id,
		Payload:    payload,
		CreatedAt:  s.now(),
	})
	s.publish(ctx, realtime.ChangeEvent{Table: realtime.TableQueueEntries, Op: realtime.OpUpdate, ID: id.String()})
}

func (s *Service) publish(ctx context.Context, ev realtime.ChangeEvent) {
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		s.logger.Warn().Err(err).Str("table", ev.Table).Str("id", ev.ID).Msg("failed to publish change event")
	}
}

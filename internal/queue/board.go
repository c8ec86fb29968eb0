package queue

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-queue-scheduling/internal/metrics"
	"github.com/hackgods/clinic-queue-scheduling/internal/realtime"
)

type Source interface {
	Today() time.Time
	Active(ctx context.Context, day time.Time) ([]Ranked, error)
}

type Broadcaster interface {
	Broadcast(topic string, ev realtime.Event)
}

// Snapshot is one applied board state. Version is the sequence number of the
// refresh that produced it.
type Snapshot struct {
	Date        time.Time
	Version     uint64
	RefreshedAt time.Time
	Entries     []Ranked
}

type BoardOptions struct {
	Interval    time.Duration
	Broadcaster Broadcaster
	Metrics     *metrics.ClinicMetrics
	Logger      zerolog.Logger
}

// Board owns the last computed serving order of today's queue. It is
// refreshed from scratch by a ticker or by change events; a response older
// than the last applied one is discarded.
type Board struct {
	source      Source
	interval    time.Duration
	broadcaster Broadcaster
	metrics     *metrics.ClinicMetrics
	logger      zerolog.Logger
	trigger     chan struct{}

	mu       sync.Mutex
	issued   uint64
	applied  uint64
	inflight context.CancelFunc
	snapshot Snapshot
}

func NewBoard(source Source, opts BoardOptions) *Board {
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	return &Board{
		source:      source,
		interval:    opts.Interval,
		broadcaster: opts.Broadcaster,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		trigger:     make(chan struct{}, 1),
	}
}

// Refresh refetches today's queue. Starting a refresh abandons the one in
// flight, if any.
func (b *Board) Refresh(ctx context.Context) error {
	b.mu.Lock()
	if b.inflight != nil {
		b.inflight()
	}
	b.issued++
	seq := b.issued
	reqCtx, cancel := context.WithCancel(ctx)
	b.inflight = cancel
	b.mu.Unlock()
	defer cancel()

	day := b.source.Today()
	entries, err := b.source.Active(reqCtx, day)

	b.mu.Lock()
	superseded := seq < b.issued
	if err != nil {
		b.mu.Unlock()
		if superseded && errors.Is(err, context.Canceled) {
			b.metrics.ObserveRefresh(metrics.RefreshStale, 0)
			return nil
		}
		b.metrics.ObserveRefresh(metrics.RefreshError, 0)
		return err
	}
	if applied := b.applied; seq <= applied {
		b.mu.Unlock()
		b.metrics.ObserveRefresh(metrics.RefreshStale, 0)
		b.logger.Debug().Uint64("seq", seq).Uint64("applied", applied).Msg("discarding stale queue refresh")
		return nil
	}
	b.applied = seq
	b.snapshot = Snapshot{
		Date:        day,
		Version:     seq,
		RefreshedAt: time.Now().UTC(),
		Entries:     entries,
	}
	snap := b.snapshot
	b.mu.Unlock()

	b.metrics.ObserveRefresh(metrics.RefreshApplied, len(entries))
	b.announce(snap)
	return nil
}

// Snapshot returns the last applied state.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := b.snapshot
	snap.Entries = slices.Clone(snap.Entries)
	return snap
}

// Notify asks Run for a refresh without blocking. Signals arriving while one
// is pending collapse into it.
func (b *Board) Notify() {
	select {
	case b.trigger <- struct{}{}:
	default:
	}
}

// OnChange is the realtime feed handler.
func (b *Board) OnChange(ev realtime.ChangeEvent) {
	switch ev.Table {
	case realtime.TableQueueEntries, realtime.TableAppointments, "":
		b.Notify()
	}
}

// Run refreshes once, then on every tick and every notification until ctx
// is done.
func (b *Board) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	b.refreshLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-b.trigger:
		}
		b.refreshLogged(ctx)
	}
}

func (b *Board) refreshLogged(ctx context.Context) {
	if err := b.Refresh(ctx); err != nil && ctx.Err() == nil {
		b.logger.Error().Err(err).Msg("queue board refresh failed")
	}
}

func (b *Board) announce(snap Snapshot) {
	if b.broadcaster == nil {
		return
	}
	data, err := json.Marshal(map[string]any{
		"date":    snap.Date.Format(time.DateOnly),
		"version": snap.Version,
		"count":   len(snap.Entries),
	})
	if err != nil {
		return
	}
	b.broadcaster.Broadcast(realtime.TableQueueEntries, realtime.Event{
		Type: realtime.EventQueueRefreshed,
		Data: data,
	})
}

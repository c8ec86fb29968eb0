package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-queue-scheduling/internal/appointment"
	"github.com/hackgods/clinic-queue-scheduling/internal/metrics"
	"github.com/hackgods/clinic-queue-scheduling/internal/queue"
)

type AppointmentService interface {
	Availability(ctx context.Context, date time.Time, practitionerID *uuid.UUID) ([]appointment.Slot, error)
	Book(ctx context.Context, req appointment.BookRequest) (*appointment.Appointment, error)
	AdvanceStatus(ctx context.Context, id uuid.UUID, to appointment.Status) (*appointment.Appointment, error)
	Get(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)
	ListForDay(ctx context.Context, date time.Time, practitionerID *uuid.UUID) ([]appointment.Appointment, error)
}

type QueueService interface {
	PromoteToEmergency(ctx context.Context, id uuid.UUID, reason string) ([]queue.Ranked, error)
	Reorder(ctx context.Context, id uuid.UUID, position int) ([]queue.Ranked, error)
	Swap(ctx context.Context, a, b uuid.UUID) ([]queue.Ranked, error)
	AdvanceStatus(ctx context.Context, id uuid.UUID, to queue.Status) ([]queue.Ranked, error)
}

// Board is the server-side view of today's queue.
type Board interface {
	Snapshot() queue.Snapshot
	Refresh(ctx context.Context) error
}

type WebSocketServer interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

type RouterConfig struct {
	Appointments   AppointmentService
	Queue          QueueService
	Board          Board
	Hub            WebSocketServer
	Postgres       Pinger
	Redis          Pinger
	MetricsHandler http.Handler
	Metrics        *metrics.ClinicMetrics
	Logger         zerolog.Logger
	Location       *time.Location
	AllowedOrigins []string
	BookingRate    float64 // booking requests per second per client, 0 disables
	Env            string
	Version        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(cfg.Logger, cfg.Metrics))

	health := NewHealthHandler(cfg.Postgres, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)
	if cfg.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", cfg.MetricsHandler)
	}

	r.Get("/availability", availabilityHandler(cfg.Appointments, cfg.Location))

	r.Route("/appointments", func(r chi.Router) {
		book := http.Handler(bookAppointmentHandler(cfg.Appointments))
		if cfg.BookingRate > 0 {
			book = NewRateLimiter(cfg.BookingRate, 3).Limit(book)
		}
		r.Method(http.MethodPost, "/", book)
		r.Get("/", listAppointmentsHandler(cfg.Appointments, cfg.Location))
		r.Get("/{id}", getAppointmentHandler(cfg.Appointments))
		r.Post("/{id}/status", appointmentStatusHandler(cfg.Appointments))
	})

	r.Route("/queue", func(r chi.Router) {
		r.Get("/", getQueueHandler(cfg.Board))
		r.Post("/swap", swapHandler(cfg.Queue))
		r.Post("/{id}/promote", promoteHandler(cfg.Queue))
		r.Post("/{id}/reorder", reorderHandler(cfg.Queue))
		r.Post("/{id}/status", queueStatusHandler(cfg.Queue))
	})

	if cfg.Hub != nil {
		r.Get("/ws", cfg.Hub.ServeWS)
	}

	return cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
	}).Handler(r)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hackgods/clinic-queue-scheduling/internal/api"
	"github.com/hackgods/clinic-queue-scheduling/internal/appointment"
	"github.com/hackgods/clinic-queue-scheduling/internal/audit"
	"github.com/hackgods/clinic-queue-scheduling/internal/config"
	"github.com/hackgods/clinic-queue-scheduling/internal/db"
	"github.com/hackgods/clinic-queue-scheduling/internal/estimate"
	"github.com/hackgods/clinic-queue-scheduling/internal/logging"
	"github.com/hackgods/clinic-queue-scheduling/internal/metrics"
	"github.com/hackgods/clinic-queue-scheduling/internal/notify"
	"github.com/hackgods/clinic-queue-scheduling/internal/queue"
	"github.com/hackgods/clinic-queue-scheduling/internal/realtime"
	redisclient "github.com/hackgods/clinic-queue-scheduling/internal/redis"
	"github.com/hackgods/clinic-queue-scheduling/internal/remote"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Env, cfg.LogLevel)
	logger.Info().
		Str("env", cfg.Env).
		Str("http_port", cfg.HTTPPort).
		Str("clinic_tz", cfg.Location.String()).
		Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{})
	cancelPg()
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres connection error")
	}
	defer pgPool.Close()
	logger.Info().Msg("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(rootCtx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection error")
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing redis")
		}
	}()
	logger.Info().Msg("connected to Redis")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	clinicMetrics := metrics.NewClinicMetrics(registry)

	locker := redisclient.NewRedisLocker(rdb, cfg.LockTTL)
	recorder := audit.NewPgRecorder(pgPool, logger)
	publisher := realtime.NewRedisPublisher(rdb, cfg.ChangeChannel)

	var estimator appointment.Estimator = estimate.Fixed{}
	if cfg.FunctionsURL != "" {
		client := remote.NewClient(cfg.FunctionsURL, cfg.FunctionsToken, 5*time.Second)
		estimator = estimate.NewRemoteEstimator(client, 3*time.Second, logger)
		logger.Info().Str("functions_url", cfg.FunctionsURL).Msg("remote duration estimates enabled")
	}

	var sender notify.EmailSender = notify.NewLogSender(logger)
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.NotifyFromEmail,
		FromName:  cfg.NotifyFromName,
	}, logger); sg != nil {
		sender = sg
	}

	appointments := appointment.NewService(appointment.NewPgRepository(pgPool), locker, appointment.Options{
		Window: appointment.Window{
			OpenHour:    cfg.OpenHour,
			CloseHour:   cfg.CloseHour,
			Granularity: cfg.SlotGranularity,
			Location:    cfg.Location,
		},
		NoShowGrace: cfg.NoShowGrace,
		Recorder:    recorder,
		Publisher:   publisher,
		Notifier:    notify.NewEmailNotifier(sender, cfg.NotifyFromName),
		Estimator:   estimator,
		Metrics:     clinicMetrics,
		Logger:      logger,
	})

	queues := queue.NewService(queue.NewPgRepository(pgPool), locker, queue.Options{
		Recorder:  recorder,
		Publisher: publisher,
		Estimator: estimator,
		Metrics:   clinicMetrics,
		Logger:    logger,
		Location:  cfg.Location,
	})

	hub := realtime.NewHub(logger)
	board := queue.NewBoard(queues, queue.BoardOptions{
		Interval:    cfg.BoardRefreshInterval,
		Broadcaster: hub,
		Metrics:     clinicMetrics,
		Logger:      logger,
	})

	go func() {
		if err := board.Run(rootCtx); err != nil {
			logger.Error().Err(err).Msg("queue board stopped")
		}
	}()

	feed := realtime.NewFeed(rdb, cfg.ChangeChannel, logger)
	go func() {
		err := feed.Run(rootCtx, func(ev realtime.ChangeEvent) {
			board.OnChange(ev)
			hub.BroadcastChange(ev)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("change feed stopped")
		}
	}()

	router := api.NewRouter(api.RouterConfig{
		Appointments:   appointments,
		Queue:          queues,
		Board:          board,
		Hub:            hub,
		Postgres:       pgPool,
		Redis:          api.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Metrics:        clinicMetrics,
		Logger:         logger,
		Location:       cfg.Location,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		BookingRate:    cfg.BookingRateLimit,
		Env:            cfg.Env,
		Version:        version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	logger.Info().Msg("shutting down api-server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-queue-scheduling/internal/config"
	"github.com/hackgods/clinic-queue-scheduling/internal/db"
	"github.com/hackgods/clinic-queue-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	WalkInRatio  float64
	QueueRatio   float64
	ReadRatio    float64
	PatientLimit int
	PostgresDSN  string
	Location     *time.Location
	OpenHour     int
	CloseHour    int
	Granularity  time.Duration
}

type DataPool struct {
	Patients      []uuid.UUID
	Practitioners []uuid.UUID
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && (status == http.StatusConflict || status == http.StatusTooManyRequests):
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
	om.mu.Lock()
	latencies := slices.Clone(om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0, 0
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	lo = latencies[0]
	hi = latencies[len(latencies)-1]
	p50 = latencies[min(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, lo, hi, p50, p95
}

type Metrics struct {
	Booking      OperationMetrics
	WalkIn       OperationMetrics
	QueueAction  OperationMetrics
	Availability OperationMetrics
	QueueRead    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	logger  zerolog.Logger
	metrics Metrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(baseCfg.Env, baseCfg.LogLevel)

	cfg := loadConfig(baseCfg)
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid simulator config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("walk_in", cfg.WalkInRatio).
		Float64("queue", cfg.QueueRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().
		Int("patients", len(dataPool.Patients)).
		Int("practitioners", len(dataPool.Practitioners)).
		Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger,
	}

	sim.Run()
	sim.PrintReport()
}

func loadConfig(base config.Config) SimConfig {
	cfg := SimConfig{
		APIBaseURL:   strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.4),
		WalkInRatio:  getFloat("SIM_WALK_IN_RATIO", 0.1),
		QueueRatio:   getFloat("SIM_QUEUE_RATIO", 0.1),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.4),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 4000),
		PostgresDSN:  base.PostgresDSN,
		Location:     base.Location,
		OpenHour:     base.OpenHour,
		CloseHour:    base.CloseHour,
		Granularity:  base.SlotGranularity,
	}

	total := cfg.BookingRatio + cfg.WalkInRatio + cfg.QueueRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.WalkInRatio /= total
		cfg.QueueRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	patients, err := loadIDs(ctx, pool, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	practitioners, err := loadIDs(ctx, pool, `SELECT id FROM practitioners LIMIT $1`, 100)
	if err != nil {
		return nil, fmt.Errorf("load practitioners: %w", err)
	}

	if len(patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}
	return &DataPool{Patients: patients, Practitioners: practitioners}, nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, query string, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := range s.config.Workers {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(workerID)))
	c := s.config

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < c.BookingRatio:
			s.doBooking(ctx, rng)
		case r < c.BookingRatio+c.WalkInRatio:
			s.doWalkIn(ctx, rng)
		case r < c.BookingRatio+c.WalkInRatio+c.QueueRatio:
			s.doQueueAction(ctx, rng)
		default:
			if rng.IntN(2) == 0 {
				s.doAvailability(ctx, rng)
			} else {
				s.doQueueRead(ctx)
			}
		}
	}
}

// randomSlot picks a slot start in the operating window one to seven days ahead.
func (s *Simulator) randomSlot(rng *rand.Rand) time.Time {
	c := s.config
	y, m, d := time.Now().In(c.Location).Date()
	day := time.Date(y, m, d+1+rng.IntN(7), c.OpenHour, 0, 0, 0, c.Location)
	slots := int(time.Duration(c.CloseHour-c.OpenHour) * time.Hour / c.Granularity)
	return day.Add(time.Duration(rng.IntN(slots)) * c.Granularity)
}

func (s *Simulator) randomPractitioner(rng *rand.Rand) *uuid.UUID {
	if len(s.pool.Practitioners) == 0 {
		return nil
	}
	id := s.pool.Practitioners[rng.IntN(len(s.pool.Practitioners))]
	return &id
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	start := s.randomSlot(rng)
	body := map[string]any{
		"patient_id":       s.pool.Patients[rng.IntN(len(s.pool.Patients))],
		"practitioner_id":  s.randomPractitioner(rng),
		"start_time":       start,
		"duration_minutes": int(s.config.Granularity / time.Minute),
		"channel":          "online",
	}
	s.call(ctx, &s.metrics.Booking, http.MethodPost, "/appointments", body, nil)
}

func (s *Simulator) doWalkIn(ctx context.Context, rng *rand.Rand) {
	channel := "walk_in"
	if rng.IntN(10) == 0 {
		channel = "emergency"
	}
	body := map[string]any{
		"patient_id":       s.pool.Patients[rng.IntN(len(s.pool.Patients))],
		"duration_minutes": 20 + 10*rng.IntN(4),
		"channel":          channel,
		"notes":            "simulated " + channel,
	}
	s.call(ctx, &s.metrics.WalkIn, http.MethodPost, "/appointments", body, nil)
}

// doQueueAction loads the board and applies one staff action to a random entry.
func (s *Simulator) doQueueAction(ctx context.Context, rng *rand.Rand) {
	var board struct {
		Entries []struct {
			ID     uuid.UUID `json:"id"`
			Status string    `json:"status"`
		} `json:"entries"`
	}
	if !s.call(ctx, &s.metrics.QueueRead, http.MethodGet, "/queue", nil, &board) || len(board.Entries) == 0 {
		return
	}

	e := board.Entries[rng.IntN(len(board.Entries))]
	switch rng.IntN(4) {
	case 0:
		s.call(ctx, &s.metrics.QueueAction, http.MethodPost, "/queue/"+e.ID.String()+"/promote",
			map[string]string{"reason": "simulated emergency"}, nil)
	case 1:
		s.call(ctx, &s.metrics.QueueAction, http.MethodPost, "/queue/"+e.ID.String()+"/reorder",
			map[string]int{"position": 1 + rng.IntN(len(board.Entries))}, nil)
	default:
		next := map[string]string{
			"waiting":      "called",
			"called":       "in_treatment",
			"skipped":      "called",
			"in_treatment": "completed",
		}[e.Status]
		if next == "" {
			return
		}
		s.call(ctx, &s.metrics.QueueAction, http.MethodPost, "/queue/"+e.ID.String()+"/status",
			map[string]string{"status": next}, nil)
	}
}

func (s *Simulator) doAvailability(ctx context.Context, rng *rand.Rand) {
	path := "/availability?date=" + s.randomSlot(rng).Format(time.DateOnly)
	if p := s.randomPractitioner(rng); p != nil {
		path += "&practitioner_id=" + p.String()
	}
	s.call(ctx, &s.metrics.Availability, http.MethodGet, path, nil, nil)
}

func (s *Simulator) doQueueRead(ctx context.Context) {
	s.call(ctx, &s.metrics.QueueRead, http.MethodGet, "/queue", nil, nil)
}

// call performs one request, records it and decodes a 2xx body into out.
func (s *Simulator) call(ctx context.Context, om *OperationMetrics, method, path string, body, out any) bool {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return false
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, reader)
	if err != nil {
		return false
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			om.Record(latency, 0, err)
		}
		return false
	}
	defer resp.Body.Close()

	om.Record(latency, resp.StatusCode, nil)
	if resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out) == nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return true
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Online booking", &s.metrics.Booking)
	printOperationReport("Walk-in / emergency", &s.metrics.WalkIn)
	printOperationReport("Queue action", &s.metrics.QueueAction)
	printOperationReport("Availability", &s.metrics.Availability)
	printOperationReport("Queue read", &s.metrics.QueueRead)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

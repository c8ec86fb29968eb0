package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-queue-scheduling/internal/db"
	"github.com/hackgods/clinic-queue-scheduling/internal/logging"
)

var specialties = []string{
	"General Dentistry",
	"Orthodontics",
	"Endodontics",
	"Periodontics",
	"Oral Surgery",
	"Pediatric Dentistry",
	"Prosthodontics",
	"Dental Hygiene",
}

func main() {
	practitioners := flag.Int("practitioners", 8, "number of practitioners to create")
	patients := flag.Int("patients", 2000, "number of patients to create")
	seed := flag.Int64("seed", time.Now().UnixNano(), "random seed")
	flag.Parse()

	logger := logging.New(os.Getenv("APP_ENV"), "info")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		logger.Fatal().Msg("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn, db.PoolOptions{MaxConns: 2})
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := gofakeit.Seed(*seed); err != nil {
		logger.Fatal().Err(err).Msg("seed faker")
	}

	if err := seedPractitioners(ctx, pool, *practitioners, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed practitioners")
	}
	if err := seedPatients(ctx, pool, *patients, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Int64("seed", *seed).Msg("seed complete")
}

func seedPractitioners(ctx context.Context, pool *pgxpool.Pool, count int, logger zerolog.Logger) error {
	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		for i := range count {
			_, err := tx.Exec(ctx, `
				INSERT INTO practitioners (id, name, specialty, created_at, updated_at)
				VALUES ($1, $2, $3, now(), now())
			`, uuid.New(), "Dr. "+gofakeit.LastName(), specialties[i%len(specialties)])
			if err != nil {
				return fmt.Errorf("insert practitioner: %w", err)
			}
		}
		logger.Info().Int("count", count).Msg("practitioners seeded")
		return nil
	})
}

// seedPatients bulk loads patients with COPY.
func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int, logger zerolog.Logger) error {
	now := time.Now().UTC()
	rows := make([][]any, 0, count)
	for range count {
		rows = append(rows, []any{uuid.New(), gofakeit.Name(), gofakeit.Email(), gofakeit.Phone(), now, now})
	}

	n, err := pool.CopyFrom(ctx,
		pgx.Identifier{"patients"},
		[]string{"id", "name", "email", "phone", "created_at", "updated_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("copy patients: %w", err)
	}

	logger.Info().Int64("count", n).Msg("patients seeded")
	return nil
}

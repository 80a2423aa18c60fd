package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/m3rciful/consultbot/core/logger"
)

const connectTimeout = 5 * time.Second

// Connect opens the database connection, configures the pool and verifies connectivity.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	target := []slog.Attr{
		slog.String("driver", "postgres"),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.String("db", cfg.Name),
	}

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DSN())
	took := time.Since(start)
	if err != nil {
		logger.LogEvent(ctx, logger.DB, slog.LevelError, "db.connect", append(target,
			slog.String("status", "fail"),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)
	db.SetConnMaxIdleTime(5 * time.Minute)

	logger.LogEvent(ctx, logger.DB, slog.LevelInfo, "db.connect", append(target,
		slog.String("status", "ok"),
		slog.Int("pool_open", cfg.MaxConnections),
		slog.Duration("duration", logger.RoundMS(took)),
	)...)
	return db, nil
}

// WaitForPostgres pings the database until it answers, the timeout passes or ctx ends.
func WaitForPostgres(ctx context.Context, dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for {
		db, err := sqlx.Open("postgres", dsn)
		if err == nil {
			err = db.PingContext(ctx)
			_ = db.Close()
			if err == nil {
				return nil
			}
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout reached waiting for database: %w", lastErr)
		case <-time.After(2 * time.Second):
		}
	}
}

package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/consultbot/core/logger"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// RunMigrations applies all up migrations from cfg.MigrationsDir.
func RunMigrations(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	cfg = cfg.withDefaults()

	if err := WaitForPostgres(ctx, cfg.DSN(), 30*time.Second); err != nil {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "db.migrate",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return fmt.Errorf("database not ready: %w", err)
	}

	dir, err := filepath.Abs(cfg.MigrationsDir)
	if err != nil {
		return fmt.Errorf("resolve migrations dir: %w", err)
	}

	files := listMigrationFiles(dir)
	preview, truncated := logger.SummarizeStrings(files, 6)
	attrs := []slog.Attr{
		slog.String("path", dir),
		slog.Int("files_total", len(files)),
	}
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "resolve", attrs...)

	m, err := migrate.New("file://"+filepath.ToSlash(dir), cfg.URL())
	if err != nil {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "db.migrate",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	fromVer, _, _ := m.Version()

	start := time.Now()
	upErr := m.Up()
	took := time.Since(start)

	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		logger.LogEvent(ctx, logger.MIG, slog.LevelError, "apply",
			slog.String("status", "fail"),
			slog.String("err", logger.SanitizeLimit(upErr.Error(), 256)),
			slog.Duration("duration", logger.RoundMS(took)),
		)
		return fmt.Errorf("migration execution failed: %w", upErr)
	}

	toVer, _, _ := m.Version()
	applied := selectApplied(files, uint64(fromVer), uint64(toVer))
	if len(applied) > 0 {
		names, cut := logger.SummarizeStrings(applied, 6)
		logger.LogEvent(ctx, logger.MIG, slog.LevelDebug, "apply",
			slog.Int("files_total", len(applied)),
			slog.String("files_preview", names),
			slog.Bool("files_truncated", cut),
		)
	}

	logger.LogEvent(ctx, logger.MIG, slog.LevelInfo, "summary",
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(fromVer)),
		slog.Uint64("to_ver", uint64(toVer)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", logger.RoundMS(took)),
	)
	return nil
}

func listMigrationFiles(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names
}

func parseVersion(name string) uint64 {
	prefix, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(prefix, 10, 64)
	return v
}

func selectApplied(files []string, from, to uint64) []string {
	if to <= from {
		return nil
	}
	var out []string
	for _, f := range files {
		if v := parseVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}

// Package sink persists completed submissions to Google Sheets or Postgres.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/consultbot/core/logger"
	"github.com/m3rciful/consultbot/internal/signup"
)

const (
	KindSheets   = "sheets"
	KindPostgres = "postgres"
)

// Config selects and configures the submission sink.
type Config struct {
	Kind string `yaml:"kind" envconfig:"SINK_KIND"`
	// SpreadsheetID is the key of the target Google spreadsheet.
	SpreadsheetID   string `yaml:"spreadsheet_id" envconfig:"GOOGLE_SHEET_ID"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"GOOGLE_CREDENTIALS_FILE"`
	// Range is the A1 range rows are appended after; "A1" targets the first sheet.
	Range string `yaml:"range" envconfig:"GOOGLE_SHEET_RANGE"`
}

// Normalize fills defaults.
func (c *Config) Normalize() {
	c.Kind = strings.ToLower(strings.TrimSpace(c.Kind))
	if c.Kind == "" {
		c.Kind = KindSheets
	}
	if c.CredentialsFile == "" {
		c.CredentialsFile = "credentials.json"
	}
	if c.Range == "" {
		c.Range = "A1"
	}
}

// Validate reports settings the selected kind cannot run without.
func (c Config) Validate() error {
	switch c.Kind {
	case KindSheets:
		if strings.TrimSpace(c.SpreadsheetID) == "" {
			return fmt.Errorf("sink: sheets requires spreadsheet_id (GOOGLE_SHEET_ID)")
		}
	case KindPostgres:
	default:
		return fmt.Errorf("sink: unknown kind %q", c.Kind)
	}
	return nil
}

// NeedsDatabase reports whether the sink persists to Postgres.
func (c Config) NeedsDatabase() bool { return c.Kind == KindPostgres }

// Open builds the configured sink. db is required for the postgres kind only.
func Open(ctx context.Context, cfg Config, db *sqlx.DB) (signup.Sink, error) {
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Kind {
	case KindPostgres:
		if db == nil {
			return nil, fmt.Errorf("sink: postgres kind without a database connection")
		}
		return NewPostgres(db), nil
	default:
		opts, err := SheetsClientOptions(ctx, cfg.CredentialsFile)
		if err != nil {
			return nil, err
		}
		return NewSheets(ctx, cfg.SpreadsheetID, cfg.Range, opts...)
	}
}

func logAppend(ctx context.Context, kind string, row signup.Row, start time.Time, err error) {
	level := slog.LevelInfo
	attrs := []slog.Attr{
		slog.String("status", logger.Status(err)),
		slog.String("sink", kind),
		slog.String("submission_id", row.ID),
		slog.Duration("duration", logger.Took(start)),
	}
	if err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.String("err", logger.SanitizeLimit(err.Error(), 256)))
	}
	logger.LogEvent(ctx, logger.Sink, level, "sink.append", attrs...)
}

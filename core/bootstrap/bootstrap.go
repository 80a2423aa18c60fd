package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/consultbot/core/config"
	coredatabase "github.com/m3rciful/consultbot/core/database"
	"github.com/m3rciful/consultbot/core/logger"
)

// Options control the generic bootstrap pipeline.
type Options struct {
	Config *coreconfig.Config
	// Database is nil when the bot needs no relational storage.
	Database *coredatabase.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config) error
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	// DB is nil when Options.Database was nil.
	DB *sqlx.DB
}

// Close releases the resources held by the result.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

// Run initializes the logger and, when configured, connects to the database and applies migrations.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	if opts.Database == nil {
		return &Result{}, nil
	}

	connect := opts.Connect
	if connect == nil {
		connect = coredatabase.Connect
	}
	db, err := connect(ctx, *opts.Database)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
	}

	migrate := opts.Migrate
	if migrate == nil {
		migrate = coredatabase.RunMigrations
	}
	if err := migrate(ctx, *opts.Database); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
	}

	return &Result{DB: db}, nil
}

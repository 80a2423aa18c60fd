package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/consultbot/core/config"
	"github.com/m3rciful/consultbot/core/logger"
	coretelegram "github.com/m3rciful/consultbot/core/telegram"
)

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is the minimal interface required to run a Telegram bot.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	ConfigEnvVar      string
	DefaultConfigPath string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(ctx context.Context, cfg ConfigCarrier) (TelegramApp, error)

	ShutdownLogger func() error
	RunTelegram    func(ctx context.Context, opts coretelegram.RunOptions) error
	// Signals default to SIGINT and SIGTERM.
	Signals []os.Signal
}

// Run loads configuration, bootstraps the Telegram app, and starts the bot runtime.
func Run(opts Options) error {
	if opts.LoadConfig == nil {
		return fmt.Errorf("cmd: LoadConfig is required")
	}
	if opts.Bootstrap == nil {
		return fmt.Errorf("cmd: Bootstrap is required")
	}

	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	cfgPath := os.Getenv(env)
	if cfgPath == "" {
		cfgPath = opts.DefaultConfigPath
	}
	if cfgPath == "" {
		return fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
	}

	// The structured logger is not configured yet.
	log.Printf("loading config: %s", cfgPath)
	cfg, err := opts.LoadConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("cmd: failed to load config: %w", err)
	}
	if cfg.CoreConfig() == nil {
		return fmt.Errorf("cmd: loaded config is missing core configuration")
	}

	signals := opts.Signals
	if len(signals) == 0 {
		signals = []os.Signal{os.Interrupt, syscall.SIGTERM}
	}
	ctx, cancel := signal.NotifyContext(context.Background(), signals...)
	defer cancel()

	shutdownLogger := opts.ShutdownLogger
	if shutdownLogger == nil {
		shutdownLogger = logger.Shutdown
	}
	defer func() {
		if err := shutdownLogger(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	application, err := opts.Bootstrap(ctx, cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}

	runOpts, err := application.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}

	appLog := logger.Component("app")
	startedAt := time.Now()
	prevStart := runOpts.OnStart
	runOpts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if prevStart != nil {
			if err := prevStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.LogEvent(ctx, appLog, slog.LevelInfo, "ready",
			slog.Duration("startup", logger.RoundMS(time.Since(startedAt))),
		)
		return nil
	}

	prevStop := runOpts.OnStop
	runOpts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.LogEvent(ctx, appLog, slog.LevelInfo, "shutdown")
		if prevStop != nil {
			return prevStop(ctx, rt)
		}
		return nil
	}

	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	return run(ctx, runOpts)
}

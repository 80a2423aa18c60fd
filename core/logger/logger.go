package logger

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/consultbot/core/buildinfo"
	coreconfig "github.com/m3rciful/consultbot/core/config"
)

var (
	initOnce   sync.Once
	shutdownMu sync.Mutex
	shutdowned bool

	logWriter  *asyncWriter
	logClosers []io.Closer

	levelVar slog.LevelVar

	debugSampler  = newRatioSampler(1, 50)
	traceOverride bool

	// L is the base logger.
	L *slog.Logger

	// DB logs database events.
	DB *slog.Logger
	// TG logs Telegram transport events.
	TG *slog.Logger
	// MIG logs database migration events.
	MIG *slog.Logger
	// TWire logs Telegram wiring steps.
	TWire *slog.Logger
	// Signup logs conversation state machine activity.
	Signup *slog.Logger
	// Sink logs submission persistence.
	Sink *slog.Logger
	// Metrics logs the metrics exporter lifecycle.
	Metrics *slog.Logger
)

func init() {
	// Until InitLogger runs (tests, early failures) everything goes to the slog default.
	L = slog.Default()
	wireComponents()
}

// InitLogger configures the global structured logger. It may be called only once.
func InitLogger(cfg *coreconfig.Config) error {
	var initErr error
	initOnce.Do(func() {
		levelVar.Set(selectLevel(cfg))
		debugSampler.Set(parseDebugSample(cfg))
		traceOverride = detectTraceFlag()

		outputs, closers := buildOutputs(cfg)
		logClosers = closers
		logWriter = newAsyncWriter(outputs, 64*1024)

		handler := newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   logWriter,
			format:   selectFormat(cfg),
			keyOrder: selectKeyOrder(cfg),
		})

		L = slog.New(handler)
		slog.SetDefault(L)

		wireComponents()
		logStartup(cfg)
	})
	return initErr
}

func wireComponents() {
	DB = L.With("component", "db")
	TG = L.With("component", "tg")
	MIG = L.With("component", "db.migrate")
	TWire = L.With("component", "tg.wire")
	Signup = L.With("component", "signup")
	Sink = L.With("component", "sink")
	Metrics = L.With("component", "metrics")
}

func logStartup(cfg *coreconfig.Config) {
	attrs := []slog.Attr{
		slog.String("component", "app"),
		slog.String("event", "startup"),
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
	}
	if cfg != nil {
		attrs = append(attrs, slog.String("cfg_profile", selectProfile(cfg)))
	}
	L.LogAttrs(context.Background(), slog.LevelInfo, "startup", attrs...)
}

// Shutdown flushes buffered log output and closes opened sinks.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if shutdowned {
		return nil
	}
	shutdowned = true

	var errs []error
	if logWriter != nil {
		if err := logWriter.Flush(); err != nil {
			errs = append(errs, err)
		}
		if err := logWriter.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	for _, c := range logClosers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func selectFormat(cfg *coreconfig.Config) logFormat {
	if cfg == nil {
		return formatJSON
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Format)) {
	case "kv", "text", "pretty":
		return formatKV
	case "json":
		return formatJSON
	}
	// Human-friendly output for debug/dev profiles.
	switch strings.ToLower(cfg.Logging.Profile) {
	case "debug", "dev":
		return formatKV
	}
	return formatJSON
}

func selectKeyOrder(cfg *coreconfig.Config) []string {
	raw := ""
	if cfg != nil {
		raw = strings.TrimSpace(cfg.Logging.KeysOrder)
	}
	if raw == "" || raw == "default" {
		return append([]string(nil), defaultKeyOrder...)
	}
	var order []string
	for _, p := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			order = append(order, trimmed)
		}
	}
	if len(order) == 0 {
		return append([]string(nil), defaultKeyOrder...)
	}
	return order
}

func selectLevel(cfg *coreconfig.Config) slog.Level {
	if cfg == nil {
		return slog.LevelInfo
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Logging.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildOutputs(cfg *coreconfig.Config) ([]io.Writer, []io.Closer) {
	writers := []io.Writer{os.Stdout}
	if cfg == nil {
		return writers, nil
	}
	dir := strings.TrimSpace(cfg.Logging.Dir)
	file := strings.TrimSpace(cfg.Logging.BotFile)
	if dir == "" || file == "" {
		return writers, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Printf("logger: failed to create log dir %s: %v", dir, err)
		return writers, nil
	}
	path := filepath.Join(dir, file)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logger: failed to open log file %s: %v", path, err)
		return writers, nil
	}
	return append(writers, f), []io.Closer{f}
}

func selectProfile(cfg *coreconfig.Config) string {
	if profile := strings.TrimSpace(cfg.Logging.Profile); profile != "" {
		return strings.ToLower(profile)
	}
	return "prod"
}

// Background returns context.Background().
func Background() context.Context {
	return context.Background()
}

// LogEvent writes an attribute-only record with the event attribute first.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component constructs a logger scoped to the provided component attribute.
func Component(name string) *slog.Logger {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return L
	}
	return L.With("component", trimmed)
}

// Debug logs a debug-level event for the given component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelDebug, event, attrs...)
}

// Info logs an info-level event for the given component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelInfo, event, attrs...)
}

// Warn logs a warn-level event for the given component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelWarn, event, attrs...)
}

// Error logs an error-level event for the given component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), slog.LevelError, event, attrs...)
}

func parseDebugSample(cfg *coreconfig.Config) (int, int) {
	if cfg == nil || strings.TrimSpace(cfg.Logging.DebugSample) == "" {
		return 1, 50
	}
	num, den := parseRatioSpec(cfg.Logging.DebugSample)
	if num == 0 && den == 0 {
		return 0, 0
	}
	if num <= 0 || den <= 0 {
		return 1, 50
	}
	return num, den
}

func detectTraceFlag() bool {
	return isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE"))
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether debug-level details should be logged for high-volume events.
func ShouldSampleDebug() bool {
	if traceOverride {
		return true
	}
	return debugSampler.Allow()
}

package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/consultbot/core/logger"
	tghelpers "github.com/m3rciful/consultbot/core/telegram/helpers"
	"github.com/m3rciful/consultbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

func handleWithSummary(c tele.Context, handlerName string, start time.Time, fn func() error, extras ...slog.Attr) error {
	tghelpers.WithHandler(c, handlerName)
	err := fn()
	logHandlerSummary(c, handlerName, start, "", err, extras...)
	return err
}

func logHandlerSummary(c tele.Context, handlerName string, start time.Time, statusOverride string, err error, extras ...slog.Attr) {
	ctx := tghelpers.WithHandler(c, handlerName)
	msgs, kb := middleware.GetCounters(c)

	status := statusOverride
	if status == "" {
		status = logger.Status(err)
	}

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", handlerName),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	attrs = append(attrs, extras...)
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unknown"
	}
	name = strings.TrimPrefix(name, "/")
	name = strings.ReplaceAll(name, " ", "_")
	return strings.ToLower(name)
}

// deriveErrorCode prefers an explicit Code() on any error in the chain, then the
// innermost error's type name.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	type coder interface{ Code() string }
	var c coder
	if errors.As(err, &c) {
		if code := strings.TrimSpace(c.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	inner := err
	for {
		next := errors.Unwrap(inner)
		if next == nil {
			break
		}
		inner = next
	}
	t := reflect.TypeOf(inner)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Name() != "" {
		return strings.ToUpper(t.Name())
	}
	return "UNKNOWN_ERROR"
}

package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/consultbot/core/telegram"
	"github.com/m3rciful/consultbot/core/telegram/callbacks"
	"github.com/m3rciful/consultbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
}

// CallbackRoute returns a handler that routes every callback through the registry by its unique key.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		cb := c.Callback()
		if cb == nil {
			return nil
		}

		key, _ := callbacks.ParseCallbackData(cb)
		name := "callback." + normalizeHandlerName(key)
		extras := []slog.Attr{slog.String("cb_key", key)}

		// Acknowledge right away so the client stops its spinner.
		_ = c.Respond()

		cbHandler, ok := reg.GetCallback(key)
		if !ok || cbHandler == nil {
			fallback := reg.CallbackNotFound()
			if opts.NotFound != nil {
				fallback = opts.NotFound
			}
			extras = append(extras, slog.String("reason", "not_found"))
			if fallback == nil {
				logHandlerSummary(c, name, start, "skip", nil, extras...)
				return nil
			}
			return handleWithSummary(c, name, start, func() error { return fallback(c) }, extras...)
		}

		return handleWithSummary(c, name, start, func() error { return cbHandler(c) }, extras...)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}

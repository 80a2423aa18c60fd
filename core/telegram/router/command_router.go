package router

import (
	"log/slog"
	"time"

	"github.com/m3rciful/consultbot/core/logger"
	tg "github.com/m3rciful/consultbot/core/telegram"
	"github.com/m3rciful/consultbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	AdminID       int64
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes prepares command handlers wrapped with shared middleware.
// Aliases get their own endpoints.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}

	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for name, def := range cmds {
		handlerName := normalizeHandlerName(name)
		inner := def.Handler
		h := func(c tele.Context) error {
			return handleWithSummary(c, handlerName, time.Now(), func() error { return inner(c) })
		}
		if def.AdminOnly {
			h = adminOnly(h)
		}
		h = middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))

		for _, endpoint := range def.Endpoints(name) {
			routes = append(routes, tg.Route{Endpoint: endpoint, Handler: h})
		}
	}

	logger.TWire.Info("tg.wire",
		slog.String("event", "commands"),
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)

	return routes
}

package helpers

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"

	"github.com/m3rciful/consultbot/core/logger"
	"github.com/m3rciful/consultbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalDispatcher atomic.Pointer[sender.Dispatcher]

// SetDispatcher wires the asynchronous sender used by helper functions.
func SetDispatcher(d *sender.Dispatcher) {
	globalDispatcher.Store(d)
}

// Dispatcher returns the currently wired asynchronous sender, if any.
func Dispatcher() *sender.Dispatcher {
	return globalDispatcher.Load()
}

// SendAsync runs the call on the dispatcher, or inline when none is wired or the queue rejects it.
func SendAsync(c tele.Context, action, endpoint string, run func() error) error {
	return Enqueue(BuildContext(c), action, endpoint, run)
}

// Enqueue is SendAsync for callers that hold a context rather than an update.
func Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	disp := Dispatcher()
	if disp == nil {
		return run()
	}

	err := disp.Enqueue(ctx, action, endpoint, run)
	if errors.Is(err, sender.ErrQueueFull) || errors.Is(err, sender.ErrQueueClosed) {
		logger.Warn(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("endpoint", endpoint),
			slog.String("err", err.Error()),
		)
		return run()
	}
	return err
}


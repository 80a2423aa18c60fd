package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/consultbot/core/logger"
	tghelpers "github.com/m3rciful/consultbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	Interval  time.Duration
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// Now overrides the clock in tests.
	Now func() time.Time
}

// RateLimitMiddleware returns a middleware that enforces a minimum interval
// between updates from the same user.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	var (
		userLastSeen   = make(map[int64]time.Time)
		userLastSeenMu sync.Mutex
	)
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}

			kind := UpdateKind(c.Update())
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}

			ts := now()
			userLastSeenMu.Lock()
			if last, ok := userLastSeen[user.ID]; ok && ts.Sub(last) < opts.Interval {
				userLastSeenMu.Unlock()
				logger.Warn(tghelpers.BuildContext(c), "tg", "rate_limit",
					slog.String("status", "skip"),
					slog.String("kind", kind),
				)
				if opts.OnLimited != nil {
					_ = opts.OnLimited(c)
				}
				return nil
			}
			userLastSeen[user.ID] = ts
			userLastSeenMu.Unlock()
			return next(c)
		}
	}
}

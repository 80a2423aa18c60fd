package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/consultbot/core/config"
	"github.com/m3rciful/consultbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares builds the shared middleware chain: recover, metrics,
// optional rate limit, logging and per-update message counters.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc, obs middleware.UpdateObserver) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}
	if obs != nil {
		mws = append(mws, Middleware{Name: "update_metrics", Use: middleware.UpdateMetricsMiddleware(obs)})
	}

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(t)] = struct{}{}
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
					Interval:  interval,
					Exclude:   ex,
					OnLimited: onLimited,
				}),
			})
		}
	}

	mws = append(mws,
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "messages", Use: middleware.MessageMetricsMiddleware},
	)
	return mws
}

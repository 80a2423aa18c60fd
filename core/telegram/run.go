package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/consultbot/core/config"
	"github.com/m3rciful/consultbot/core/logger"
	tghelpers "github.com/m3rciful/consultbot/core/telegram/helpers"
	tgsender "github.com/m3rciful/consultbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// Middleware describes a global bot middleware to be registered via bot.Use.
type Middleware struct {
	Name string
	Use  func(next tele.HandlerFunc) tele.HandlerFunc
}

// Route declares a single bot handler bound to an arbitrary endpoint.
// Endpoint values are passed directly to tele.Bot.Handle.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	Dispatcher        *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	DisableWebhookCleanup   bool
	DisableHelperDispatcher bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime exposes runtime components to lifecycle hooks.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram composes and runs a Telegram bot until the provided context is done.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.Config == nil {
		return fmt.Errorf("telegram: nil config provided")
	}

	cfg := opts.Config
	reg := opts.Registry
	if reg == nil {
		reg = NewRegistry()
	}

	poller := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
		},
	})

	buildStart := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:  cfg.Telegram.Token,
		Poller: poller,
		Client: BuildHTTPClient(),
		OnError: func(err error, c tele.Context) {
			lctx := context.Background()
			if c != nil {
				lctx = tghelpers.BuildContext(c)
			}
			logger.Error(lctx, "tg", "bot.error",
				slog.String("status", "fail"),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		},
	})
	if err != nil {
		return fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	buildTook := time.Since(buildStart)

	dispatcher := opts.Dispatcher
	if dispatcher == nil {
		dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	useHelperDispatcher := !opts.DisableHelperDispatcher
	if useHelperDispatcher {
		tghelpers.SetDispatcher(dispatcher)
	}
	release := func() {
		dispatcher.Close()
		if useHelperDispatcher {
			tghelpers.SetDispatcher(nil)
		}
	}

	rt := Runtime{
		Bot:        bot,
		Dispatcher: dispatcher,
		Registry:   reg,
	}

	switch p := poller.(type) {
	case *tele.Webhook:
		logger.TG.LogAttrs(ctx, slog.LevelInfo, "webhook mode",
			slog.String("event", "mode"),
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
			slog.Duration("duration", logger.RoundMS(buildTook)),
		)
	default:
		logger.TG.LogAttrs(ctx, slog.LevelInfo, "polling mode",
			slog.String("event", "mode"),
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Int("timeout_seconds", longPollSeconds(cfg.Telegram.LongPollTimeoutSeconds)),
			slog.Duration("duration", logger.RoundMS(buildTook)),
		)
		if !opts.DisableWebhookCleanup && strings.EqualFold(cfg.Telegram.RunMode, coreconfig.RunModeLongpoll) {
			// A leftover webhook makes getUpdates fail with 409.
			if err := bot.RemoveWebhook(false); err != nil {
				logger.Warn(ctx, "tg", "delete_webhook",
					slog.String("status", "fail"),
					slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
				)
			} else {
				logger.Info(ctx, "tg", "delete_webhook", slog.String("status", "ok"))
			}
		}
	}

	for _, mw := range opts.Middlewares {
		if mw.Use == nil {
			continue
		}
		bot.Use(mw.Use)
	}

	for _, route := range opts.Routes {
		if route.Endpoint == nil || route.Handler == nil {
			continue
		}
		bot.Handle(route.Endpoint, route.Handler)
	}

	InitBotCommands(bot, reg)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			release()
			return err
		}
	}

	runDone := make(chan struct{})
	go func() {
		bot.Start()
		close(runDone)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		bot.Stop()
		<-runDone
		runErr = ctx.Err()
	case <-runDone:
	}

	var stopErr error
	if opts.OnStop != nil {
		// ctx is already done here; hooks get a short budget of their own.
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		stopErr = opts.OnStop(stopCtx, rt)
		cancel()
	}

	release()

	if stopErr != nil {
		return stopErr
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}

// Package app wires the sign-up conversation into the Telegram runtime.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/consultbot/core/bootstrap"
	corecmd "github.com/m3rciful/consultbot/core/cmd"
	"github.com/m3rciful/consultbot/core/logger"
	coretelegram "github.com/m3rciful/consultbot/core/telegram"
	"github.com/m3rciful/consultbot/core/telegram/router"
	"github.com/m3rciful/consultbot/core/telegram/sender"
	"github.com/m3rciful/consultbot/core/telegram/state"
	"github.com/m3rciful/consultbot/internal/config"
	"github.com/m3rciful/consultbot/internal/metrics"
	"github.com/m3rciful/consultbot/internal/presenter"
	"github.com/m3rciful/consultbot/internal/signup"
	"github.com/m3rciful/consultbot/internal/sink"
)

// Deps are the collaborators New does not build itself.
type Deps struct {
	Sink signup.Sink
	// Closer is released when the bot stops, typically the database.
	Closer io.Closer
	// Metrics defaults to a fresh registry with Go and process collectors.
	Metrics *prometheus.Registry
	Now     func() time.Time
}

// App is the assembled bot.
type App struct {
	cfg       *config.Config
	closer    io.Closer
	store     *state.Manager[signup.Record]
	presenter *presenter.Presenter
	machine   *signup.Machine
	recorder  *metrics.Recorder
	registry  *prometheus.Registry
	server    *metrics.Server
}

// Bootstrap initialises logging, the optional database and the sink, then
// builds the app. It is the core runner's bootstrap step.
func Bootstrap(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*config.Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	res, err := bootstrap.Run(ctx, bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.DatabaseConfig(),
	})
	if err != nil {
		return nil, err
	}
	snk, err := sink.Open(ctx, cfg.Sink, res.DB)
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	logger.Info(ctx, "app", "sink.ready", slog.String("status", "ok"), slog.String("sink", cfg.Sink.Kind))
	return New(cfg, Deps{Sink: snk, Closer: res})
}

// New assembles the app from its configuration and dependencies.
func New(cfg *config.Config, deps Deps) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: nil config")
	}
	if deps.Sink == nil {
		return nil, errors.New("app: nil sink")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	reg := deps.Metrics
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	a := &App{
		cfg:      cfg,
		closer:   deps.Closer,
		store:    state.NewManager[signup.Record](),
		registry: reg,
	}
	a.recorder = metrics.NewRecorder(reg, a.store.Len)
	a.presenter = presenter.New(presenter.Options{
		OperatorID: cfg.Telegram.AdminID,
		Observer:   a.recorder,
		Now:        deps.Now,
	})
	a.machine = signup.NewMachine(a.store, a.presenter, deps.Sink,
		signup.WithObserver(a.recorder),
		signup.WithStickers(signup.Stickers{
			Greeting: cfg.Signup.StickerGreeting,
			Thanks:   cfg.Signup.StickerThanks,
		}),
		signup.WithClock(deps.Now),
	)
	if cfg.Metrics.Listen != "" {
		a.server = metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path, reg)
	}
	return a, nil
}

// TelegramRunOptions registers handlers and returns the runtime options.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	if err := a.register(reg); err != nil {
		return coretelegram.RunOptions{}, err
	}

	core := a.cfg.CoreConfig()
	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: core.Telegram.AdminID})
	routes = append(routes, router.TextRoutes(conversation{a}, reg, router.TextOptions{})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))

	return coretelegram.RunOptions{
		Config:   core,
		Registry: reg,
		DispatcherOptions: sender.Options{
			MaxRetries: 2,
			OnResult:   a.recorder.SendResult,
		},
		Middlewares: coretelegram.DefaultMiddlewares(core, a.onLimited, a.recorder),
		Routes:      routes,
		OnStart:     a.start,
		OnStop:      a.stop,
	}, nil
}

func (a *App) start(ctx context.Context, rt coretelegram.Runtime) error {
	if rt.Bot != nil {
		a.presenter.Bind(rt.Bot)
	}
	if a.server != nil {
		if err := a.server.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) stop(ctx context.Context, _ coretelegram.Runtime) error {
	var errs []error
	if a.server != nil {
		errs = append(errs, a.server.Stop(ctx))
	}
	if a.closer != nil {
		errs = append(errs, a.closer.Close())
	}
	if n := a.store.Len(); n > 0 {
		logger.Info(ctx, "app", "sessions.dropped", slog.Int("count", n))
	}
	return errors.Join(errs...)
}

func (a *App) onLimited(c tele.Context) error {
	a.recorder.RateLimited()
	if c.Callback() != nil {
		return c.Respond()
	}
	return nil
}

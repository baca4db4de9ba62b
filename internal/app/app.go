package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"payout-charts/internal/alerting"
	"payout-charts/internal/config"
	"payout-charts/internal/feed"
	"payout-charts/internal/metrics"
	"payout-charts/internal/render"
	"payout-charts/internal/scheduler"
	"payout-charts/internal/series"
	"payout-charts/internal/source"
	"payout-charts/internal/storage"
)

const shutdownTimeout = 5 * time.Second

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger

	now func() time.Time
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), now: time.Now}
}

func (a *App) newLabels() (*series.LocaleFormatter, error) {
	loc, err := a.Config.Location()
	if err != nil {
		return nil, err
	}
	return series.NewLocaleFormatter(a.Config.Chart.Locale, loc)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// sourceHandle is an event source plus, for the postgres kind, the store behind it.
type sourceHandle struct {
	source.EventSource
	store storage.PaymentStore
	close func()
}

// Close releases resources held by the source.
func (h *sourceHandle) Close() {
	if h.close != nil {
		h.close()
	}
}

func (a *App) newSource(ctx context.Context) (*sourceHandle, error) {
	cfg := a.Config.Source
	switch cfg.Kind {
	case config.SourceAPI:
		return &sourceHandle{EventSource: source.NewAPI(source.APIOptions{
			BaseURL:   cfg.BaseURL,
			Account:   cfg.Account,
			Timeout:   cfg.Timeout,
			UserAgent: cfg.UserAgent,
		}, a.Logger)}, nil
	case config.SourcePostgres:
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return nil, err
		}
		if store == nil {
			return nil, errors.New("database.dsn not configured; cannot read payments")
		}
		return &sourceHandle{
			EventSource: source.NewPostgres(store, cfg.Account, cfg.Lookback, cfg.Timeout, a.now),
			store:       store,
			close:       closeStore,
		}, nil
	case config.SourceFile:
		return &sourceHandle{EventSource: source.NewFile(cfg.File)}, nil
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

func (a *App) newReporter() alerting.Reporter {
	reporters := alerting.MultiReporter{alerting.NewLogReporter(a.Logger)}
	if tg := a.newTelegram(); tg != nil {
		reporters = append(reporters, tg)
	}
	return reporters
}

func (a *App) newTelegram() *alerting.TelegramReporter {
	if !a.Config.Alerting.Enabled || !a.Config.Alerting.Telegram.Enabled {
		return nil
	}
	cfg := a.Config.Alerting.Telegram
	return alerting.NewTelegramReporter(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Config.Alerting.Cooldown, a.Logger)
}

func (a *App) newFeed(src source.EventSource, surface render.Surface, labels series.LabelFormatter, sched *scheduler.Scheduler, m *metrics.Metrics) *feed.Feed {
	return feed.New(feed.Options{
		Account:    a.Config.Source.Account,
		StaleAfter: a.Config.StalenessThreshold,
	}, feed.Deps{
		Scheduler: sched,
		Source:    src,
		Surface:   surface,
		Labels:    labels,
		Reporter:  a.newReporter(),
		Metrics:   m,
	}, a.Logger)
}

// Run executes the long-running chart feed.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	labels, err := a.newLabels()
	if err != nil {
		return err
	}

	src, err := a.newSource(ctx)
	if err != nil {
		return err
	}
	defer src.Close()

	m := metrics.New(a.Config.Metrics.Namespace)
	hub := render.NewHub(a.Config.Chart.DisplayUnit, labels, a.Logger)
	surfaces := render.Fanout{hub}
	if a.Config.Render.PNGPath != "" {
		surfaces = append(surfaces, render.NewPNG(render.PNGOptions{
			Path:   a.Config.Render.PNGPath,
			Width:  a.Config.Render.Width,
			Height: a.Config.Render.Height,
			Unit:   a.Config.Chart.DisplayUnit,
		}, a.Logger))
	}

	a.Config.Watch(a.Logger)

	sched := scheduler.New(scheduler.Options{
		Interval:       a.Config.PollInterval,
		RunImmediately: a.Config.Chart.PushOnStart,
		StartupDelay:   a.Config.Chart.StartupDelay,
		Now:            a.now,
	}, a.Logger)
	f := a.newFeed(src, surfaces, labels, sched, m)
	hub.OnAttach(f.RefreshFunc(ctx, a.now))

	server := render.NewServer(a.Config.Render.Listen, hub, m.Handler(), a.Logger)
	server.HealthDetails(func() map[string]any {
		return map[string]any{
			"account":    a.Config.Source.Account,
			"scheduler":  sched.State().String(),
			"refreshing": sched.Refreshing(),
		}
	})
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	a.Logger.Info().
		Str("account", a.Config.Source.Account).
		Str("source", a.Config.Source.Kind).
		Str("locale", labels.Locale().String()).
		Msg("starting chart feed")
	if err := f.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case err = <-serverErr:
		if err != nil {
			a.Logger.Error().Err(err).Msg("http server terminated with error")
		}
	}

	f.Stop()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		a.Logger.Warn().Err(shutdownErr).Msg("http server shutdown")
	}

	a.Logger.Info().Msg("chart feed stopped")
	return err
}

// RenderOptions configure a one-shot PNG render.
type RenderOptions struct {
	PNGPath string
	Width   int
	Height  int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

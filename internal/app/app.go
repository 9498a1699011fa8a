// Package app assembles the long-lived components shared by the binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"TdxBridge/internal/config"
	"TdxBridge/internal/financial"
	"TdxBridge/internal/logging"
	"TdxBridge/internal/model"
	"TdxBridge/internal/notifier"
	"TdxBridge/internal/provider"
	"TdxBridge/internal/recorder"
	"TdxBridge/internal/scheduler"
	"TdxBridge/internal/series"
)

// App holds every component. Handlers receive it by reference.
type App struct {
	Config    *config.Config
	Logger    *logging.Logger
	Provider  provider.Provider
	Store     *financial.Store
	Syncer    *financial.Syncer
	Resolver  *financial.Resolver
	Series    *series.Accessor
	Recorder  recorder.Recorder
	Notifier  notifier.Notifier
	Scheduler *scheduler.Scheduler
	StartedAt time.Time

	closers []func() error
}

// New builds the production App backed by the TDX provider.
func New(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*App, error) {
	p := provider.NewTDX(provider.RemoteOptions{
		BaseURL:   cfg.Provider.FinanceBaseURL,
		Timeout:   cfg.Provider.Timeout,
		Retries:   cfg.Provider.Retries,
		RateLimit: cfg.Provider.RateLimit,
		Proxy:     cfg.Proxy,
	}, provider.CacheOptions{
		TTL:        cfg.Provider.BarCacheTTL,
		MaxEntries: cfg.Provider.BarCacheSize,
	}, logger)

	a, err := NewWithProvider(ctx, cfg, p, logger)
	if err != nil {
		p.Close()
		return nil, err
	}
	a.closers = append(a.closers, p.Close)
	return a, nil
}

// NewWithProvider builds an App around an existing provider.
func NewWithProvider(ctx context.Context, cfg *config.Config, p provider.Provider, logger *logging.Logger) (*App, error) {
	adjust, err := model.ParseAdjust(cfg.Series.DefaultAdjust, model.AdjustForward)
	if err != nil {
		return nil, fmt.Errorf("series.default_adjust: %w", err)
	}

	store := financial.NewStore(cfg.FinancialDir())
	rec := recorder.Open(cfg.Database.SQLitePath, logger.Component("recorder"))

	var n notifier.Notifier = notifier.Noop{}
	if cfg.TelegramEnabled() {
		n = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger.Component("telegram"))
	}

	syncer := financial.NewSyncer(p, store, logger.Component("syncer"))
	a := &App{
		Config:    cfg,
		Logger:    logger,
		Provider:  p,
		Store:     store,
		Syncer:    syncer,
		Resolver:  financial.NewResolver(p, store, cfg.Financial.MaxRows, logger.Component("resolver")),
		Series:    series.NewAccessor(p, adjust, cfg.Series.DefaultWindow, logger.Component("series")),
		Recorder:  rec,
		Notifier:  n,
		StartedAt: time.Now(),
		closers:   []func() error{rec.Close},
	}
	a.Scheduler = scheduler.NewScheduler(ctx, scheduler.Options{
		Refresher: p,
		Syncer:    syncer,
		Store:     store,
		Notifier:  n,
		Recorder:  rec,
		Location:  cfg.Location(),
		DataDir:   cfg.DataDir,
	}, logger.Component("scheduler"))
	if err := a.Scheduler.Register(cfg.Schedule.DailyCron); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// Telegram returns the chat notifier when one is configured.
func (a *App) Telegram() (*notifier.TelegramNotifier, bool) {
	t, ok := a.Notifier.(*notifier.TelegramNotifier)
	return t, ok
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

// Package app assembles the parlay client from configuration: backend,
// entitlements, availability probe, weeks tracker, telemetry, the generation
// controller and the optional local API.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/GoPolymarket/parlay-builder/internal/api"
	"github.com/GoPolymarket/parlay-builder/internal/availability"
	"github.com/GoPolymarket/parlay-builder/internal/backend"
	"github.com/GoPolymarket/parlay-builder/internal/cache"
	"github.com/GoPolymarket/parlay-builder/internal/config"
	"github.com/GoPolymarket/parlay-builder/internal/controller"
	"github.com/GoPolymarket/parlay-builder/internal/entitlement"
	"github.com/GoPolymarket/parlay-builder/internal/history"
	xlog "github.com/GoPolymarket/parlay-builder/internal/log"
	"github.com/GoPolymarket/parlay-builder/internal/paper"
	"github.com/GoPolymarket/parlay-builder/internal/parlay"
	"github.com/GoPolymarket/parlay-builder/internal/telemetry"
	"github.com/GoPolymarket/parlay-builder/internal/weeks"
)

// Options carries process-level dependencies that do not come from config.
type Options struct {
	Logger zerolog.Logger
	// Registerer receives the ledger gauges; nil uses the default registry.
	Registerer prometheus.Registerer
}

// App owns every long-lived component. Fields are exported for the CLI.
type App struct {
	cfg    config.Config
	logger zerolog.Logger

	Backend    *backend.Client
	Paper      *paper.Simulator
	Resolver   *entitlement.Resolver
	Probe      *availability.Probe
	Weeks      *weeks.Tracker
	Telemetry  *telemetry.Reporter
	Ledger     *history.Ledger
	Controller *controller.Controller

	paperServer *http.Server
	cache       cache.Cache
	weeksHandle *weeks.Handle
	apiServer   *api.Server

	unregisterGauges func()
}

// New builds the component graph. Entitlement and weeks failures are logged
// and leave the restrictive defaults in place; only a broken backend setup is
// fatal.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	a := &App{cfg: cfg, logger: opts.Logger}

	baseURL := cfg.Backend.BaseURL
	if cfg.Backend.Kind == "paper" {
		url, err := a.startPaper(cfg.Paper)
		if err != nil {
			return nil, fmt.Errorf("start paper backend: %w", err)
		}
		baseURL = url
	}
	a.Backend = backend.New(backend.Options{
		BaseURL:         baseURL,
		Token:           backendToken(cfg),
		Timeout:         cfg.Backend.Timeout,
		GenerateTimeout: cfg.Backend.GenerateTimeout,
		MaxRPS:          cfg.Backend.MaxRPS,
		Burst:           cfg.Backend.Burst,
		Logger:          component(opts.Logger, "backend"),
	})

	a.Resolver = entitlement.NewResolver(a.Backend, component(opts.Logger, "entitlement"))
	if err := a.Resolver.SetUser(ctx, cfg.UserID); err != nil {
		a.logger.Warn().Err(err).Str(xlog.FieldUserID, cfg.UserID).Msg("entitlements unavailable, using restrictive defaults")
	}

	if cfg.Probe.Enabled {
		a.cache = a.buildCache(ctx)
		a.Probe = availability.New(a.Backend, availability.Options{
			Debounce: cfg.Probe.Debounce,
			Cache:    a.cache,
			CacheTTL: cfg.Probe.CacheTTL,
			Logger:   component(opts.Logger, "availability"),
		})
	}

	if cfg.Weeks.Enabled {
		a.Weeks = weeks.NewTracker(a.Backend, cfg.Weeks.RefreshInterval, component(opts.Logger, "weeks"))
		if err := a.Weeks.Sync(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("initial weeks sync")
		}
	}

	if cfg.Telemetry.Enabled {
		a.Telemetry = telemetry.NewReporter(telemetry.Options{
			Endpoint:  cfg.Telemetry.Endpoint,
			Token:     cfg.Telemetry.Token,
			Timeout:   cfg.Telemetry.Timeout,
			QueueSize: cfg.Telemetry.QueueSize,
			Logger:    component(opts.Logger, "telemetry"),
		})
		a.Telemetry.Start()
	}

	a.Ledger = history.NewLedger(cfg.History.Capacity)
	a.unregisterGauges = registerLedgerGauges(opts.Registerer, a.Ledger, a.logger)

	a.Controller = controller.New(controller.Options{
		Backend:      a.Backend,
		Entitlements: a.Resolver,
		Probe:        a.Probe,
		Weeks:        a.Weeks,
		Telemetry:    a.Telemetry,
		Ledger:       a.Ledger,
		Initial:      cfg.Request,
		TickPeriod:   cfg.Progress.TickPeriod,
		FlashDelay:   cfg.Progress.FlashDelay,
		Logger:       component(opts.Logger, "controller"),
	})

	// Started after the controller so its week default hook sees every sync.
	if a.Weeks != nil {
		a.weeksHandle = a.Weeks.Start(context.Background())
	}
	return a, nil
}

func component(l zerolog.Logger, name string) zerolog.Logger {
	return l.With().Str(xlog.FieldComponent, name).Logger()
}

// backendToken picks the bearer credential. The paper backend identifies the
// user by token, so the configured user id doubles as one.
func backendToken(cfg config.Config) string {
	if cfg.Backend.Kind == "paper" && cfg.Backend.Token == "" {
		return cfg.UserID
	}
	return cfg.Backend.Token
}

// startPaper serves the simulator on a loopback port so the real HTTP client
// path is exercised end to end.
func (a *App) startPaper(pcfg paper.Config) (string, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	a.Paper = paper.NewSimulator(pcfg)
	a.paperServer = &http.Server{
		Handler:           paper.Handler(a.Paper),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.paperServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error().Err(err).Msg("paper backend")
		}
	}()
	a.logger.Info().Str("addr", ln.Addr().String()).Msg("paper backend listening")
	return "http://" + ln.Addr().String(), nil
}

func (a *App) buildCache(ctx context.Context) cache.Cache {
	switch a.cfg.Probe.Cache {
	case "none":
		return nil
	case "redis":
		r, err := cache.NewRedis(ctx, cache.RedisConfig{
			Addr:     a.cfg.Probe.Redis.Addr,
			Password: a.cfg.Probe.Redis.Password,
			DB:       a.cfg.Probe.Redis.DB,
		}, component(a.logger, "cache"))
		if err == nil {
			return r
		}
		a.logger.Warn().Err(err).Msg("redis cache unavailable, falling back to memory")
	}
	return cache.NewMemory()
}

// GenerateOnce runs one attempt for the configured request and returns the
// resolved view. A paywall is returned as part of the view, not as an error.
func (a *App) GenerateOnce(ctx context.Context) (controller.View, error) {
	if name := a.cfg.QuickStart; name != "" {
		if err := a.Controller.ApplyPreset(name); err != nil && !errors.Is(err, controller.ErrPaywallRequired) {
			return a.Controller.View(), err
		}
	}
	_, err := a.Controller.Generate(ctx)
	if errors.Is(err, controller.ErrPaywallRequired) {
		err = nil
	}
	return a.Controller.View(), err
}

// RecoverOnce applies one offered recovery action and regenerates.
func (a *App) RecoverOnce(ctx context.Context, action string) (controller.View, error) {
	v := a.Controller.View()
	if v.Failure == nil {
		return v, controller.ErrNoFailure
	}
	for _, act := range v.Failure.Actions {
		if string(act.ID) == action {
			_, err := a.Controller.ApplyRecovery(ctx, act.ID)
			return a.Controller.View(), err
		}
	}
	return v, fmt.Errorf("%w: %s", controller.ErrUnknownAction, action)
}

// Serve starts the local API and blocks until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	a.apiServer = api.NewServer(api.Options{
		Addr:           a.cfg.API.Addr,
		AllowedOrigins: a.cfg.API.AllowedOrigins,
		Generator:      a.Controller,
		Sessions:       a.Resolver,
		Logger:         a.logger,
	})
	if err := a.apiServer.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

// Sports lists the configured sport selection, for the probe CLI.
func (a *App) Sports() []parlay.Sport {
	return a.Controller.Config().Sports
}

// Shutdown stops the API, the controller timers, the refresh loops and the
// paper backend, in that order.
func (a *App) Shutdown(ctx context.Context) {
	if a.apiServer != nil {
		if err := a.apiServer.Shutdown(ctx); err != nil {
			a.logger.Warn().Err(err).Msg("api shutdown")
		}
	}
	if a.Controller != nil {
		a.Controller.Close()
	}
	if a.weeksHandle != nil {
		a.weeksHandle.Stop()
	}
	if a.Telemetry != nil {
		a.Telemetry.Close()
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if a.paperServer != nil {
		_ = a.paperServer.Shutdown(ctx)
	}
	if a.unregisterGauges != nil {
		a.unregisterGauges()
		a.unregisterGauges = nil
	}
	stats := a.Ledger.Stats()
	a.logger.Info().
		Int("attempts", stats.Attempts).
		Int("successes", stats.Successes).
		Int("recovery_successes", stats.RecoverySuccesses).
		Msg("session complete")
}

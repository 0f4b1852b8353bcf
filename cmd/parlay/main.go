package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/GoPolymarket/parlay-builder/internal/app"
	"github.com/GoPolymarket/parlay-builder/internal/config"
	xlog "github.com/GoPolymarket/parlay-builder/internal/log"
	"github.com/GoPolymarket/parlay-builder/internal/parlay"
	"github.com/GoPolymarket/parlay-builder/internal/render"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to config file")
	preset := flag.String("preset", "", "quick-start preset: "+strings.Join(parlay.QuickStartNames(), "|"))
	backendKind := flag.String("backend", "", "override backend: paper|http")
	sports := flag.String("sports", "", "comma separated sports, e.g. NFL,NBA")
	legs := flag.Int("legs", 0, "leg count for single mode")
	mode := flag.String("mode", "", "single|triple")
	risk := flag.String("risk", "", "conservative|balanced|degen")
	week := flag.Int("week", 0, "NFL week filter (0 keeps the config/default)")
	props := flag.Bool("props", false, "include player props")
	mix := flag.Bool("mix", false, "mix legs across the selected sports")
	recoverAction := flag.String("recover", "", "on failure, apply this recovery action and regenerate")
	save := flag.String("save", "", "save a successful parlay under this title")
	serve := flag.Bool("serve", false, "serve the local API instead of generating once")
	addr := flag.String("addr", "", "API listen address (with -serve)")
	pretty := flag.Bool("pretty", false, "human readable logs")
	flag.Parse()

	cfg, err := config.LoadFile(*cfgPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "config file: %v\n", err)
			os.Exit(1)
		}
		cfg = config.Default()
	}
	cfg.ApplyEnv()
	if err := applyFlags(&cfg, flagValues{
		backend: *backendKind, sports: *sports, legs: *legs, mode: *mode, risk: *risk,
		week: *week, props: *props, mix: *mix, addr: *addr, pretty: *pretty,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid flags: %v\n", err)
		os.Exit(2)
	}
	if err := config.ApplyQuickStart(&cfg, *preset); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -preset: %v\n", err)
		os.Exit(2)
	}
	if *serve {
		cfg.API.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(2)
	}

	xlog.Configure(xlog.Config{Level: cfg.LogLevel, Service: "parlay", Pretty: cfg.LogPretty})
	logger := xlog.Base()
	logger.Info().
		Str("backend", cfg.Backend.Kind).
		Str(xlog.FieldMode, string(cfg.Request.Mode)).
		Int("legs", cfg.Request.LegCount).
		Str("quick_start", cfg.QuickStart).
		Bool("serve", cfg.API.Enabled).
		Msg("parlay starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, app.Options{Logger: logger})
	if err != nil {
		logger.Fatal().Err(err).Msg("build app")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.Shutdown(shutdownCtx)
	}()

	if cfg.API.Enabled {
		if err := a.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("serve")
		}
		return
	}

	v, err := a.GenerateOnce(ctx)
	if err != nil {
		fmt.Fprintln(os.Stdout, render.Text(v))
		logger.Error().Err(err).Msg("generate")
		return
	}
	if v.Failure != nil && *recoverAction != "" {
		fmt.Fprintln(os.Stdout, render.Text(v))
		fmt.Fprintln(os.Stdout, "\nApplying", *recoverAction, "...")
		if v, err = a.RecoverOnce(ctx, *recoverAction); err != nil {
			logger.Error().Err(err).Msg("recover")
		}
	}
	if v.Result != nil && *save != "" {
		if _, err := a.Controller.Save(ctx, *save); err != nil {
			logger.Error().Err(err).Msg("save")
		}
		v = a.Controller.View()
	}
	fmt.Fprintln(os.Stdout, render.Text(v))
	if v.Failure == nil && v.Paywall == nil {
		for _, tip := range render.Tips(v) {
			fmt.Fprintln(os.Stdout, "tip: "+tip)
		}
	}
}

type flagValues struct {
	backend, sports, mode, risk, addr string
	legs, week                        int
	props, mix, pretty                bool
}

// applyFlags layers command line overrides over file and env config.
func applyFlags(cfg *config.Config, f flagValues) error {
	if f.backend != "" {
		cfg.Backend.Kind = strings.ToLower(strings.TrimSpace(f.backend))
	}
	if f.sports != "" {
		cfg.Request.Sports = nil
		for _, raw := range strings.Split(f.sports, ",") {
			if strings.TrimSpace(raw) == "" {
				continue
			}
			s, err := parlay.ParseSport(raw)
			if err != nil {
				return err
			}
			cfg.Request.Sports = append(cfg.Request.Sports, s)
		}
	}
	if f.legs > 0 {
		cfg.Request.LegCount = f.legs
	}
	if f.mode != "" {
		m, err := parlay.ParseMode(f.mode)
		if err != nil {
			return err
		}
		cfg.Request.Mode = m
		if m == parlay.ModeTriple && cfg.Request.TripleVariant == "" {
			cfg.Request.TripleVariant = parlay.TripleFlight
		}
	}
	if f.risk != "" {
		r, err := parlay.ParseRiskProfile(f.risk)
		if err != nil {
			return err
		}
		cfg.Request.Risk = r
	}
	if f.week > 0 {
		w := f.week
		cfg.Request.Week = &w
	}
	if f.props {
		cfg.Request.IncludePlayerProps = true
	}
	if f.mix {
		cfg.Request.MixSports = true
	}
	if len(cfg.Request.Sports) < 2 {
		cfg.Request.MixSports = false
	}
	if f.addr != "" {
		cfg.API.Addr = f.addr
	}
	if f.pretty {
		cfg.LogPretty = true
	}
	return nil
}

package config

import (
	"strings"

	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

// ApplyQuickStart replaces the starting request with a named preset.
// Supported presets:
// - safe:        3 conservative legs, no props
// - balanced:    4 balanced legs
// - degen:       5 high-variance legs
// - confidence:  Triple mode, confidence variant
// - multi-sport: 4 legs mixed across two sports
//
// With the paper backend the leg count is clamped to the simulated plan so
// the preset stays generatable.
func ApplyQuickStart(cfg *Config, name string) error {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return nil
	}
	req, err := parlay.ApplyQuickStart(cfg.Request, n)
	if err != nil {
		return err
	}
	cfg.Request = req
	cfg.QuickStart = n
	if cfg.Backend.Kind == "paper" && req.Mode == parlay.ModeSingle {
		clampMaxInt(&cfg.Request.LegCount, cfg.Paper.MaxLegs)
	}
	return nil
}

func clampMaxInt(v *int, max int) {
	if max <= 0 {
		return
	}
	if *v <= 0 || *v > max {
		*v = max
	}
}

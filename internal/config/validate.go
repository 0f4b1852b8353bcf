package config

import (
	"fmt"
	"strings"

	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

// Validate checks high-impact runtime configuration constraints.
func (c Config) Validate() error {
	switch c.Backend.Kind {
	case "paper":
	case "http":
		if strings.TrimSpace(c.Backend.BaseURL) == "" {
			return fmt.Errorf("backend.base_url is required for backend.kind=http")
		}
	default:
		return fmt.Errorf("backend.kind must be 'paper' or 'http', got %q", c.Backend.Kind)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be > 0, got %v", c.Backend.Timeout)
	}
	if c.Backend.GenerateTimeout < c.Backend.Timeout {
		return fmt.Errorf("backend.generate_timeout must be >= backend.timeout, got %v", c.Backend.GenerateTimeout)
	}
	if c.Backend.MaxRPS < 0 {
		return fmt.Errorf("backend.max_rps must be >= 0, got %f", c.Backend.MaxRPS)
	}

	for _, s := range c.Request.Sports {
		if _, err := parlay.ParseSport(string(s)); err != nil {
			return fmt.Errorf("request.sports: %w", err)
		}
	}
	// An empty sport selection is a valid starting point; Generate blocks on it.
	if len(c.Request.Sports) > 0 {
		if err := c.Request.Validate(parlay.MaxLegsCeiling); err != nil {
			return fmt.Errorf("request: %w", err)
		}
	}
	if c.QuickStart != "" {
		if _, err := parlay.ApplyQuickStart(c.Request, c.QuickStart); err != nil {
			return err
		}
	}

	switch c.Probe.Cache {
	case "memory", "none", "":
	case "redis":
		if strings.TrimSpace(c.Probe.Redis.Addr) == "" {
			return fmt.Errorf("probe.redis.addr is required for probe.cache=redis")
		}
	default:
		return fmt.Errorf("probe.cache must be 'memory', 'redis' or 'none', got %q", c.Probe.Cache)
	}
	if c.Probe.Debounce < 0 {
		return fmt.Errorf("probe.debounce must be >= 0, got %v", c.Probe.Debounce)
	}

	if c.Progress.TickPeriod <= 0 {
		return fmt.Errorf("progress.tick_period must be > 0, got %v", c.Progress.TickPeriod)
	}
	if c.Weeks.Enabled && c.Weeks.RefreshInterval <= 0 {
		return fmt.Errorf("weeks.refresh_interval must be > 0, got %v", c.Weeks.RefreshInterval)
	}
	if c.History.Capacity <= 0 {
		return fmt.Errorf("history.capacity must be > 0, got %d", c.History.Capacity)
	}
	if c.Telemetry.Enabled && strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}

	if c.Backend.Kind == "paper" {
		if c.Paper.MaxLegs <= 0 || c.Paper.MaxLegs > parlay.MaxLegsCeiling {
			return fmt.Errorf("paper.max_legs must be within [1,%d], got %d", parlay.MaxLegsCeiling, c.Paper.MaxLegs)
		}
		if c.Paper.FreeLimit < 0 {
			return fmt.Errorf("paper.free_limit must be >= 0, got %d", c.Paper.FreeLimit)
		}
		if c.Paper.Latency < 0 {
			return fmt.Errorf("paper.latency must be >= 0, got %v", c.Paper.Latency)
		}
	}
	return nil
}

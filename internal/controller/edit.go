package controller

import (
	"fmt"

	"github.com/GoPolymarket/parlay-builder/internal/availability"
	"github.com/GoPolymarket/parlay-builder/internal/metrics"
	"github.com/GoPolymarket/parlay-builder/internal/parlay"
	"github.com/GoPolymarket/parlay-builder/internal/paywall"
)

// edit applies fn to a copy of the configuration. Edits are refused while an
// attempt is in flight, newly gated features open the paywall instead of
// applying, and an accepted edit from Resolved returns to Idle.
func (c *Controller) edit(fn func(parlay.RequestConfig) (parlay.RequestConfig, error)) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state == StateInFlight || c.state == StateValidating {
		c.mu.Unlock()
		return ErrEditWhileInFlight
	}
	next, err := fn(c.cfg.Clone())
	if err != nil {
		c.mu.Unlock()
		return err
	}
	if prompt := gated(c.cfg, next, c.entitlements()); prompt != nil {
		c.mu.Unlock()
		metrics.PreflightRejectTotal.WithLabelValues(string(prompt.Reason)).Inc()
		c.showPaywall(prompt, "")
		return fmt.Errorf("%w: %s", ErrPaywallRequired, prompt.Feature)
	}
	c.cfg = next
	c.rejection = nil
	if c.state == StateResolved {
		c.result, c.failure, c.actions = nil, nil, nil
		c.setStateLocked(StateIdle)
	}
	sel := availability.SelectionFor(next)
	c.mu.Unlock()

	c.requestProbe(sel)
	return nil
}

// gated returns a prompt when next newly turns on a feature the plan lacks.
// Configurations that were already over the plan are left to Generate.
func gated(prev, next parlay.RequestConfig, ent parlay.Entitlements) *paywall.Context {
	mix := next.MultiSport() && !prev.MultiSport() && !ent.MixSportsAllowed
	props := next.IncludePlayerProps && !prev.IncludePlayerProps && !ent.PlayerPropsAllowed
	if !mix && !props {
		return nil
	}
	return paywall.Preflight(next, ent)
}

func (c *Controller) requestProbe(sel availability.Selection) {
	if c.probe == nil || len(sel.Sports) == 0 {
		return
	}
	c.probe.Request(sel)
}

// defaultWeek fills in the current NFL week once, when the selection has a
// week-filtered sport and no week yet.
func (c *Controller) defaultWeek() {
	week, ok := c.weeks.CurrentWeek()
	if !ok {
		return
	}
	c.mu.Lock()
	if c.weekDefaulted || c.closed || c.state == StateInFlight || c.state == StateValidating {
		c.mu.Unlock()
		return
	}
	c.weekDefaulted = true
	if c.cfg.Week != nil || !supportsWeeks(c.cfg.Sports) {
		c.mu.Unlock()
		return
	}
	c.cfg = c.cfg.WithWeek(&week)
	sel := availability.SelectionFor(c.cfg)
	c.mu.Unlock()
	c.requestProbe(sel)
}

func supportsWeeks(sports []parlay.Sport) bool {
	for _, s := range sports {
		if s.SupportsWeeks() {
			return true
		}
	}
	return false
}

// Config returns a copy of the current configuration.
func (c *Controller) Config() parlay.RequestConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Clone()
}

// SetConfig replaces the whole configuration. A selection with sports must be
// structurally valid and within the plan's leg cap; an empty selection is
// accepted and blocks Generate.
func (c *Controller) SetConfig(cfg parlay.RequestConfig) error {
	maxLegs := c.entitlements().MaxLegs
	return c.edit(func(parlay.RequestConfig) (parlay.RequestConfig, error) {
		if cfg.Mode == "" {
			cfg.Mode = parlay.ModeSingle
		}
		if cfg.Risk == "" {
			cfg.Risk = parlay.RiskBalanced
		}
		if cfg.Mode == parlay.ModeTriple && cfg.TripleVariant == "" {
			cfg.TripleVariant = parlay.TripleFlight
		}
		if len(cfg.Sports) > 0 {
			if err := cfg.Validate(maxLegs); err != nil {
				return cfg, err
			}
		}
		return cfg.Clone(), nil
	})
}

// SetSports replaces the sport selection. An empty selection is allowed; it
// blocks Generate until a sport is picked.
func (c *Controller) SetSports(sports ...parlay.Sport) error {
	return c.edit(func(cfg parlay.RequestConfig) (parlay.RequestConfig, error) {
		seen := make(map[parlay.Sport]struct{}, len(sports))
		cfg.Sports = cfg.Sports[:0]
		for _, s := range sports {
			if _, dup := seen[s]; dup {
				continue
			}
			seen[s] = struct{}{}
			cfg.Sports = append(cfg.Sports, s)
		}
		if len(cfg.Sports) < 2 {
			cfg.MixSports = false
		}
		return cfg, nil
	})
}

// AddSport adds a sport to the selection.
func (c *Controller) AddSport(s parlay.Sport) error {
	return c.edit(func(cfg parlay.RequestConfig) (parlay.RequestConfig, error) {
		for _, have := range cfg.Sports {
			if have == s {
				return cfg, nil
			}
		}
		cfg.Sports = append(cfg.Sports, s)
		return cfg, nil
	})
}

// RemoveSport drops a sport from the selection.
func (c *Controller) RemoveSport(s parlay.Sport) error {
	return c.edit(func(cfg parlay.RequestConfig) (parlay.RequestConfig, error) {
		out := cfg.Sports[:0]
		for _, have := range cfg.Sports {
			if have != s {
				out = append(out, have)
			}
		}
		cfg.Sports = out
		if len(cfg.Sports) < 2 {
			cfg.MixSports = false
		}
		return cfg, nil
	})
}

// SetLegCount sets the Single mode leg count within the plan's cap.
func (c *Controller) SetLegCount(n int) error {
	maxLegs := c.entitlements().MaxLegs
	return c.edit(func(cfg parlay.RequestConfig) (parlay.RequestConfig, error) {
		if n < 1 || n > maxLegs {
			return cfg, fmt.Errorf("%w: %d not in [1,%d]", parlay.ErrLegCountRange, n, maxLegs)
		}
		cfg.LegCount = n
		return cfg, nil
	})
}

func (c *Controller) SetRisk(r parlay.RiskProfile) error {
	return c.edit(func(cfg parlay.RequestConfig) (parlay.RequestConfig, error) {
		parsed, err := parlay.ParseRiskProfile(string(r))
		if err != nil {
			return cfg, err
		}
		cfg.Risk = parsed
		return cfg, nil
	})
}

// SetMode switches between Single and Triple. Selecting Triple is refused
// while the strong-edge gate is closed; a Triple selection already made is
// kept when the gate closes later.
func (c *Controller) SetMode(m parlay.Mode, variant parlay.TripleVariant) error {
	if m == parlay.ModeTriple && c.probe != nil {
		cur := c.Config()
		if g := c.probe.Gate(availability.SelectionFor(cur)); !g.Selectable && cur.Mode != parlay.ModeTriple {
			return fmt.Errorf("%w: %s", ErrTripleUnavailable, g.Reason)
		}
	}
	return c.edit(func(cfg parlay.RequestConfig) (parlay.RequestConfig, error) {
		parsed, err := parlay.ParseMode(string(m))
		if err != nil {
			return cfg, err
		}
		cfg.Mode = parsed
		cfg.TripleVariant = ""
		if parsed == parlay.ModeTriple {
			if variant == "" {
				variant = parlay.TripleFlight
			}
			cfg.TripleVariant = variant
		}
		return cfg, nil
	})
}

// SetWeek sets or clears (nil) the week filter.
func (c *Controller) SetWeek(week *int) error {
	if week != nil && c.weeks != nil {
		if list := c.weeks.Weeks(); len(list.Weeks) > 0 && !list.Available(*week) {
			return fmt.Errorf("%w: %d", ErrWeekUnavailable, *week)
		}
	}
	return c.edit(func(cfg parlay.RequestConfig) (parlay.RequestConfig, error) {
		return cfg.WithWeek(week), nil
	})
}

func (c *Controller) SetPlayerProps(on bool) error {
	return c.edit(func(cfg parlay.RequestConfig) (parlay.RequestConfig, error) {
		cfg.IncludePlayerProps = on
		return cfg, nil
	})
}

func (c *Controller) SetMixSports(on bool) error {
	return c.edit(func(cfg parlay.RequestConfig) (parlay.RequestConfig, error) {
		if on && len(cfg.Sports) < 2 {
			return cfg, parlay.ErrMixNeedsSports
		}
		cfg.MixSports = on
		return cfg, nil
	})
}

// ApplyPreset replaces the configuration with a quick-start preset.
func (c *Controller) ApplyPreset(name string) error {
	return c.edit(func(cfg parlay.RequestConfig) (parlay.RequestConfig, error) {
		return parlay.ApplyQuickStart(cfg, name)
	})
}

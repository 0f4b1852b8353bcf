// Package paywall decides when generation must stop for an upgrade prompt.
package paywall

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

type ParlayType string

const (
	ParlayTypeSingle ParlayType = "single"
	ParlayTypeMulti  ParlayType = "multi"
)

// Gated feature names reported on pre-flight prompts.
const (
	FeatureMixSports   = "mix_sports"
	FeaturePlayerProps = "player_props"
)

// Context is what the paywall prompt renders.
type Context struct {
	Reason         parlay.PaywallReason `json:"reason"`
	Code           parlay.PaywallCode   `json:"code,omitempty"`
	Message        string               `json:"message,omitempty"`
	Pricing        *parlay.Pricing      `json:"pricing,omitempty"`
	ParlayType     ParlayType           `json:"parlay_type"`
	Feature        string               `json:"feature,omitempty"`
	UpgradeURL     string               `json:"upgrade_url,omitempty"`
	RemainingToday *int                 `json:"remaining_today,omitempty"`
	Preflight      bool                 `json:"preflight"`
}

func parlayTypeOf(cfg parlay.RequestConfig) ParlayType {
	if cfg.MultiSport() {
		return ParlayTypeMulti
	}
	return ParlayTypeSingle
}

// Decide maps a PaywallRequired outcome onto a prompt. Every other outcome
// yields nil.
func Decide(outcome parlay.Outcome, cfg parlay.RequestConfig) *Context {
	pw, ok := outcome.(parlay.PaywallRequired)
	if !ok {
		return nil
	}
	reason, ok := parlay.ReasonForCode(pw.Code)
	if !ok {
		return nil
	}
	return &Context{
		Reason:         reason,
		Code:           pw.Code,
		Message:        pw.Message,
		Pricing:        pw.Pricing,
		ParlayType:     parlayTypeOf(cfg),
		Feature:        pw.Feature,
		UpgradeURL:     pw.UpgradeURL,
		RemainingToday: pw.RemainingToday,
	}
}

// Preflight checks a proposed configuration against the entitlement snapshot
// before any network call. It returns nil when nothing is gated.
func Preflight(next parlay.RequestConfig, ent parlay.Entitlements) *Context {
	var feature, msg string
	switch {
	case next.MultiSport() && !ent.MixSportsAllowed:
		feature, msg = FeatureMixSports, "Combining sports in one parlay is a Premium feature."
	case next.IncludePlayerProps && !ent.PlayerPropsAllowed:
		feature, msg = FeaturePlayerProps, "Player props are a Premium feature."
	default:
		return nil
	}
	reason := parlay.ReasonFeaturePremiumOnly
	if !ent.IsAuthenticated {
		reason = parlay.ReasonLoginRequired
		msg = "Sign in to unlock this feature."
	}
	return &Context{
		Reason:     reason,
		Message:    msg,
		ParlayType: parlayTypeOf(next),
		Feature:    feature,
		Preflight:  true,
	}
}

// Refresher re-reads entitlements after the prompt closes.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Coordinator owns the active prompt.
type Coordinator struct {
	mu        sync.RWMutex
	current   *Context
	refresher Refresher
	onClear   func()
	logger    zerolog.Logger
}

func New(refresher Refresher, logger zerolog.Logger) *Coordinator {
	return &Coordinator{refresher: refresher, logger: logger}
}

// OnClear registers a callback run after every Dismiss.
func (c *Coordinator) OnClear(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onClear = fn
}

// Show replaces the active prompt; nil is ignored.
func (c *Coordinator) Show(p *Context) {
	if p == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *p
	c.current = &cp
	c.logger.Info().
		Str("reason", string(p.Reason)).
		Str("feature", p.Feature).
		Bool("preflight", p.Preflight).
		Msg("paywall shown")
}

// Current returns a copy of the active prompt, or nil.
func (c *Coordinator) Current() *Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return nil
	}
	cp := *c.current
	return &cp
}

// Active reports whether a prompt is showing.
func (c *Coordinator) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current != nil
}

// Dismiss closes the prompt and always refreshes entitlements, since the user
// may have upgraded in the meantime. The refresh error is returned after the
// prompt has been cleared.
func (c *Coordinator) Dismiss(ctx context.Context) error {
	c.mu.Lock()
	c.current = nil
	onClear := c.onClear
	c.mu.Unlock()

	if onClear != nil {
		onClear()
	}
	if c.refresher == nil {
		return nil
	}
	if err := c.refresher.Refresh(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("entitlement refresh after paywall failed")
		return err
	}
	return nil
}

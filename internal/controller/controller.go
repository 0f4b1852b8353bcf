// Package controller owns the generation request configuration and drives one
// generation attempt at a time through validation, the backend call,
// classification and recovery.
package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/GoPolymarket/parlay-builder/internal/availability"
	"github.com/GoPolymarket/parlay-builder/internal/backend"
	"github.com/GoPolymarket/parlay-builder/internal/classify"
	"github.com/GoPolymarket/parlay-builder/internal/entitlement"
	"github.com/GoPolymarket/parlay-builder/internal/history"
	xlog "github.com/GoPolymarket/parlay-builder/internal/log"
	"github.com/GoPolymarket/parlay-builder/internal/metrics"
	"github.com/GoPolymarket/parlay-builder/internal/parlay"
	"github.com/GoPolymarket/parlay-builder/internal/paywall"
	"github.com/GoPolymarket/parlay-builder/internal/progress"
	"github.com/GoPolymarket/parlay-builder/internal/recovery"
	"github.com/GoPolymarket/parlay-builder/internal/telemetry"
	"github.com/GoPolymarket/parlay-builder/internal/weeks"
)

// DefaultFlashDelay is how long the completed progress record stays visible.
const DefaultFlashDelay = time.Second

var (
	ErrInFlight          = errors.New("controller: a generation attempt is already in flight")
	ErrEditWhileInFlight = errors.New("controller: configuration is locked while a generation is in flight")
	ErrPaywallPending    = errors.New("controller: dismiss the paywall before generating")
	ErrPaywallRequired   = errors.New("controller: this option requires an upgrade")
	ErrTripleUnavailable = errors.New("controller: triple mode is unavailable")
	ErrNoFailure         = errors.New("controller: no failed attempt to recover from")
	ErrUnknownAction     = errors.New("controller: recovery action not offered")
	ErrNoResult          = errors.New("controller: no parlay to save")
	ErrWeekUnavailable   = errors.New("controller: week is not available")
	ErrClosed            = errors.New("controller: closed")

	// ErrNoSports is returned by Generate when no sport is selected.
	ErrNoSports = parlay.ErrNoSports
)

// Backend is the generation surface of the remote API.
type Backend interface {
	SuggestParlay(ctx context.Context, req backend.SuggestRequest) (*backend.SuggestResponse, error)
	SuggestTripleParlay(ctx context.Context, req backend.TripleRequest) (*backend.SuggestResponse, error)
	SaveParlay(ctx context.Context, req backend.SaveRequest) (backend.SavedParlay, error)
}

type Options struct {
	Backend      Backend
	Entitlements *entitlement.Resolver
	// Probe, Weeks and Telemetry are optional.
	Probe     *availability.Probe
	Weeks     *weeks.Tracker
	Telemetry *telemetry.Reporter
	// Paywall defaults to a coordinator refreshing Entitlements.
	Paywall *paywall.Coordinator
	Ledger  *history.Ledger

	Initial    parlay.RequestConfig
	Clock      progress.Clock
	TickPeriod time.Duration
	FlashDelay time.Duration
	Logger     zerolog.Logger
}

// Controller is the generation state machine.
type Controller struct {
	backend    Backend
	ent        *entitlement.Resolver
	probe      *availability.Probe
	weeks      *weeks.Tracker
	reporter   *telemetry.Reporter
	pw         *paywall.Coordinator
	ledger     *history.Ledger
	clock      progress.Clock
	period     time.Duration
	flashDelay time.Duration
	logger     zerolog.Logger

	mu      sync.Mutex
	state   State
	cfg     parlay.RequestConfig
	result  *Result
	failure *Failure
	actions []recovery.Action
	ticker  *progress.Ticker
	// done holds the completed progress record during the completion flash.
	done          *progress.Snapshot
	flash         *time.Timer
	lastAttempt   string
	pendingAction recovery.ActionID
	pendingPrev   string
	// rejection is the last pre-flight refusal, kept until the next edit or
	// attempt.
	rejection error
	weekDefaulted bool
	closed        bool
}

func New(opts Options) *Controller {
	cfg := opts.Initial
	if len(cfg.Sports) == 0 && cfg.Mode == "" {
		cfg = parlay.DefaultRequest()
	}
	clock := opts.Clock
	if clock == nil {
		clock = progress.RealClock()
	}
	flash := opts.FlashDelay
	if flash <= 0 {
		flash = DefaultFlashDelay
	}
	ledger := opts.Ledger
	if ledger == nil {
		ledger = history.NewLedger(history.DefaultCapacity)
	}
	pw := opts.Paywall
	if pw == nil {
		var refresher paywall.Refresher
		if opts.Entitlements != nil {
			refresher = opts.Entitlements
		}
		pw = paywall.New(refresher, opts.Logger)
	}
	c := &Controller{
		backend:    opts.Backend,
		ent:        opts.Entitlements,
		probe:      opts.Probe,
		weeks:      opts.Weeks,
		reporter:   opts.Telemetry,
		pw:         pw,
		ledger:     ledger,
		clock:      clock,
		period:     opts.TickPeriod,
		flashDelay: flash,
		logger:     opts.Logger,
		state:      StateIdle,
		cfg:        cfg.Clone(),
	}
	pw.OnClear(c.clearPending)
	if c.weeks != nil {
		c.weeks.OnSync(func(parlay.WeekList) { c.defaultWeek() })
		c.defaultWeek()
	}
	c.requestProbe(availability.SelectionFor(c.cfg))
	return c
}

func (c *Controller) entitlements() parlay.Entitlements {
	if c.ent == nil {
		return parlay.RestrictiveEntitlements()
	}
	return c.ent.Current()
}

func (c *Controller) setStateLocked(next State) {
	if c.state == next {
		return
	}
	c.logger.Debug().Str(xlog.FieldOldState, string(c.state)).Str(xlog.FieldNewState, string(next)).Msg("state transition")
	c.state = next
}

// Generate runs one attempt for the current configuration and blocks until it
// resolves. Rejections before the network call return an error and leave the
// controller Idle; a resolved attempt returns its outcome and a nil error.
func (c *Controller) Generate(ctx context.Context) (parlay.Outcome, error) {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return nil, ErrClosed
	case c.state == StateInFlight || c.state == StateValidating:
		c.mu.Unlock()
		return nil, ErrInFlight
	case c.pw.Active():
		c.pendingAction, c.pendingPrev = "", ""
		c.mu.Unlock()
		return nil, ErrPaywallPending
	}
	c.setStateLocked(StateValidating)
	cfg := c.cfg.Clone()
	ent := c.entitlements()

	if prompt, err := c.validate(cfg, ent); err != nil {
		c.setStateLocked(StateIdle)
		c.pendingAction, c.pendingPrev = "", ""
		c.rejection = err
		c.mu.Unlock()
		c.logger.Info().Err(err).Msg("generation rejected before sending")
		if prompt != nil {
			c.showPaywall(prompt, "")
		}
		return nil, err
	}

	c.result, c.failure, c.actions = nil, nil, nil
	c.stopFlashLocked()
	action, prev := c.pendingAction, c.pendingPrev
	c.pendingAction, c.pendingPrev = "", ""
	att := c.ledger.Begin(cfg, string(action), prev)
	tk := progress.Start(progress.Estimate(cfg), progress.Options{
		Clock:  c.clock,
		Period: c.period,
		OnTick: c.escalationLogger(att.ID),
	})
	c.ticker = tk
	c.rejection = nil
	c.setStateLocked(StateInFlight)
	c.mu.Unlock()
	notifyStarted(ctx, att.ID)

	metrics.GenerationInFlight.Set(1)
	ctx = xlog.ContextWithAttemptID(ctx, att.ID)
	logger := xlog.WithContext(ctx, c.logger)
	logger.Info().
		Str(xlog.FieldMode, string(cfg.Mode)).
		Int("legs", cfg.EffectiveLegCount()).
		Str(xlog.FieldAction, string(action)).
		Msg("generation started")

	var (
		resp *backend.SuggestResponse
		err  error
	)
	if cfg.Mode == parlay.ModeTriple {
		resp, err = c.backend.SuggestTripleParlay(ctx, backend.NewTripleRequest(cfg))
	} else {
		resp, err = c.backend.SuggestParlay(ctx, backend.NewSuggestRequest(cfg))
	}
	outcome := classify.Classify(cfg, resp, err)
	snap := tk.Complete()
	c.resolve(ctx, att, cfg, ent, outcome, snap)
	return outcome, nil
}

// validate runs the pre-flight checks. A gated feature also yields the
// paywall prompt to show.
func (c *Controller) validate(cfg parlay.RequestConfig, ent parlay.Entitlements) (*paywall.Context, error) {
	if len(cfg.Sports) == 0 {
		metrics.PreflightRejectTotal.WithLabelValues("no_sports").Inc()
		return nil, ErrNoSports
	}
	if p := paywall.Preflight(cfg, ent); p != nil {
		metrics.PreflightRejectTotal.WithLabelValues(string(p.Reason)).Inc()
		return p, fmt.Errorf("%w: %s", ErrPaywallRequired, p.Feature)
	}
	maxLegs := ent.MaxLegs
	if maxLegs <= 0 {
		maxLegs = parlay.DefaultMaxLegs
	}
	if err := cfg.Validate(maxLegs); err != nil {
		metrics.PreflightRejectTotal.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if cfg.Mode == parlay.ModeTriple && c.probe != nil {
		if g := c.probe.Gate(availability.SelectionFor(cfg)); !g.Selectable {
			metrics.PreflightRejectTotal.WithLabelValues("triple_gate").Inc()
			return nil, fmt.Errorf("%w: %s", ErrTripleUnavailable, g.Reason)
		}
	}
	return nil, nil
}

func (c *Controller) escalationLogger(attemptID string) func(progress.Snapshot) {
	var last progress.Escalation
	return func(s progress.Snapshot) {
		if s.Escalation == last {
			return
		}
		last = s.Escalation
		c.logger.Warn().
			Str(xlog.FieldAttemptID, attemptID).
			Dur("elapsed", s.Elapsed).
			Str("escalation", string(s.Escalation)).
			Msg("generation running long")
	}
}

// resolve leaves InFlight with exactly one of a result, a failure or a paywall.
func (c *Controller) resolve(ctx context.Context, att history.Attempt, cfg parlay.RequestConfig, ent parlay.Entitlements, outcome parlay.Outcome, snap progress.Snapshot) {
	rec, err := c.ledger.Finish(att.ID, outcome)
	if err != nil {
		c.logger.Error().Err(err).Str(xlog.FieldAttemptID, att.ID).Msg("recording attempt")
	}
	metrics.GenerationInFlight.Set(0)
	metrics.RecordAttempt(string(cfg.Mode), string(outcome.Kind()), rec.Duration.Seconds())
	metrics.RecordRecoveryResult(rec.RecoveryAction, string(outcome.Kind()))

	var prompt *paywall.Context
	c.mu.Lock()
	c.ticker = nil
	c.lastAttempt = att.ID
	switch o := outcome.(type) {
	case parlay.Success:
		c.result = newResult(att.ID, o)
	case parlay.PaywallRequired:
		prompt = paywall.Decide(o, cfg)
		if prompt == nil {
			c.failure = newFailure(att.ID, o, nil)
		}
	default:
		c.actions = recovery.SuggestFor(outcome, cfg, ent)
		c.failure = newFailure(att.ID, outcome, c.actions)
	}
	c.done = &snap
	if !c.closed {
		c.flash = time.AfterFunc(c.flashDelay, c.clearFlash)
	}
	c.setStateLocked(StateResolved)
	c.mu.Unlock()

	if prompt != nil {
		c.showPaywall(prompt, att.ID)
	}

	logger := xlog.WithContext(ctx, c.logger)
	ev := logger.Info()
	if outcome.Kind() != parlay.KindSuccess {
		ev = logger.Warn()
	}
	ev.Str(xlog.FieldOutcome, string(outcome.Kind())).
		Str("class", string(rec.Class)).
		Str(xlog.FieldDebugID, rec.DebugID).
		Dur("duration", rec.Duration).
		Msg("generation resolved")

	c.report(telemetry.Event{
		Type:       telemetry.EventAttemptFinished,
		AttemptID:  att.ID,
		Mode:       string(cfg.Mode),
		Outcome:    string(outcome.Kind()),
		Action:     rec.RecoveryAction,
		DebugID:    rec.DebugID,
		DurationMS: rec.Duration.Milliseconds(),
	})
}

func (c *Controller) showPaywall(p *paywall.Context, attemptID string) {
	origin := metrics.OriginResponse
	if p.Preflight {
		origin = metrics.OriginPreflight
	}
	c.pw.Show(p)
	metrics.PaywallShownTotal.WithLabelValues(string(p.Reason), origin).Inc()
	c.report(telemetry.Event{
		Type:      telemetry.EventPaywallShown,
		AttemptID: attemptID,
		Reason:    string(p.Reason),
		Attrs:     map[string]string{"origin": origin, "feature": p.Feature},
	})
}

func (c *Controller) report(ev telemetry.Event) {
	if c.reporter == nil {
		return
	}
	if c.ent != nil {
		ev.UserID = c.ent.UserID()
	}
	c.reporter.Report(ev)
}

func (c *Controller) clearFlash() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.done = nil
	c.flash = nil
}

func (c *Controller) stopFlashLocked() {
	if c.flash != nil {
		c.flash.Stop()
		c.flash = nil
	}
	c.done = nil
}

// clearPending runs when the paywall closes: the next attempt starts clean.
func (c *Controller) clearPending() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateResolved {
		return
	}
	c.result, c.failure, c.actions = nil, nil, nil
	c.setStateLocked(StateIdle)
}

// Retry re-issues the current configuration after a failure.
func (c *Controller) Retry(ctx context.Context) (parlay.Outcome, error) {
	c.mu.Lock()
	if c.state == StateInFlight || c.state == StateValidating {
		c.mu.Unlock()
		return nil, ErrInFlight
	}
	c.pendingAction, c.pendingPrev = "", c.lastAttempt
	c.mu.Unlock()
	return c.Generate(ctx)
}

// ApplyRecovery replaces the configuration with the action's output, clears
// the failure and starts the next attempt attributed to the action.
func (c *Controller) ApplyRecovery(ctx context.Context, id recovery.ActionID) (parlay.Outcome, error) {
	c.mu.Lock()
	if c.state == StateInFlight || c.state == StateValidating {
		c.mu.Unlock()
		return nil, ErrInFlight
	}
	if c.failure == nil {
		c.mu.Unlock()
		return nil, ErrNoFailure
	}
	action, ok := recovery.Find(c.actions, id)
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownAction, id)
	}
	prev := c.lastAttempt
	c.cfg = action.Apply(c.cfg)
	c.result, c.failure, c.actions = nil, nil, nil
	c.pendingAction, c.pendingPrev = id, prev
	c.setStateLocked(StateIdle)
	sel := availability.SelectionFor(c.cfg)
	c.mu.Unlock()

	metrics.RecoveryAppliedTotal.WithLabelValues(string(id)).Inc()
	c.logger.Info().Str(xlog.FieldAction, string(id)).Str("previous_attempt", prev).Msg("recovery action applied")
	c.report(telemetry.Event{Type: telemetry.EventRecoveryApplied, AttemptID: prev, Action: string(id)})
	c.requestProbe(sel)
	return c.Generate(ctx)
}

// DismissPaywall closes the prompt and refreshes entitlements.
func (c *Controller) DismissPaywall(ctx context.Context) error {
	if !c.pw.Active() {
		return nil
	}
	return c.pw.Dismiss(ctx)
}

// Save stores the current result under title.
func (c *Controller) Save(ctx context.Context, title string) (backend.SavedParlay, error) {
	c.mu.Lock()
	if c.result == nil {
		c.mu.Unlock()
		return backend.SavedParlay{}, ErrNoResult
	}
	res := c.result
	legs := append([]parlay.Leg(nil), res.Parlay.Legs...)
	c.mu.Unlock()

	if title == "" {
		title = fmt.Sprintf("%d-leg parlay", len(legs))
	}
	saved, err := c.backend.SaveParlay(ctx, backend.SaveRequest{Title: title, Legs: legs})
	if err != nil {
		return backend.SavedParlay{}, fmt.Errorf("save parlay: %w", err)
	}

	c.mu.Lock()
	if c.result == res {
		cp := saved
		c.result.Saved = &cp
	}
	c.mu.Unlock()
	c.report(telemetry.Event{
		Type:      telemetry.EventParlaySaved,
		AttemptID: res.AttemptID,
		Attrs:     map[string]string{"parlay_id": saved.ID, "parlay_type": saved.ParlayType},
	})
	return saved, nil
}

// View returns a snapshot of everything a front end renders.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		State:        c.state,
		Config:       c.cfg.Clone(),
		Entitlements: c.entitlements(),
		Paywall:      c.pw.Current(),
		TripleGate:   availability.TripleGate{Selectable: true},
	}
	if c.rejection != nil {
		v.Rejection = c.rejection.Error()
	}
	if c.probe != nil {
		if res, ok := c.probe.CurrentFor(availability.SelectionFor(c.cfg)); ok {
			v.Availability = &res
			v.DisabledSports = res.Disabled()
			v.TripleGate = res.Gate()
		}
	}
	switch {
	case c.ticker != nil:
		snap := c.ticker.Snapshot()
		v.Progress = &snap
	case c.done != nil:
		snap := *c.done
		v.Progress = &snap
	}
	if c.result != nil {
		r := *c.result
		v.Result = &r
	}
	if c.failure != nil {
		f := *c.failure
		f.Actions = append([]ActionView(nil), c.failure.Actions...)
		v.Failure = &f
	}
	if c.weeks != nil {
		v.Weeks = c.weeks.Weeks()
	}
	if c.lastAttempt != "" {
		if a, ok := c.ledger.Get(c.lastAttempt); ok {
			v.LastAttempt = &a
		}
	}
	v.Blocked = c.blockedLocked(v)
	v.CanGenerate = v.Blocked == ""
	return v
}

func (c *Controller) blockedLocked(v View) string {
	switch {
	case c.closed:
		return "closed"
	case c.state == StateInFlight || c.state == StateValidating:
		return "in_flight"
	case v.Paywall != nil:
		return "paywall"
	case len(v.Config.Sports) == 0:
		return "no_sports"
	case v.Config.Mode == parlay.ModeTriple && !v.TripleGate.Selectable:
		return "triple_unavailable"
	}
	return ""
}

// Ledger exposes the attempt history.
func (c *Controller) Ledger() *history.Ledger { return c.ledger }

// Close stops every owned timer. An attempt still in flight resolves normally
// but its completion flash is not scheduled.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	tk := c.ticker
	c.stopFlashLocked()
	c.mu.Unlock()

	if tk != nil {
		tk.Stop()
	}
	if c.probe != nil {
		c.probe.Close()
	}
}

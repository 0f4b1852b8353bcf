package render

import (
	"fmt"
	"strings"

	"github.com/GoPolymarket/parlay-builder/internal/controller"
	"github.com/GoPolymarket/parlay-builder/internal/parlay"
	"github.com/GoPolymarket/parlay-builder/internal/paywall"
	"github.com/GoPolymarket/parlay-builder/internal/progress"
)

// Text renders the whole view the way the terminal front end prints it.
// Sections are emitted in a fixed order: header, blockers, any pre-flight
// rejection, progress, then whichever of paywall, failure, or result is present.
func Text(v controller.View) string {
	var b strings.Builder
	b.WriteString(Header(v))
	if hints := BlockerHints(v); len(hints) > 0 {
		b.WriteString("\nBlocked\n")
		for _, h := range hints {
			b.WriteString("- " + h + "\n")
		}
	}
	if v.Rejection != "" {
		b.WriteString("\nNot sent: " + v.Rejection + "\n")
	}
	if v.Progress != nil && !v.Progress.Done {
		b.WriteString("\n" + Progress(*v.Progress) + "\n")
	}
	switch {
	case v.Paywall != nil:
		b.WriteString("\n" + Paywall(*v.Paywall) + "\n")
	case v.Failure != nil:
		b.WriteString("\n" + Failure(*v.Failure) + "\n")
	case v.Result != nil:
		b.WriteString("\n" + Result(*v.Result) + "\n")
	}
	return strings.TrimSpace(b.String())
}

// Header summarises the configuration and plan.
func Header(v controller.View) string {
	cfg := v.Config
	var b strings.Builder
	b.WriteString("Parlay Builder\n")
	b.WriteString(fmt.Sprintf("State: %s\n", strings.ToUpper(string(v.State))))
	b.WriteString("Sports: " + sportList(cfg.Sports) + "\n")
	if cfg.Mode == parlay.ModeTriple {
		b.WriteString(fmt.Sprintf("Mode: TRIPLE (%s)\n", cfg.TripleVariant))
	} else {
		b.WriteString(fmt.Sprintf("Mode: SINGLE, %d legs\n", cfg.LegCount))
	}
	b.WriteString(fmt.Sprintf("Risk: %s\n", strings.ToUpper(string(cfg.Risk))))
	if cfg.Week != nil {
		b.WriteString(fmt.Sprintf("Week: %d\n", *cfg.Week))
	}
	if cfg.IncludePlayerProps {
		b.WriteString("Player props: on\n")
	}
	if cfg.MixSports {
		b.WriteString("Mix sports: on\n")
	}
	plan := "free"
	if v.Entitlements.MixSportsAllowed && v.Entitlements.PlayerPropsAllowed {
		plan = "premium"
	}
	if !v.Entitlements.IsAuthenticated {
		plan = "guest"
	}
	b.WriteString(fmt.Sprintf("Plan: %s, up to %d legs", plan, v.Entitlements.MaxLegs))
	return b.String()
}

func sportList(sports []parlay.Sport) string {
	if len(sports) == 0 {
		return "(none)"
	}
	names := make([]string, len(sports))
	for i, s := range sports {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// Progress renders a progress snapshot on one or two lines.
func Progress(s progress.Snapshot) string {
	line := fmt.Sprintf("[%s] %d%% %s (%.0fs)", bar(s.Percent, 20), s.Percent, s.Message, s.Elapsed.Seconds())
	if s.EscalationCopy != "" {
		line += "\n" + s.EscalationCopy
	}
	return line
}

func bar(pct, width int) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	n := pct * width / 100
	return strings.Repeat("#", n) + strings.Repeat(".", width-n)
}

// Result renders a successful parlay with its legs and combined odds.
func Result(r controller.Result) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Parlay (%d legs)\n", len(r.Parlay.Legs)))
	if r.DowngradeNotice != "" {
		b.WriteString("Note: " + r.DowngradeNotice + "\n")
	}
	if r.FallbackNotice != "" {
		b.WriteString("Note: " + r.FallbackNotice + "\n")
	}
	for i, leg := range r.Parlay.Legs {
		b.WriteString(fmt.Sprintf("%d. %s\n", i+1, Leg(leg)))
	}
	m := r.Parlay.Metrics
	b.WriteString(fmt.Sprintf("Odds: %s (%.2f)\n", american(m.AmericanOdds), m.DecimalOdds))
	b.WriteString(fmt.Sprintf("Hit probability: %.1f%%\n", m.Probability*100))
	b.WriteString(fmt.Sprintf("Expected value: %+.2f\n", m.ExpectedValue))
	if m.OverallConfidence > 0 {
		b.WriteString(fmt.Sprintf("Confidence: %.0f\n", m.OverallConfidence))
	}
	if r.Saved != nil {
		b.WriteString(fmt.Sprintf("Saved: %s (%s)\n", r.Saved.ID, r.Saved.ParlayType))
	}
	return strings.TrimSpace(b.String())
}

// Leg renders a single leg.
func Leg(l parlay.Leg) string {
	pick := l.Pick
	if l.Player != "" {
		pick = l.Player + " " + pick
	}
	if l.Line != 0 {
		pick = fmt.Sprintf("%s %g", pick, l.Line)
	}
	out := fmt.Sprintf("[%s] %s: %s %s", l.Sport, l.Game, pick, american(l.Odds))
	if l.Tier != "" {
		out += " (" + l.Tier + ")"
	}
	return out
}

func american(odds int) string {
	if odds > 0 {
		return fmt.Sprintf("+%d", odds)
	}
	return fmt.Sprintf("%d", odds)
}

// Failure renders an error panel with its numbered recovery actions.
func Failure(f controller.Failure) string {
	var b strings.Builder
	b.WriteString("Generation failed")
	if f.Class != parlay.ClassNone {
		b.WriteString(" (" + string(f.Class) + ")")
	}
	b.WriteString("\n" + f.Message + "\n")
	if f.Hint != "" {
		b.WriteString("Hint: " + f.Hint + "\n")
	}
	if f.DebugID != "" {
		b.WriteString("Debug ID: " + f.DebugID + "\n")
	}
	if len(f.Actions) > 0 {
		b.WriteString("\nTry\n")
		for i, a := range f.Actions {
			b.WriteString(fmt.Sprintf("%d. %s [%s]\n", i+1, a.Label, a.ID))
		}
	}
	if f.Retryable {
		b.WriteString("Retry is available.\n")
	}
	return strings.TrimSpace(b.String())
}

// Paywall renders an upgrade prompt.
func Paywall(p paywall.Context) string {
	var b strings.Builder
	b.WriteString(paywallTitle(p.Reason) + "\n")
	if p.Message != "" {
		b.WriteString(p.Message + "\n")
	}
	if p.Feature != "" {
		b.WriteString("Feature: " + p.Feature + "\n")
	}
	if p.RemainingToday != nil {
		b.WriteString(fmt.Sprintf("Remaining today: %d\n", *p.RemainingToday))
	}
	if price := priceFor(p); price != "" {
		b.WriteString(fmt.Sprintf("Unlock this %s parlay for $%s\n", p.ParlayType, price))
	}
	if p.UpgradeURL != "" {
		b.WriteString("Upgrade: " + p.UpgradeURL + "\n")
	}
	return strings.TrimSpace(b.String())
}

func priceFor(p paywall.Context) string {
	if p.Pricing == nil {
		return ""
	}
	d := p.Pricing.Single
	if p.ParlayType == paywall.ParlayTypeMulti {
		d = p.Pricing.Multi
	}
	if d == nil {
		return ""
	}
	return d.StringFixed(2)
}

func paywallTitle(r parlay.PaywallReason) string {
	switch r {
	case parlay.ReasonFreeLimit:
		return "Daily free limit reached"
	case parlay.ReasonLoginRequired:
		return "Sign in to continue"
	case parlay.ReasonPayPerUse:
		return "Pay per parlay"
	case parlay.ReasonFeaturePremiumOnly:
		return "Premium feature"
	default:
		return "Premium required"
	}
}

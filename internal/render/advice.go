package render

import (
	"fmt"
	"strings"

	"github.com/GoPolymarket/parlay-builder/internal/controller"
	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

// BlockerHints explains why Generate is currently unavailable, plus any
// selected sport the availability probe reports as empty.
func BlockerHints(v controller.View) []string {
	hints := make([]string, 0, 3)
	switch v.Blocked {
	case "":
	case "in_flight":
		// progress covers it
	case "paywall":
		hints = append(hints, "Dismiss the upgrade prompt to continue.")
	case "no_sports":
		hints = append(hints, "Pick at least one sport.")
	case "triple_unavailable":
		reason := strings.TrimSpace(v.TripleGate.Reason)
		if reason == "" {
			reason = "not enough strong-edge picks"
		}
		hints = append(hints, "Triple mode is unavailable: "+reason+".")
	default:
		hints = append(hints, "Generation is unavailable ("+v.Blocked+").")
	}
	if len(v.DisabledSports) > 0 {
		names := make([]string, len(v.DisabledSports))
		for i, s := range v.DisabledSports {
			names[i] = string(s)
		}
		hints = append(hints, "No eligible games right now: "+strings.Join(names, ","))
	}
	return hints
}

// Tips suggests configuration tweaks for an idle view. At most three are
// returned.
func Tips(v controller.View) []string {
	tips := make([]string, 0, 4)
	cfg := v.Config
	if cfg.Mode == parlay.ModeSingle && cfg.LegCount > 6 {
		tips = append(tips, fmt.Sprintf("%d legs is a long shot; 3 to 5 legs fill more reliably.", cfg.LegCount))
	}
	if cfg.Week != nil && !v.Weeks.Available(*cfg.Week) && len(v.Weeks.Weeks) > 0 {
		tips = append(tips, fmt.Sprintf("Week %d has no open games; try all upcoming.", *cfg.Week))
	}
	if !cfg.IncludePlayerProps && v.Entitlements.PlayerPropsAllowed {
		tips = append(tips, "Enable player props for a deeper candidate pool.")
	}
	if len(cfg.Sports) > 1 && !cfg.MixSports {
		tips = append(tips, "Turn on mix sports to combine legs across your sports.")
	}
	if len(tips) > 3 {
		tips = tips[:3]
	}
	return tips
}

package render

import (
	"strings"
	"testing"

	"github.com/GoPolymarket/parlay-builder/internal/availability"
	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

func TestBlockerHintsTripleGate(t *testing.T) {
	v := baseView()
	v.Config.Mode = parlay.ModeTriple
	v.Blocked = "triple_unavailable"
	v.TripleGate = availability.TripleGate{Known: true, Reason: "only 1 strong-edge pick"}
	v.DisabledSports = []parlay.Sport{parlay.SportNBA}

	hints := BlockerHints(v)
	if len(hints) != 2 {
		t.Fatalf("expected two hints, got %v", hints)
	}
	if !strings.Contains(hints[0], "only 1 strong-edge pick") {
		t.Fatalf("expected gate reason, got %v", hints)
	}
	if !strings.Contains(hints[1], "NBA") {
		t.Fatalf("expected disabled sport, got %v", hints)
	}
}

func TestBlockerHintsEmptyWhenReady(t *testing.T) {
	if hints := BlockerHints(baseView()); len(hints) != 0 {
		t.Fatalf("expected no hints, got %v", hints)
	}
}

func TestTipsLimited(t *testing.T) {
	v := baseView()
	v.Config.LegCount = 9
	v.Config.Sports = []parlay.Sport{parlay.SportNFL, parlay.SportNBA}
	week := 2
	v.Config.Week = &week
	v.Weeks = parlay.WeekList{Weeks: []parlay.Week{{Week: 2}}}
	v.Entitlements.PlayerPropsAllowed = true

	tips := Tips(v)
	if len(tips) != 3 {
		t.Fatalf("expected tips limited to 3, got %v", tips)
	}
	if !strings.Contains(tips[0], "9 legs") {
		t.Fatalf("expected leg count tip first, got %v", tips)
	}
}

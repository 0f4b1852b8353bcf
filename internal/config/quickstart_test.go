package config

import (
	"testing"

	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

func TestApplyQuickStartSafe(t *testing.T) {
	cfg := Default()
	cfg.Request.IncludePlayerProps = true

	if err := ApplyQuickStart(&cfg, "safe"); err != nil {
		t.Fatalf("ApplyQuickStart: %v", err)
	}
	if cfg.Request.Risk != parlay.RiskConservative {
		t.Fatalf("expected conservative risk, got %q", cfg.Request.Risk)
	}
	if cfg.Request.LegCount != 3 {
		t.Fatalf("expected 3 legs, got %d", cfg.Request.LegCount)
	}
	if cfg.Request.IncludePlayerProps {
		t.Fatal("expected props off for safe preset")
	}
	if cfg.QuickStart != "safe" {
		t.Fatalf("expected quick_start recorded, got %q", cfg.QuickStart)
	}
}

func TestApplyQuickStartConfidenceIsTriple(t *testing.T) {
	cfg := Default()
	if err := ApplyQuickStart(&cfg, "Confidence"); err != nil {
		t.Fatalf("ApplyQuickStart: %v", err)
	}
	if cfg.Request.Mode != parlay.ModeTriple || cfg.Request.TripleVariant != parlay.TripleConfidence {
		t.Fatalf("expected triple/confidence, got %s/%s", cfg.Request.Mode, cfg.Request.TripleVariant)
	}
}

func TestApplyQuickStartClampsToPaperPlan(t *testing.T) {
	cfg := Default()
	cfg.Paper.MaxLegs = 4

	if err := ApplyQuickStart(&cfg, "degen"); err != nil {
		t.Fatalf("ApplyQuickStart: %v", err)
	}
	if cfg.Request.LegCount != 4 {
		t.Fatalf("expected leg count clamped to 4, got %d", cfg.Request.LegCount)
	}

	cfg = Default()
	cfg.Backend.Kind = "http"
	cfg.Paper.MaxLegs = 4
	if err := ApplyQuickStart(&cfg, "degen"); err != nil {
		t.Fatalf("ApplyQuickStart: %v", err)
	}
	if cfg.Request.LegCount != 5 {
		t.Fatalf("expected no clamp for http backend, got %d", cfg.Request.LegCount)
	}
}

func TestApplyQuickStartMultiSport(t *testing.T) {
	cfg := Default()
	if err := ApplyQuickStart(&cfg, "multi-sport"); err != nil {
		t.Fatalf("ApplyQuickStart: %v", err)
	}
	if len(cfg.Request.Sports) != 2 || !cfg.Request.MixSports {
		t.Fatalf("expected two mixed sports, got %v mix=%v", cfg.Request.Sports, cfg.Request.MixSports)
	}
}

func TestApplyQuickStartEmptyIsNoop(t *testing.T) {
	cfg := Default()
	before := cfg.Request.Clone()
	if err := ApplyQuickStart(&cfg, "  "); err != nil {
		t.Fatalf("ApplyQuickStart: %v", err)
	}
	if cfg.Request.LegCount != before.LegCount || cfg.Request.Risk != before.Risk {
		t.Fatalf("expected request unchanged, got %+v", cfg.Request)
	}
}

func TestApplyQuickStartUnknown(t *testing.T) {
	cfg := Default()
	if err := ApplyQuickStart(&cfg, "yolo"); err == nil {
		t.Fatal("expected unknown preset to fail")
	}
}

package paywall

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

type fakeRefresher struct {
	calls int
	err   error
}

func (f *fakeRefresher) Refresh(context.Context) error {
	f.calls++
	return f.err
}

func TestDecideMapsCodes(t *testing.T) {
	price := decimal.RequireFromString("2.99")
	want := map[parlay.PaywallCode]parlay.PaywallReason{
		parlay.CodeFreeLimitReached:  parlay.ReasonFreeLimit,
		parlay.CodePremiumRequired:   parlay.ReasonPremiumRequired,
		parlay.CodePayPerUseRequired: parlay.ReasonPayPerUse,
		parlay.CodeLoginRequired:     parlay.ReasonLoginRequired,
	}
	for code, reason := range want {
		p := Decide(parlay.PaywallRequired{Code: code, Pricing: &parlay.Pricing{Single: &price}}, parlay.DefaultRequest())
		if p == nil {
			t.Fatalf("no context for %s", code)
		}
		if p.Reason != reason {
			t.Fatalf("%s: reason %s, want %s", code, p.Reason, reason)
		}
		if p.ParlayType != ParlayTypeSingle {
			t.Fatalf("parlay type %s", p.ParlayType)
		}
		if p.Pricing == nil || !p.Pricing.Single.Equal(price) {
			t.Fatalf("pricing not carried: %+v", p.Pricing)
		}
	}
}

func TestDecideMultiAndNonPaywall(t *testing.T) {
	cfg := parlay.DefaultRequest()
	cfg.Sports = []parlay.Sport{parlay.SportNFL, parlay.SportNBA}
	cfg.MixSports = true
	p := Decide(parlay.PaywallRequired{Code: parlay.CodePremiumRequired}, cfg)
	if p == nil || p.ParlayType != ParlayTypeMulti {
		t.Fatalf("expected multi parlay type, got %+v", p)
	}
	if Decide(parlay.Timeout{}, cfg) != nil {
		t.Fatal("timeout produced a paywall")
	}
	if Decide(parlay.PaywallRequired{Code: "NOPE"}, cfg) != nil {
		t.Fatal("unknown code produced a paywall")
	}
}

func TestPreflight(t *testing.T) {
	signedIn := parlay.Entitlements{IsAuthenticated: true, MaxLegs: 5}
	mix := parlay.DefaultRequest()
	mix.Sports = []parlay.Sport{parlay.SportNFL, parlay.SportNBA}
	props := parlay.DefaultRequest()
	props.IncludePlayerProps = true

	tests := []struct {
		name    string
		cfg     parlay.RequestConfig
		ent     parlay.Entitlements
		reason  parlay.PaywallReason
		feature string
	}{
		{"second sport", mix, signedIn, parlay.ReasonFeaturePremiumOnly, FeatureMixSports},
		{"props", props, signedIn, parlay.ReasonFeaturePremiumOnly, FeaturePlayerProps},
		{"anonymous", mix, parlay.RestrictiveEntitlements(), parlay.ReasonLoginRequired, FeatureMixSports},
		{"allowed", mix, parlay.Entitlements{IsAuthenticated: true, MixSportsAllowed: true}, "", ""},
		{"plain", parlay.DefaultRequest(), parlay.RestrictiveEntitlements(), "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Preflight(tt.cfg, tt.ent)
			if tt.reason == "" {
				if p != nil {
					t.Fatalf("unexpected paywall %+v", p)
				}
				return
			}
			if p == nil {
				t.Fatal("expected paywall")
			}
			if p.Reason != tt.reason || p.Feature != tt.feature || !p.Preflight {
				t.Fatalf("got %+v", p)
			}
		})
	}
}

func TestDismissRefreshesAndClears(t *testing.T) {
	ref := &fakeRefresher{}
	c := New(ref, zerolog.Nop())
	cleared := 0
	c.OnClear(func() { cleared++ })

	c.Show(&Context{Reason: parlay.ReasonFreeLimit})
	if !c.Active() {
		t.Fatal("expected active prompt")
	}
	if err := c.Dismiss(context.Background()); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if c.Current() != nil {
		t.Fatal("prompt not cleared")
	}
	if ref.calls != 1 || cleared != 1 {
		t.Fatalf("refresh calls=%d cleared=%d", ref.calls, cleared)
	}

	// refresh runs even with nothing showing
	ref.err = errors.New("offline")
	if err := c.Dismiss(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if ref.calls != 2 {
		t.Fatalf("refresh calls=%d", ref.calls)
	}
}

func TestCurrentIsACopy(t *testing.T) {
	c := New(nil, zerolog.Nop())
	c.Show(&Context{Reason: parlay.ReasonPayPerUse})
	got := c.Current()
	got.Reason = parlay.ReasonFreeLimit
	if c.Current().Reason != parlay.ReasonPayPerUse {
		t.Fatal("caller mutated the active prompt")
	}
	c.Show(nil)
	if c.Current() == nil {
		t.Fatal("nil Show cleared the prompt")
	}
}

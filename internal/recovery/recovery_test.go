package recovery

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

func reasons(codes ...parlay.ExclusionReasonCode) []parlay.ExclusionReason {
	out := make([]parlay.ExclusionReason, 0, len(codes))
	for _, c := range codes {
		out = append(out, parlay.ExclusionReason{Reason: c})
	}
	return out
}

func TestSuggestOrdering(t *testing.T) {
	week := 7
	entitled := parlay.Entitlements{IsAuthenticated: true, MaxLegs: 10, MixSportsAllowed: true, PlayerPropsAllowed: true}

	tests := []struct {
		name    string
		cfg     parlay.RequestConfig
		ent     parlay.Entitlements
		reasons []parlay.ExclusionReason
		want    []ActionID
	}{
		{
			name:    "outside week promotes all_upcoming",
			cfg:     parlay.RequestConfig{Mode: parlay.ModeSingle, LegCount: 5, Sports: []parlay.Sport{parlay.SportNFL}, Week: &week},
			ent:     entitled,
			reasons: reasons(parlay.ReasonOutsideWeek),
			want:    []ActionID{ActionAllUpcoming, ActionLowerLegs},
		},
		{
			name:    "declaration order without a matching reason",
			cfg:     parlay.RequestConfig{Mode: parlay.ModeSingle, LegCount: 6, Sports: []parlay.Sport{parlay.SportNFL, parlay.SportNBA}, MixSports: true, Week: &week, IncludePlayerProps: true},
			ent:     entitled,
			reasons: reasons(parlay.ReasonGameStarted),
			want:    []ActionID{ActionMLOnly, ActionAllUpcoming, ActionLowerLegs, ActionSingleSport},
		},
		{
			name:    "sport mix conflict promotes single_sport",
			cfg:     parlay.RequestConfig{Mode: parlay.ModeSingle, LegCount: 6, Sports: []parlay.Sport{parlay.SportNFL, parlay.SportNBA}, MixSports: true, IncludePlayerProps: true},
			ent:     entitled,
			reasons: reasons(parlay.ReasonSportMixConflict, parlay.ReasonNoOdds),
			want:    []ActionID{ActionSingleSport, ActionMLOnly, ActionLowerLegs},
		},
		{
			name:    "no odds makes ml_only applicable",
			cfg:     parlay.RequestConfig{Mode: parlay.ModeSingle, LegCount: 3, Sports: []parlay.Sport{parlay.SportNBA}},
			ent:     entitled,
			reasons: reasons(parlay.ReasonNoOdds),
			want:    []ActionID{ActionMLOnly},
		},
		{
			name:    "props disabled for entitled user",
			cfg:     parlay.RequestConfig{Mode: parlay.ModeSingle, LegCount: 4, Sports: []parlay.Sport{parlay.SportNBA}},
			ent:     entitled,
			reasons: reasons(parlay.ReasonPlayerPropsDisabled),
			want:    []ActionID{ActionEnableProps, ActionLowerLegs},
		},
		{
			name:    "props disabled for unentitled user",
			cfg:     parlay.RequestConfig{Mode: parlay.ModeSingle, LegCount: 4, Sports: []parlay.Sport{parlay.SportNBA}},
			ent:     parlay.RestrictiveEntitlements(),
			reasons: reasons(parlay.ReasonPlayerPropsDisabled),
			want:    []ActionID{ActionLowerLegs},
		},
		{
			name:    "not enough games promotes lower_legs",
			cfg:     parlay.RequestConfig{Mode: parlay.ModeSingle, LegCount: 5, Sports: []parlay.Sport{parlay.SportNFL}, IncludePlayerProps: true},
			ent:     entitled,
			reasons: reasons(parlay.ReasonNotEnoughGames),
			want:    []ActionID{ActionLowerLegs, ActionMLOnly},
		},
		{
			name:    "week filter on a sport without weeks",
			cfg:     parlay.RequestConfig{Mode: parlay.ModeSingle, LegCount: 3, Sports: []parlay.Sport{parlay.SportNBA}, Week: &week},
			ent:     entitled,
			reasons: reasons(parlay.ReasonOutsideWeek),
			want:    []ActionID{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IDs(Suggest(parlay.InsufficientCandidates{TopExclusionReasons: tt.reasons}, tt.cfg, tt.ent))
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("actions mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSuggestNeverReturnsInapplicableOrDuplicates(t *testing.T) {
	week := 3
	allReasons := []parlay.ExclusionReasonCode{
		"", parlay.ReasonOutsideWeek, parlay.ReasonNoOdds, parlay.ReasonPlayerPropsDisabled,
		parlay.ReasonGameStarted, parlay.ReasonLowConfidence, parlay.ReasonNotEnoughGames, parlay.ReasonSportMixConflict,
	}
	sportSets := [][]parlay.Sport{{parlay.SportNFL}, {parlay.SportNBA}, {parlay.SportNFL, parlay.SportNBA}}
	ents := []parlay.Entitlements{parlay.RestrictiveEntitlements(), {IsAuthenticated: true, MaxLegs: 10, MixSportsAllowed: true, PlayerPropsAllowed: true}}

	for _, reason := range allReasons {
		for _, sports := range sportSets {
			for _, props := range []bool{false, true} {
				for _, wk := range []*int{nil, &week} {
					for _, legs := range []int{2, 3, 6} {
						for _, ent := range ents {
							cfg := parlay.RequestConfig{Mode: parlay.ModeSingle, LegCount: legs, Sports: sports, Week: wk, IncludePlayerProps: props}
							actions := Suggest(parlay.InsufficientCandidates{TopExclusionReasons: reasons(reason)}, cfg, ent)
							seen := map[ActionID]bool{}
							for _, a := range actions {
								if seen[a.ID] {
									t.Fatalf("duplicate %s for %+v", a.ID, cfg)
								}
								seen[a.ID] = true
								if a.ID == ActionSingleSport && len(sports) < 2 {
									t.Fatalf("single_sport offered for one sport")
								}
								if a.ID == ActionEnableProps && (!ent.PlayerPropsAllowed || props) {
									t.Fatalf("enable_props offered without entitlement or with props on")
								}
								if a.ID == ActionLowerLegs && legs <= FallbackLegCount {
									t.Fatalf("lower_legs offered at %d legs", legs)
								}
								if a.ID == ActionAllUpcoming && !cfg.HasWeekFilter() {
									t.Fatalf("all_upcoming offered without a week filter")
								}
							}
						}
					}
				}
			}
		}
	}
}

func TestApplyReturnsNewConfig(t *testing.T) {
	week := 9
	cfg := parlay.RequestConfig{
		Mode:               parlay.ModeSingle,
		LegCount:           6,
		Risk:               parlay.RiskDegen,
		Sports:             []parlay.Sport{parlay.SportNFL, parlay.SportNBA},
		MixSports:          true,
		Week:               &week,
		IncludePlayerProps: true,
	}
	before := cfg.Clone()
	actions := Suggest(parlay.InsufficientCandidates{}, cfg, parlay.Entitlements{PlayerPropsAllowed: true})

	for _, a := range actions {
		next := a.Apply(cfg)
		switch a.ID {
		case ActionMLOnly:
			if next.IncludePlayerProps {
				t.Fatal("ml_only kept props")
			}
		case ActionAllUpcoming:
			if next.Week != nil {
				t.Fatal("all_upcoming kept the week")
			}
		case ActionLowerLegs:
			if next.LegCount != FallbackLegCount {
				t.Fatalf("lower_legs produced %d legs", next.LegCount)
			}
		case ActionSingleSport:
			if diff := cmp.Diff([]parlay.Sport{parlay.SportNFL}, next.Sports); diff != "" || next.MixSports {
				t.Fatalf("single_sport produced %+v", next)
			}
			if a.Label != "NFL only" {
				t.Fatalf("label = %q", a.Label)
			}
		}
	}
	if diff := cmp.Diff(before, cfg); diff != "" {
		t.Fatalf("input mutated (-before +after):\n%s", diff)
	}
}

func TestSuggestForOtherOutcomes(t *testing.T) {
	cfg := parlay.RequestConfig{Mode: parlay.ModeSingle, LegCount: 5, Sports: []parlay.Sport{parlay.SportNFL}}
	ent := parlay.RestrictiveEntitlements()

	if got := IDs(SuggestFor(parlay.ValidationError{Code: "no_picks"}, cfg, ent)); !cmp.Equal(got, []ActionID{ActionLowerLegs}) {
		t.Fatalf("validation error actions = %v", got)
	}
	for _, o := range []parlay.Outcome{parlay.Timeout{}, parlay.UnknownError{}, parlay.PaywallRequired{}, parlay.Success{}} {
		if got := SuggestFor(o, cfg, ent); len(got) != 0 {
			t.Fatalf("%s produced actions %v", o.Kind(), IDs(got))
		}
	}
}

func TestFind(t *testing.T) {
	actions := Suggest(parlay.InsufficientCandidates{}, parlay.RequestConfig{Mode: parlay.ModeSingle, LegCount: 5, Sports: []parlay.Sport{parlay.SportNFL}}, parlay.Entitlements{})
	if _, ok := Find(actions, ActionLowerLegs); !ok {
		t.Fatal("lower_legs not found")
	}
	if _, ok := Find(actions, ActionSingleSport); ok {
		t.Fatal("single_sport should not be present")
	}
}

// Package recovery proposes request mutations that make the next attempt more
// likely to succeed after a supply failure.
package recovery

import (
	"fmt"

	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

type ActionID string

const (
	ActionMLOnly      ActionID = "ml_only"
	ActionAllUpcoming ActionID = "all_upcoming"
	ActionEnableProps ActionID = "enable_props"
	ActionLowerLegs   ActionID = "lower_legs"
	ActionSingleSport ActionID = "single_sport"
)

// FallbackLegCount is the leg count lower_legs drops to.
const FallbackLegCount = 3

// Action is a labelled request mutation. Actions are built fresh for every
// failure and never shared between outcomes.
type Action struct {
	ID    ActionID `json:"id"`
	Label string   `json:"label"`
	apply func(parlay.RequestConfig) parlay.RequestConfig
}

// Apply returns the mutated copy of cfg; cfg itself is untouched.
func (a Action) Apply(cfg parlay.RequestConfig) parlay.RequestConfig {
	out := cfg.Clone()
	if a.apply == nil {
		return out
	}
	return a.apply(out)
}

type candidate struct {
	id         ActionID
	applicable func(in input) bool
	label      func(cfg parlay.RequestConfig) string
	apply      func(parlay.RequestConfig) parlay.RequestConfig
}

type input struct {
	cfg     parlay.RequestConfig
	ent     parlay.Entitlements
	primary parlay.ExclusionReasonCode
}

// Declaration order is the tie-break order.
var candidates = []candidate{
	{
		id: ActionMLOnly,
		applicable: func(in input) bool {
			return in.cfg.IncludePlayerProps || in.primary == parlay.ReasonNoOdds
		},
		label: func(parlay.RequestConfig) string { return "Moneyline and spreads only" },
		apply: func(cfg parlay.RequestConfig) parlay.RequestConfig {
			cfg.IncludePlayerProps = false
			return cfg
		},
	},
	{
		id:         ActionAllUpcoming,
		applicable: func(in input) bool { return in.cfg.HasWeekFilter() },
		label:      func(parlay.RequestConfig) string { return "Use all upcoming games" },
		apply: func(cfg parlay.RequestConfig) parlay.RequestConfig {
			cfg.Week = nil
			return cfg
		},
	},
	{
		id: ActionEnableProps,
		applicable: func(in input) bool {
			return in.ent.PlayerPropsAllowed && !in.cfg.IncludePlayerProps && in.primary == parlay.ReasonPlayerPropsDisabled
		},
		label: func(parlay.RequestConfig) string { return "Include player props" },
		apply: func(cfg parlay.RequestConfig) parlay.RequestConfig {
			cfg.IncludePlayerProps = true
			return cfg
		},
	},
	{
		id: ActionLowerLegs,
		applicable: func(in input) bool {
			return in.cfg.Mode != parlay.ModeTriple && in.cfg.LegCount > FallbackLegCount
		},
		label: func(cfg parlay.RequestConfig) string {
			return fmt.Sprintf("Lower to %d legs", FallbackLegCount)
		},
		apply: func(cfg parlay.RequestConfig) parlay.RequestConfig {
			cfg.LegCount = FallbackLegCount
			return cfg
		},
	},
	{
		id:         ActionSingleSport,
		applicable: func(in input) bool { return len(in.cfg.Sports) > 1 },
		label: func(cfg parlay.RequestConfig) string {
			return fmt.Sprintf("%s only", cfg.PrimarySport())
		},
		apply: func(cfg parlay.RequestConfig) parlay.RequestConfig {
			if len(cfg.Sports) > 1 {
				cfg.Sports = cfg.Sports[:1]
			}
			cfg.MixSports = false
			return cfg
		},
	},
}

var promoted = map[parlay.ExclusionReasonCode]ActionID{
	parlay.ReasonOutsideWeek:         ActionAllUpcoming,
	parlay.ReasonNoOdds:              ActionMLOnly,
	parlay.ReasonPlayerPropsDisabled: ActionEnableProps,
	parlay.ReasonNotEnoughGames:      ActionLowerLegs,
	parlay.ReasonSportMixConflict:    ActionSingleSport,
}

// Suggest returns the applicable actions for an insufficient-candidates
// failure. The action answering the primary exclusion reason comes first; the
// rest keep declaration order.
func Suggest(outcome parlay.InsufficientCandidates, cfg parlay.RequestConfig, ent parlay.Entitlements) []Action {
	return suggest(input{cfg: cfg, ent: ent, primary: parlay.PrimaryReason(outcome.TopExclusionReasons)})
}

// SuggestFor extends Suggest to every outcome. Empty or malformed results get
// the same actions without a primary reason; other outcomes get none.
func SuggestFor(outcome parlay.Outcome, cfg parlay.RequestConfig, ent parlay.Entitlements) []Action {
	switch v := outcome.(type) {
	case parlay.InsufficientCandidates:
		return Suggest(v, cfg, ent)
	case parlay.ValidationError:
		return suggest(input{cfg: cfg, ent: ent})
	}
	return nil
}

func suggest(in input) []Action {
	lead := promoted[in.primary]
	out := make([]Action, 0, len(candidates))
	seen := make(map[ActionID]struct{}, len(candidates))
	add := func(c candidate) {
		if _, dup := seen[c.id]; dup {
			return
		}
		seen[c.id] = struct{}{}
		out = append(out, Action{ID: c.id, Label: c.label(in.cfg), apply: c.apply})
	}
	for _, c := range candidates {
		if c.id == lead && c.applicable(in) {
			add(c)
		}
	}
	for _, c := range candidates {
		if c.applicable(in) {
			add(c)
		}
	}
	return out
}

// Find returns the action with the given id.
func Find(actions []Action, id ActionID) (Action, bool) {
	for _, a := range actions {
		if a.ID == id {
			return a, true
		}
	}
	return Action{}, false
}

// IDs lists the action ids in order.
func IDs(actions []Action) []ActionID {
	out := make([]ActionID, 0, len(actions))
	for _, a := range actions {
		out = append(out, a.ID)
	}
	return out
}

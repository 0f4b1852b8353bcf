package backend

import (
	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

// SuggestRequest is the suggestParlay body.
type SuggestRequest struct {
	NumLegs            int      `json:"num_legs"`
	RiskProfile        string   `json:"risk_profile"`
	Sports             []string `json:"sports"`
	MixSports          bool     `json:"mix_sports"`
	Week               *int     `json:"week,omitempty"`
	IncludePlayerProps bool     `json:"include_player_props"`
}

// TripleRequest is the suggestTripleParlay body. The server fixes leg count and
// risk itself.
type TripleRequest struct {
	Sports  []string `json:"sports"`
	Variant string   `json:"variant,omitempty"`
}

// NewSuggestRequest builds the Single mode body from a configuration.
func NewSuggestRequest(cfg parlay.RequestConfig) SuggestRequest {
	req := SuggestRequest{
		NumLegs:            cfg.LegCount,
		RiskProfile:        string(cfg.Risk),
		Sports:             sportStrings(cfg.Sports),
		MixSports:          cfg.MixSports,
		IncludePlayerProps: cfg.IncludePlayerProps,
	}
	if cfg.Week != nil {
		w := *cfg.Week
		req.Week = &w
	}
	return req
}

// NewTripleRequest builds the Triple mode body from a configuration.
func NewTripleRequest(cfg parlay.RequestConfig) TripleRequest {
	variant := cfg.TripleVariant
	if variant == "" {
		variant = parlay.TripleFlight
	}
	return TripleRequest{Sports: sportStrings(cfg.Sports), Variant: string(variant)}
}

func sportStrings(sports []parlay.Sport) []string {
	out := make([]string, 0, len(sports))
	for _, s := range sports {
		out = append(out, string(s))
	}
	return out
}

// LegPayload is one leg as the server sends it.
type LegPayload struct {
	GameID       string  `json:"game_id"`
	Game         string  `json:"game"`
	Sport        string  `json:"sport"`
	MarketType   string  `json:"market_type"`
	Outcome      string  `json:"outcome"`
	Pick         string  `json:"pick"`
	Player       string  `json:"player,omitempty"`
	Point        float64 `json:"point,omitempty"`
	Odds         int     `json:"odds"`
	AdjustedProb float64 `json:"adjusted_prob"`
	Edge         float64 `json:"edge"`
	Confidence   float64 `json:"confidence"`
	Tier         string  `json:"tier,omitempty"`
}

// DowngradeSummaryPayload explains why fewer legs than requested came back.
type DowngradeSummaryPayload struct {
	Requested  int    `json:"requested"`
	Delivered  int    `json:"delivered"`
	HaveStrong int    `json:"have_strong"`
	Reason     string `json:"reason,omitempty"`
}

// SuggestResponse is the success body shared by both generation endpoints.
type SuggestResponse struct {
	Legs              []LegPayload             `json:"legs"`
	NumLegs           *int                     `json:"num_legs,omitempty"`
	ParlayOdds        int                      `json:"parlay_odds"`
	ParlayDecimalOdds float64                  `json:"parlay_decimal_odds"`
	ParlayProbability float64                  `json:"parlay_hit_prob"`
	ParlayEV          float64                  `json:"parlay_ev"`
	OverallConfidence float64                  `json:"overall_confidence"`
	Downgraded        bool                     `json:"downgraded"`
	DowngradeSummary  *DowngradeSummaryPayload `json:"downgrade_summary,omitempty"`
	FallbackUsed      bool                     `json:"fallback_used"`
	FallbackStage     string                   `json:"fallback_stage,omitempty"`
}

// ParlayLegs converts the wire legs to domain legs.
func (r *SuggestResponse) ParlayLegs() []parlay.Leg {
	legs := make([]parlay.Leg, 0, len(r.Legs))
	for _, l := range r.Legs {
		pick := l.Pick
		if pick == "" {
			pick = l.Outcome
		}
		legs = append(legs, parlay.Leg{
			GameID:      l.GameID,
			Game:        l.Game,
			Sport:       parlay.Sport(l.Sport),
			MarketType:  l.MarketType,
			Pick:        pick,
			Player:      l.Player,
			Line:        l.Point,
			Odds:        l.Odds,
			Probability: l.AdjustedProb,
			Edge:        l.Edge,
			Confidence:  l.Confidence,
			Tier:        l.Tier,
		})
	}
	return legs
}

// ParlayMetrics extracts the summary metrics.
func (r *SuggestResponse) ParlayMetrics() parlay.Metrics {
	return parlay.Metrics{
		AmericanOdds:      r.ParlayOdds,
		DecimalOdds:       r.ParlayDecimalOdds,
		Probability:       r.ParlayProbability,
		ExpectedValue:     r.ParlayEV,
		OverallConfidence: r.OverallConfidence,
	}
}

// SaveRequest is the saveParlay body.
type SaveRequest struct {
	Title string       `json:"title"`
	Legs  []parlay.Leg `json:"legs"`
}

// SavedParlay is the saveParlay response.
type SavedParlay struct {
	ID         string `json:"id"`
	ParlayType string `json:"parlay_type"`
}

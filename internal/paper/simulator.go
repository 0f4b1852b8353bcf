// Package paper is an in-process stand-in for the remote parlay API. It serves
// the same routes and error bodies from deterministic fixtures so the client
// can run offline and be exercised end to end in tests.
package paper

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/GoPolymarket/parlay-builder/internal/backend"
	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

type Config struct {
	// Candidates is the eligible leg count per sport for the current week.
	Candidates map[string]int `yaml:"candidates"`
	// StrongEdges is the strong-edge count per sport.
	StrongEdges map[string]int `yaml:"strong_edges"`
	// FreeLimit is the number of generations allowed per user; 0 is unlimited.
	FreeLimit int `yaml:"free_limit"`
	// Unavailable sports answer generation with 503.
	Unavailable []string      `yaml:"unavailable"`
	Latency     time.Duration `yaml:"latency"`
	CurrentWeek int           `yaml:"current_week"`
	SinglePrice string        `yaml:"single_price"`
	MultiPrice  string        `yaml:"multi_price"`

	// Entitlements served for signed-in users.
	MaxLegs            int  `yaml:"max_legs"`
	MixSportsAllowed   bool `yaml:"mix_sports_allowed"`
	PlayerPropsAllowed bool `yaml:"player_props_allowed"`
}

const (
	defaultCandidates  = 12
	defaultStrongEdges = 4
	seasonWeeks        = 18
)

// DefaultConfig is a generous simulator: every sport has supply and the
// signed-in user has every feature.
func DefaultConfig() Config {
	return Config{
		CurrentWeek:        7,
		SinglePrice:        "2.99",
		MultiPrice:         "4.99",
		MaxLegs:            10,
		MixSportsAllowed:   true,
		PlayerPropsAllowed: true,
	}
}

// StatusError is a simulated non-2xx answer.
type StatusError struct {
	Status int
	Body   any
}

func (e *StatusError) Error() string { return fmt.Sprintf("paper: status %d", e.Status) }

// Simulator holds the simulated server state.
type Simulator struct {
	mu          sync.Mutex
	cfg         Config
	generations map[string]int
	saved       map[string]backend.SaveRequest
	calls       map[string]int
	sequence    int64
}

func NewSimulator(cfg Config) *Simulator {
	if cfg.CurrentWeek <= 0 {
		cfg.CurrentWeek = 1
	}
	return &Simulator{
		cfg:         cfg,
		generations: make(map[string]int),
		saved:       make(map[string]backend.SaveRequest),
		calls:       make(map[string]int),
	}
}

// Calls returns how many times each operation was served.
func (s *Simulator) Calls() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.calls))
	for k, v := range s.calls {
		out[k] = v
	}
	return out
}

// Update changes the configuration in place, e.g. to simulate an upgrade.
func (s *Simulator) Update(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.cfg)
}

func (s *Simulator) count(op string) {
	s.mu.Lock()
	s.calls[op]++
	s.mu.Unlock()
}

func (s *Simulator) Latency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Latency
}

func (s *Simulator) Entitlements(userID string) parlay.Entitlements {
	s.count("entitlements")
	s.mu.Lock()
	defer s.mu.Unlock()
	if userID == "" {
		return parlay.RestrictiveEntitlements()
	}
	return parlay.Entitlements{
		IsAuthenticated:    true,
		MaxLegs:            s.cfg.MaxLegs,
		MixSportsAllowed:   s.cfg.MixSportsAllowed,
		PlayerPropsAllowed: s.cfg.PlayerPropsAllowed,
	}.Normalize()
}

func (s *Simulator) Weeks() parlay.WeekList {
	s.count("nfl_weeks")
	s.mu.Lock()
	cur := s.cfg.CurrentWeek
	s.mu.Unlock()
	list := parlay.WeekList{CurrentWeek: &cur}
	for w := 1; w <= seasonWeeks; w++ {
		list.Weeks = append(list.Weeks, parlay.Week{
			Week:        w,
			Label:       fmt.Sprintf("Week %d", w),
			IsCurrent:   w == cur,
			IsAvailable: w >= cur,
		})
	}
	return list
}

// supply is the eligible pool for one sport under a filter, with the ranked
// reasons the rest was excluded for.
type supply struct {
	eligible int
	strong   int
	games    int
	reasons  []parlay.ExclusionReason
}

func (s *Simulator) supplyLocked(sport string, week *int, props bool) supply {
	base, ok := s.cfg.Candidates[sport]
	if !ok {
		base = defaultCandidates
	}
	strong, ok := s.cfg.StrongEdges[sport]
	if !ok {
		strong = defaultStrongEdges
	}
	excluded := map[parlay.ExclusionReasonCode]int{
		parlay.ReasonGameStarted: base / 6,
		parlay.ReasonNoOdds:      base / 8,
	}
	eligible := base
	sp := parlay.Sport(sport)
	if week != nil && sp.SupportsWeeks() && *week != s.cfg.CurrentWeek {
		excluded[parlay.ReasonOutsideWeek] = eligible - eligible/4
		eligible /= 4
		strong /= 4
	}
	if props && s.cfg.PlayerPropsAllowed {
		eligible += eligible / 2
	} else {
		excluded[parlay.ReasonPlayerPropsDisabled] = eligible / 3
	}
	if strong > eligible {
		strong = eligible
	}
	return supply{eligible: eligible, strong: strong, games: (eligible + 1) / 2, reasons: rank(excluded)}
}

func rank(excluded map[parlay.ExclusionReasonCode]int) []parlay.ExclusionReason {
	out := make([]parlay.ExclusionReason, 0, len(excluded))
	for reason, n := range excluded {
		if n > 0 {
			out = append(out, parlay.ExclusionReason{Reason: reason, Count: parlay.IntPtr(n)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if *out[i].Count != *out[j].Count {
			return *out[i].Count > *out[j].Count
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

func (s *Simulator) CandidateCount(q parlay.CandidateQuery) parlay.CandidateAvailability {
	s.count("candidate_legs_count")
	s.mu.Lock()
	defer s.mu.Unlock()
	sup := s.supplyLocked(string(q.Sport), q.Week, q.IncludePlayerProps)
	out := parlay.CandidateAvailability{
		Sport:               q.Sport,
		Week:                q.Week,
		Count:               parlay.IntPtr(sup.eligible),
		UniqueGames:         parlay.IntPtr(sup.games),
		TopExclusionReasons: sup.reasons,
	}
	if q.Mode == parlay.ModeTriple {
		out.StrongEdgeCount = parlay.IntPtr(sup.strong)
	}
	return out
}

func (s *Simulator) paywallLocked(code parlay.PaywallCode, feature string) *StatusError {
	body := map[string]any{
		"error_code":      code,
		"message":         paywallMessage(code),
		"remaining_today": 0,
		"feature":         feature,
		"upgrade_url":     "/pricing",
	}
	if p, err := decimal.NewFromString(s.cfg.SinglePrice); err == nil {
		body["single_price"] = p
	}
	if p, err := decimal.NewFromString(s.cfg.MultiPrice); err == nil {
		body["multi_price"] = p
	}
	return &StatusError{Status: 402, Body: map[string]any{"detail": body}}
}

func paywallMessage(code parlay.PaywallCode) string {
	switch code {
	case parlay.CodeFreeLimitReached:
		return "You have used all free parlays for today."
	case parlay.CodeLoginRequired:
		return "Sign in to generate parlays."
	}
	return "This option requires Premium."
}

// admitLocked applies the paywall rules shared by both generation routes.
func (s *Simulator) admitLocked(userID string, sports []string, mix bool) *StatusError {
	if userID == "" && s.cfg.FreeLimit > 0 {
		return s.paywallLocked(parlay.CodeLoginRequired, "")
	}
	if (mix || len(sports) > 1) && !s.cfg.MixSportsAllowed {
		return s.paywallLocked(parlay.CodePremiumRequired, "mix_sports")
	}
	if s.cfg.FreeLimit > 0 && s.generations[userID] >= s.cfg.FreeLimit {
		return s.paywallLocked(parlay.CodeFreeLimitReached, "")
	}
	for _, sp := range sports {
		for _, u := range s.cfg.Unavailable {
			if strings.EqualFold(sp, u) {
				return &StatusError{Status: 503, Body: map[string]any{"detail": "No eligible games right now."}}
			}
		}
	}
	return nil
}

// Suggest serves a Single mode generation.
func (s *Simulator) Suggest(userID string, req backend.SuggestRequest) (*backend.SuggestResponse, error) {
	s.count("suggest_parlay")
	s.mu.Lock()
	defer s.mu.Unlock()

	if req.NumLegs < 1 || req.NumLegs > parlay.MaxLegsCeiling {
		return nil, &StatusError{Status: 422, Body: map[string]any{"detail": []map[string]any{{
			"loc": []any{"body", "num_legs"}, "msg": fmt.Sprintf("ensure this value is between 1 and %d", parlay.MaxLegsCeiling), "type": "value_error",
		}}}}
	}
	if len(req.Sports) == 0 {
		return nil, &StatusError{Status: 400, Body: map[string]any{"detail": map[string]any{"code": "no_sports", "message": "Select at least one sport."}}}
	}
	if err := s.admitLocked(userID, req.Sports, req.MixSports); err != nil {
		return nil, err
	}
	if req.IncludePlayerProps && !s.cfg.PlayerPropsAllowed {
		return nil, s.paywallLocked(parlay.CodePremiumRequired, "player_props")
	}

	total := 0
	var reasons []parlay.ExclusionReason
	for _, sp := range req.Sports {
		sup := s.supplyLocked(sp, req.Week, req.IncludePlayerProps)
		total += sup.eligible
		reasons = mergeReasons(reasons, sup.reasons)
	}
	if len(req.Sports) > 1 && !req.MixSports {
		total = total / 2
		reasons = append([]parlay.ExclusionReason{{Reason: parlay.ReasonSportMixConflict, Count: parlay.IntPtr(total)}}, reasons...)
	}
	if total < req.NumLegs {
		s.sequence++
		return nil, &StatusError{Status: 409, Body: map[string]any{"detail": map[string]any{
			"needed":                req.NumLegs,
			"have":                  total,
			"top_exclusion_reasons": reasons,
			"debug_id":              fmt.Sprintf("paper-%06d", s.sequence),
			"message":               fmt.Sprintf("Only %d eligible legs match these settings.", total),
			"hint":                  "Try fewer legs or widen the filters.",
		}}}
	}

	s.generations[userID]++
	legs := fixtureLegs(req.Sports, req.NumLegs, req.IncludePlayerProps, riskShift(req.RiskProfile))
	return buildResponse(legs), nil
}

// SuggestTriple serves a Triple mode generation.
func (s *Simulator) SuggestTriple(userID string, req backend.TripleRequest) (*backend.SuggestResponse, error) {
	s.count("suggest_triple_parlay")
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(req.Sports) == 0 {
		return nil, &StatusError{Status: 400, Body: map[string]any{"detail": map[string]any{"code": "no_sports", "message": "Select at least one sport."}}}
	}
	if err := s.admitLocked(userID, req.Sports, false); err != nil {
		return nil, err
	}
	strong := 0
	for _, sp := range req.Sports {
		strong += s.supplyLocked(sp, nil, false).strong
	}
	if strong == 0 {
		s.sequence++
		return nil, &StatusError{Status: 409, Body: map[string]any{"detail": map[string]any{
			"needed":                parlay.TripleLegCount,
			"have":                  0,
			"top_exclusion_reasons": []parlay.ExclusionReason{{Reason: parlay.ReasonLowConfidence}},
			"debug_id":              fmt.Sprintf("paper-%06d", s.sequence),
			"message":               "No strong-edge picks are available right now.",
		}}}
	}

	s.generations[userID]++
	n := parlay.TripleLegCount
	if strong < n {
		n = strong
	}
	resp := buildResponse(fixtureLegs(req.Sports, n, false, 0.04))
	if n < parlay.TripleLegCount {
		resp.Downgraded = true
		resp.DowngradeSummary = &backend.DowngradeSummaryPayload{
			Requested:  parlay.TripleLegCount,
			Delivered:  n,
			HaveStrong: strong,
			Reason:     "not enough strong edges",
		}
	}
	return resp, nil
}

// Save stores a parlay for a signed-in user.
func (s *Simulator) Save(userID string, req backend.SaveRequest) (backend.SavedParlay, error) {
	s.count("save_parlay")
	if userID == "" {
		return backend.SavedParlay{}, &StatusError{Status: 401, Body: map[string]any{"detail": map[string]any{"code": "login_required", "message": "Sign in to save parlays."}}}
	}
	if len(req.Legs) == 0 {
		return backend.SavedParlay{}, &StatusError{Status: 422, Body: map[string]any{"detail": "legs must not be empty"}}
	}
	sports := map[parlay.Sport]struct{}{}
	for _, l := range req.Legs {
		sports[l.Sport] = struct{}{}
	}
	typ := "single"
	if len(sports) > 1 {
		typ = "multi"
	}
	id := uuid.NewString()
	s.mu.Lock()
	s.saved[id] = req
	s.mu.Unlock()
	return backend.SavedParlay{ID: id, ParlayType: typ}, nil
}

func mergeReasons(a, b []parlay.ExclusionReason) []parlay.ExclusionReason {
	totals := map[parlay.ExclusionReasonCode]int{}
	for _, list := range [][]parlay.ExclusionReason{a, b} {
		for _, r := range list {
			n := 0
			if r.Count != nil {
				n = *r.Count
			}
			totals[r.Reason] += n
		}
	}
	return rank(totals)
}

func riskShift(profile string) float64 {
	switch parlay.RiskProfile(profile) {
	case parlay.RiskConservative:
		return 0.08
	case parlay.RiskDegen:
		return -0.06
	}
	return 0
}

var markets = []string{"moneyline", "spread", "total"}

func fixtureLegs(sports []string, n int, props bool, shift float64) []backend.LegPayload {
	legs := make([]backend.LegPayload, 0, n)
	for i := 0; i < n; i++ {
		sport := sports[i%len(sports)]
		home, away := 'A'+rune(2*i), 'B'+rune(2*i)
		odds := []int{-110, 120, -135, 145, -105}[i%5]
		prob := math.Min(0.9, impliedProb(odds)+0.04+shift/2)
		leg := backend.LegPayload{
			GameID:       fmt.Sprintf("%s-%02d", strings.ToLower(sport), i+1),
			Game:         fmt.Sprintf("%s Team %c @ %s Team %c", sport, away, sport, home),
			Sport:        sport,
			MarketType:   markets[i%len(markets)],
			Odds:         odds,
			AdjustedProb: round(prob, 4),
			Edge:         round(prob-impliedProb(odds), 4),
			Confidence:   round(50+100*(prob-0.45), 1),
		}
		leg.Pick = fmt.Sprintf("%s Team %c %s", sport, home, leg.MarketType)
		if props && i%3 == 2 {
			leg.MarketType = "player_points"
			leg.Player = fmt.Sprintf("Player %d", i+1)
			leg.Point = 18.5 + float64(i)
			leg.Pick = fmt.Sprintf("%s over %.1f", leg.Player, leg.Point)
		}
		legs = append(legs, leg)
	}
	return legs
}

func buildResponse(legs []backend.LegPayload) *backend.SuggestResponse {
	dec, prob := 1.0, 1.0
	conf := 0.0
	for _, l := range legs {
		dec *= decimalOdds(l.Odds)
		prob *= l.AdjustedProb
		conf += l.Confidence
	}
	n := len(legs)
	return &backend.SuggestResponse{
		Legs:              legs,
		NumLegs:           &n,
		ParlayOdds:        americanOdds(dec),
		ParlayDecimalOdds: round(dec, 3),
		ParlayProbability: round(prob, 4),
		ParlayEV:          round(prob*dec-1, 4),
		OverallConfidence: round(conf/float64(max(n, 1)), 1),
	}
}

func impliedProb(american int) float64 {
	if american < 0 {
		a := float64(-american)
		return a / (a + 100)
	}
	return 100 / (float64(american) + 100)
}

func decimalOdds(american int) float64 {
	if american < 0 {
		return 1 + 100/float64(-american)
	}
	return 1 + float64(american)/100
}

func americanOdds(dec float64) int {
	if dec >= 2 {
		return int(math.Round((dec - 1) * 100))
	}
	return int(math.Round(-100 / (dec - 1)))
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

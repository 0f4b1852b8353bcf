package parlay

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects which generation endpoint serves a request.
type Mode string

const (
	ModeSingle Mode = "single"
	ModeTriple Mode = "triple"
)

// TripleVariant distinguishes the two flavours of Triple mode. Both force 3 legs.
type TripleVariant string

const (
	TripleFlight     TripleVariant = "flight"
	TripleConfidence TripleVariant = "confidence"
)

type RiskProfile string

const (
	RiskConservative RiskProfile = "conservative"
	RiskBalanced     RiskProfile = "balanced"
	RiskDegen        RiskProfile = "degen"
)

// Sport is an upstream sport code such as "NFL".
type Sport string

const (
	SportNFL   Sport = "NFL"
	SportNCAAF Sport = "NCAAF"
	SportNBA   Sport = "NBA"
	SportNCAAB Sport = "NCAAB"
	SportNHL   Sport = "NHL"
	SportMLB   Sport = "MLB"
	SportEPL   Sport = "EPL"
	SportMLS   Sport = "MLS"
	SportUFC   Sport = "UFC"
)

// TripleLegCount is the fixed leg count of Triple mode.
const TripleLegCount = 3

// SupportsWeeks reports whether the sport's schedule is organised in numbered weeks.
func (s Sport) SupportsWeeks() bool {
	return s == SportNFL || s == SportNCAAF
}

// ParseSport normalises a user supplied sport code.
func ParseSport(raw string) (Sport, error) {
	s := Sport(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case SportNFL, SportNCAAF, SportNBA, SportNCAAB, SportNHL, SportMLB, SportEPL, SportMLS, SportUFC:
		return s, nil
	}
	return "", fmt.Errorf("unknown sport %q", raw)
}

func ParseRiskProfile(raw string) (RiskProfile, error) {
	r := RiskProfile(strings.ToLower(strings.TrimSpace(raw)))
	switch r {
	case RiskConservative, RiskBalanced, RiskDegen:
		return r, nil
	case "safe":
		return RiskConservative, nil
	}
	return "", fmt.Errorf("unknown risk profile %q (supported: conservative|balanced|degen)", raw)
}

func ParseMode(raw string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(raw)))
	switch m {
	case ModeSingle, ModeTriple:
		return m, nil
	case "":
		return ModeSingle, nil
	}
	return "", fmt.Errorf("unknown mode %q (supported: single|triple)", raw)
}

var (
	ErrNoSports         = errors.New("at least one sport must be selected")
	ErrMixNeedsSports   = errors.New("mixing sports requires more than one sport")
	ErrLegCountRange    = errors.New("leg count out of range")
	ErrDuplicateSport   = errors.New("duplicate sport in selection")
	ErrUnknownRisk      = errors.New("unknown risk profile")
	ErrUnknownMode      = errors.New("unknown mode")
	ErrMixNotEntitled   = errors.New("mixing sports is not included in the current plan")
	ErrPropsNotEntitled = errors.New("player props are not included in the current plan")
	ErrLegCountEntitled = errors.New("leg count exceeds the current plan")
)

// RequestConfig is the user's generation configuration. Values are treated as
// immutable: every edit goes through Clone so an in-flight request keeps the
// configuration it captured.
type RequestConfig struct {
	Mode               Mode          `json:"mode" yaml:"mode"`
	TripleVariant      TripleVariant `json:"triple_variant,omitempty" yaml:"triple_variant"`
	LegCount           int           `json:"leg_count" yaml:"leg_count"`
	Risk               RiskProfile   `json:"risk_profile" yaml:"risk_profile"`
	Sports             []Sport       `json:"sports" yaml:"sports"`
	MixSports          bool          `json:"mix_sports" yaml:"mix_sports"`
	Week               *int          `json:"week,omitempty" yaml:"week"`
	IncludePlayerProps bool          `json:"include_player_props" yaml:"include_player_props"`
}

// DefaultRequest is the configuration a fresh session starts with.
func DefaultRequest() RequestConfig {
	return RequestConfig{
		Mode:     ModeSingle,
		LegCount: 3,
		Risk:     RiskBalanced,
		Sports:   []Sport{SportNFL},
	}
}

// Clone returns a deep copy.
func (c RequestConfig) Clone() RequestConfig {
	out := c
	if c.Sports != nil {
		out.Sports = append([]Sport(nil), c.Sports...)
	}
	if c.Week != nil {
		w := *c.Week
		out.Week = &w
	}
	return out
}

// MultiSport reports whether the request spans more than one sport.
func (c RequestConfig) MultiSport() bool {
	return c.MixSports || len(c.Sports) > 1
}

// EffectiveLegCount is the number of legs the server is asked for.
func (c RequestConfig) EffectiveLegCount() int {
	if c.Mode == ModeTriple {
		return TripleLegCount
	}
	return c.LegCount
}

// PrimarySport is the first selected sport, or "" when none is selected.
func (c RequestConfig) PrimarySport() Sport {
	if len(c.Sports) == 0 {
		return ""
	}
	return c.Sports[0]
}

// HasWeekFilter reports whether a week filter is active for a sport that supports it.
func (c RequestConfig) HasWeekFilter() bool {
	if c.Week == nil {
		return false
	}
	for _, s := range c.Sports {
		if s.SupportsWeeks() {
			return true
		}
	}
	return false
}

// WithWeek returns a copy with the week filter set (nil clears it).
func (c RequestConfig) WithWeek(week *int) RequestConfig {
	out := c.Clone()
	if week == nil {
		out.Week = nil
		return out
	}
	w := *week
	out.Week = &w
	return out
}

// Validate checks the structural invariants. Entitlement checks live in
// ValidateFor because they depend on the caller's plan.
func (c RequestConfig) Validate(maxLegs int) error {
	if len(c.Sports) == 0 {
		return ErrNoSports
	}
	seen := make(map[Sport]struct{}, len(c.Sports))
	for _, s := range c.Sports {
		if _, dup := seen[s]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateSport, s)
		}
		seen[s] = struct{}{}
	}
	if c.MixSports && len(c.Sports) < 2 {
		return ErrMixNeedsSports
	}
	switch c.Mode {
	case ModeSingle, ModeTriple:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, c.Mode)
	}
	switch c.Risk {
	case RiskConservative, RiskBalanced, RiskDegen:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownRisk, c.Risk)
	}
	if c.Mode == ModeSingle {
		if maxLegs <= 0 {
			maxLegs = MaxLegsCeiling
		}
		if c.LegCount < 1 || c.LegCount > maxLegs {
			return fmt.Errorf("%w: %d not in [1,%d]", ErrLegCountRange, c.LegCount, maxLegs)
		}
	}
	return nil
}

// ValidateFor checks the configuration against an entitlement snapshot.
func (c RequestConfig) ValidateFor(ent Entitlements) error {
	if c.MultiSport() && !ent.MixSportsAllowed {
		return ErrMixNotEntitled
	}
	if c.IncludePlayerProps && !ent.PlayerPropsAllowed {
		return ErrPropsNotEntitled
	}
	if c.Mode == ModeSingle && c.LegCount > ent.MaxLegs {
		return fmt.Errorf("%w: %d > %d", ErrLegCountEntitled, c.LegCount, ent.MaxLegs)
	}
	return nil
}

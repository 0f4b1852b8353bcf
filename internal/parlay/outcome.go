package parlay

import "github.com/shopspring/decimal"

// Leg is one selectable outcome inside a single game.
type Leg struct {
	GameID      string  `json:"game_id"`
	Game        string  `json:"game"`
	Sport       Sport   `json:"sport"`
	MarketType  string  `json:"market_type"`
	Pick        string  `json:"pick"`
	Player      string  `json:"player,omitempty"`
	Line        float64 `json:"line,omitempty"`
	Odds        int     `json:"odds"`
	Probability float64 `json:"probability"`
	Edge        float64 `json:"edge"`
	Confidence  float64 `json:"confidence"`
	Tier        string  `json:"tier,omitempty"`
}

// Metrics summarises a generated parlay.
type Metrics struct {
	AmericanOdds      int     `json:"american_odds"`
	DecimalOdds       float64 `json:"decimal_odds"`
	Probability       float64 `json:"probability"`
	ExpectedValue     float64 `json:"expected_value"`
	OverallConfidence float64 `json:"overall_confidence"`
}

// DowngradeSummary explains a Triple downgrade.
type DowngradeSummary struct {
	Requested  int    `json:"requested"`
	Delivered  int    `json:"delivered"`
	HaveStrong int    `json:"have_strong"`
	Reason     string `json:"reason,omitempty"`
}

// Pricing is the per-use price attached to a paywall payload.
type Pricing struct {
	Single *decimal.Decimal `json:"single,omitempty"`
	Multi  *decimal.Decimal `json:"multi,omitempty"`
}

// OutcomeKind tags the variants of Outcome.
type OutcomeKind string

const (
	KindSuccess                OutcomeKind = "success"
	KindInsufficientCandidates OutcomeKind = "insufficient_candidates"
	KindPaywallRequired        OutcomeKind = "paywall_required"
	KindValidationError        OutcomeKind = "validation_error"
	KindTimeout                OutcomeKind = "timeout"
	KindUnknownError           OutcomeKind = "unknown_error"
)

// FailureClass is the user-facing error taxonomy.
type FailureClass string

const (
	ClassNone               FailureClass = ""
	ClassTimeout            FailureClass = "timeout"
	ClassEntitlementDenied  FailureClass = "entitlement_denied"
	ClassInsufficientSupply FailureClass = "insufficient_supply"
	ClassMalformedResult    FailureClass = "malformed_result"
	ClassUnknown            FailureClass = "unknown"
)

// Outcome is the closed result of one generation attempt. The unexported
// method keeps the set of variants inside this package.
type Outcome interface {
	Kind() OutcomeKind
	outcome()
}

type Success struct {
	Legs             []Leg             `json:"legs"`
	Metrics          Metrics           `json:"metrics"`
	Downgraded       bool              `json:"downgraded"`
	DowngradeSummary *DowngradeSummary `json:"downgrade_summary,omitempty"`
	FallbackUsed     bool              `json:"fallback_used"`
	FallbackStage    string            `json:"fallback_stage,omitempty"`
}

type InsufficientCandidates struct {
	Needed              int               `json:"needed"`
	Have                int               `json:"have"`
	TopExclusionReasons []ExclusionReason `json:"top_exclusion_reasons"`
	DebugID             string            `json:"debug_id,omitempty"`
	Message             string            `json:"message,omitempty"`
	Hint                string            `json:"hint,omitempty"`
}

type PaywallRequired struct {
	Code           PaywallCode `json:"code"`
	Message        string      `json:"message,omitempty"`
	Pricing        *Pricing    `json:"pricing,omitempty"`
	RemainingToday *int        `json:"remaining_today,omitempty"`
	Feature        string      `json:"feature,omitempty"`
	UpgradeURL     string      `json:"upgrade_url,omitempty"`
}

type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

type Timeout struct {
	Message string `json:"message"`
}

type UnknownError struct {
	Message string `json:"message"`
}

func (Success) Kind() OutcomeKind                { return KindSuccess }
func (InsufficientCandidates) Kind() OutcomeKind { return KindInsufficientCandidates }
func (PaywallRequired) Kind() OutcomeKind        { return KindPaywallRequired }
func (ValidationError) Kind() OutcomeKind        { return KindValidationError }
func (Timeout) Kind() OutcomeKind                { return KindTimeout }
func (UnknownError) Kind() OutcomeKind           { return KindUnknownError }

func (Success) outcome()                {}
func (InsufficientCandidates) outcome() {}
func (PaywallRequired) outcome()        {}
func (ValidationError) outcome()        {}
func (Timeout) outcome()                {}
func (UnknownError) outcome()           {}

// ClassOf maps an outcome onto the failure taxonomy.
func ClassOf(o Outcome) FailureClass {
	switch o.(type) {
	case Timeout:
		return ClassTimeout
	case PaywallRequired:
		return ClassEntitlementDenied
	case InsufficientCandidates:
		return ClassInsufficientSupply
	case ValidationError:
		return ClassMalformedResult
	case UnknownError:
		return ClassUnknown
	}
	return ClassNone
}

// RetryableAsIs reports whether the same request may simply be sent again.
// InsufficientSupply needs a recovery action first; EntitlementDenied halts
// until the paywall flow resolves.
func RetryableAsIs(o Outcome) bool {
	switch ClassOf(o) {
	case ClassTimeout, ClassMalformedResult, ClassUnknown:
		return true
	}
	return false
}

// Message returns the user-facing text of a failure outcome.
func Message(o Outcome) string {
	switch v := o.(type) {
	case Timeout:
		if v.Message != "" {
			return v.Message
		}
		return TimeoutMessage
	case PaywallRequired:
		return v.Message
	case InsufficientCandidates:
		return v.Message
	case ValidationError:
		return v.Message
	case UnknownError:
		return v.Message
	}
	return ""
}

// TimeoutMessage explains a timeout in terms of server load.
const TimeoutMessage = "The parlay service is under heavy load and did not answer in time. Try again; your settings are unchanged."

package controller

import (
	"fmt"

	"github.com/GoPolymarket/parlay-builder/internal/availability"
	"github.com/GoPolymarket/parlay-builder/internal/backend"
	"github.com/GoPolymarket/parlay-builder/internal/history"
	"github.com/GoPolymarket/parlay-builder/internal/parlay"
	"github.com/GoPolymarket/parlay-builder/internal/paywall"
	"github.com/GoPolymarket/parlay-builder/internal/progress"
	"github.com/GoPolymarket/parlay-builder/internal/recovery"
)

// State is the generation state machine position.
type State string

const (
	StateIdle       State = "idle"
	StateValidating State = "validating"
	StateInFlight   State = "in_flight"
	StateResolved   State = "resolved"
)

// Result is a renderable successful attempt.
type Result struct {
	AttemptID       string               `json:"attempt_id"`
	Parlay          parlay.Success       `json:"parlay"`
	DowngradeNotice string               `json:"downgrade_notice,omitempty"`
	FallbackNotice  string               `json:"fallback_notice,omitempty"`
	Saved           *backend.SavedParlay `json:"saved,omitempty"`
}

func newResult(attemptID string, s parlay.Success) *Result {
	r := &Result{AttemptID: attemptID, Parlay: s}
	if s.Downgraded {
		delivered, have := len(s.Legs), len(s.Legs)
		if s.DowngradeSummary != nil {
			delivered, have = s.DowngradeSummary.Delivered, s.DowngradeSummary.HaveStrong
		}
		r.DowngradeNotice = fmt.Sprintf("Only %d strong-edge picks were available, so this parlay has %d legs instead of %d.",
			have, delivered, parlay.TripleLegCount)
	}
	if s.FallbackUsed {
		r.FallbackNotice = "Selection criteria were relaxed to fill this parlay."
	}
	return r
}

// ActionView is one recovery button.
type ActionView struct {
	ID    recovery.ActionID `json:"id"`
	Label string            `json:"label"`
}

// Failure is a renderable failed attempt.
type Failure struct {
	AttemptID string              `json:"attempt_id"`
	Kind      parlay.OutcomeKind  `json:"kind"`
	Class     parlay.FailureClass `json:"class"`
	Message   string              `json:"message"`
	Hint      string              `json:"hint,omitempty"`
	DebugID   string              `json:"debug_id,omitempty"`
	Retryable bool                `json:"retryable"`
	Actions   []ActionView        `json:"actions"`
	Outcome   parlay.Outcome      `json:"-"`
}

func newFailure(attemptID string, o parlay.Outcome, actions []recovery.Action) *Failure {
	f := &Failure{
		AttemptID: attemptID,
		Kind:      o.Kind(),
		Class:     parlay.ClassOf(o),
		Message:   parlay.Message(o),
		Retryable: parlay.RetryableAsIs(o),
		Actions:   make([]ActionView, 0, len(actions)),
		Outcome:   o,
	}
	switch v := o.(type) {
	case parlay.InsufficientCandidates:
		f.DebugID, f.Hint = v.DebugID, v.Hint
	case parlay.ValidationError:
		f.Hint = v.Hint
	}
	for _, a := range actions {
		f.Actions = append(f.Actions, ActionView{ID: a.ID, Label: a.Label})
	}
	return f
}

// View is the read model a front end renders. Every field is a copy.
type View struct {
	State          State                   `json:"state"`
	Config         parlay.RequestConfig    `json:"config"`
	Entitlements   parlay.Entitlements     `json:"entitlements"`
	Availability   *availability.Result    `json:"availability,omitempty"`
	DisabledSports []parlay.Sport          `json:"disabled_sports,omitempty"`
	TripleGate     availability.TripleGate `json:"triple_gate"`
	Progress       *progress.Snapshot      `json:"progress,omitempty"`
	Result         *Result                 `json:"result,omitempty"`
	Failure        *Failure                `json:"failure,omitempty"`
	Paywall        *paywall.Context        `json:"paywall,omitempty"`
	Weeks          parlay.WeekList         `json:"weeks"`
	LastAttempt    *history.Attempt        `json:"last_attempt,omitempty"`
	CanGenerate    bool                    `json:"can_generate"`
	Blocked        string                  `json:"blocked,omitempty"`
	// Rejection is why the last Generate was refused before any network call.
	Rejection      string                  `json:"rejection,omitempty"`
}

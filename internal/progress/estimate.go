// Package progress estimates generation time and turns elapsed time into a
// progress record for display.
package progress

import (
	"time"

	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

const (
	// MaxPercent is the cap before the attempt completes.
	MaxPercent = 95
	// TripleEstimate is the fixed Triple mode baseline.
	TripleEstimate = 90 * time.Second

	CompleteMessage = "Complete!"

	EscalationSlowAfter = 120 * time.Second
	EscalationLateAfter = 150 * time.Second
)

var phrases = [...]string{
	"Scanning the slate...",
	"Pulling the latest odds...",
	"Scoring candidate legs...",
	"Checking correlations...",
	"Building your parlay...",
	"Finalizing picks...",
}

// PhaseCount is the number of status phrases.
const PhaseCount = len(phrases)

type Escalation string

const (
	EscalationNone Escalation = ""
	EscalationSlow Escalation = "still_processing"
	EscalationLate Escalation = "taking_longer"
)

var escalationCopy = map[Escalation]string{
	EscalationSlow: "Still processing. Demand is high right now, and your parlay is still being built.",
	EscalationLate: "This is taking longer than usual. Keep this open; the result will appear as soon as it is ready.",
}

// Snapshot is one progress reading.
type Snapshot struct {
	Elapsed        time.Duration `json:"elapsed"`
	Estimate       time.Duration `json:"estimate"`
	Percent        int           `json:"percent"`
	Phase          int           `json:"phase"`
	Message        string        `json:"message"`
	Escalation     Escalation    `json:"escalation,omitempty"`
	EscalationCopy string        `json:"escalation_copy,omitempty"`
	Done           bool          `json:"done"`
}

// Estimate is the expected generation time for cfg.
func Estimate(cfg parlay.RequestConfig) time.Duration {
	if cfg.Mode == parlay.ModeTriple {
		return TripleEstimate
	}
	secs := 15 + 1.5*float64(cfg.LegCount)
	if len(cfg.Sports) > 1 {
		secs += 20
	}
	switch cfg.Risk {
	case parlay.RiskDegen:
		secs += 15
	case parlay.RiskBalanced:
		secs += 8
	}
	return time.Duration(secs * float64(time.Second))
}

// Tick computes the progress reading at elapsed. floorPhase is the phase
// already shown for this attempt; the result never goes below it.
func Tick(elapsed, estimate time.Duration, floorPhase int) Snapshot {
	if elapsed < 0 {
		elapsed = 0
	}
	percent := MaxPercent
	if estimate > 0 {
		percent = int(elapsed * 100 / estimate)
	}
	if percent > MaxPercent {
		percent = MaxPercent
	}

	phase := percent * PhaseCount / 100
	if phase >= PhaseCount {
		phase = PhaseCount - 1
	}
	if floorPhase >= PhaseCount {
		floorPhase = PhaseCount - 1
	}
	if phase < floorPhase {
		phase = floorPhase
	}

	esc := EscalationFor(elapsed)
	return Snapshot{
		Elapsed:        elapsed,
		Estimate:       estimate,
		Percent:        percent,
		Phase:          phase,
		Message:        phrases[phase],
		Escalation:     esc,
		EscalationCopy: escalationCopy[esc],
	}
}

// EscalationFor picks the long-wait band for elapsed.
func EscalationFor(elapsed time.Duration) Escalation {
	switch {
	case elapsed >= EscalationLateAfter:
		return EscalationLate
	case elapsed >= EscalationSlowAfter:
		return EscalationSlow
	}
	return EscalationNone
}

// Completed is the terminal reading shown briefly before the record clears.
func Completed(elapsed, estimate time.Duration) Snapshot {
	return Snapshot{
		Elapsed:  elapsed,
		Estimate: estimate,
		Percent:  100,
		Phase:    PhaseCount - 1,
		Message:  CompleteMessage,
		Done:     true,
	}
}

// Package history records generation attempts and attributes each outcome to
// the recovery action, if any, that produced the attempt.
package history

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

const DefaultCapacity = 200

var (
	ErrUnknownAttempt = errors.New("history: unknown attempt")
	ErrFinished       = errors.New("history: attempt already finished")
)

// Attempt is one generation attempt.
type Attempt struct {
	ID             string               `json:"id"`
	StartedAt      time.Time            `json:"started_at"`
	FinishedAt     time.Time            `json:"finished_at,omitempty"`
	Duration       time.Duration        `json:"duration"`
	Mode           parlay.Mode          `json:"mode"`
	Config         parlay.RequestConfig `json:"config"`
	RecoveryAction string               `json:"recovery_action,omitempty"`
	PreviousID     string               `json:"previous_id,omitempty"`
	Outcome        parlay.OutcomeKind   `json:"outcome,omitempty"`
	Class          parlay.FailureClass  `json:"class,omitempty"`
	Message        string               `json:"message,omitempty"`
	DebugID        string               `json:"debug_id,omitempty"`
	Legs           int                  `json:"legs"`
	Downgraded     bool                 `json:"downgraded"`
	FallbackUsed   bool                 `json:"fallback_used"`
}

// Finished reports whether the attempt has an outcome.
func (a Attempt) Finished() bool { return a.Outcome != "" }

// Recovered reports whether a recovery action led to a success.
func (a Attempt) Recovered() bool {
	return a.RecoveryAction != "" && a.Outcome == parlay.KindSuccess
}

// DailyStats aggregates the attempts finished during one UTC day.
type DailyStats struct {
	Day               time.Time                  `json:"day"`
	Attempts          int                        `json:"attempts"`
	Successes         int                        `json:"successes"`
	Downgrades        int                        `json:"downgrades"`
	ByOutcome         map[parlay.OutcomeKind]int `json:"by_outcome"`
	RecoveryAttempts  int                        `json:"recovery_attempts"`
	RecoverySuccesses int                        `json:"recovery_successes"`
	ByAction          map[string]ActionStats     `json:"by_action"`
	TotalDuration     time.Duration              `json:"total_duration"`
}

type ActionStats struct {
	Attempts  int `json:"attempts"`
	Successes int `json:"successes"`
}

// SuccessRate is Successes/Attempts, or 0.
func (s DailyStats) SuccessRate() float64 {
	if s.Attempts == 0 {
		return 0
	}
	return float64(s.Successes) / float64(s.Attempts)
}

// RecoveryRate is the share of recovery-driven attempts that succeeded.
func (s DailyStats) RecoveryRate() float64 {
	if s.RecoveryAttempts == 0 {
		return 0
	}
	return float64(s.RecoverySuccesses) / float64(s.RecoveryAttempts)
}

func newDailyStats(day time.Time) DailyStats {
	return DailyStats{Day: day, ByOutcome: make(map[parlay.OutcomeKind]int), ByAction: make(map[string]ActionStats)}
}

func startOfUTCDay(t time.Time) time.Time {
	utc := t.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}

// Ledger keeps the most recent attempts in memory.
type Ledger struct {
	mu       sync.RWMutex
	capacity int
	attempts []*Attempt
	byID     map[string]*Attempt
	daily    DailyStats
	now      func() time.Time
	// OnRecord runs after an attempt finishes.
	OnRecord func(Attempt)
}

func NewLedger(capacity int) *Ledger {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ledger{
		capacity: capacity,
		byID:     make(map[string]*Attempt),
		daily:    newDailyStats(startOfUTCDay(time.Now())),
		now:      time.Now,
	}
}

// Begin opens an attempt for cfg. action is the recovery action that produced
// cfg ("" for a plain attempt); previousID links it to the failed attempt.
func (l *Ledger) Begin(cfg parlay.RequestConfig, action, previousID string) Attempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := &Attempt{
		ID:             uuid.NewString(),
		StartedAt:      l.now(),
		Mode:           cfg.Mode,
		Config:         cfg.Clone(),
		RecoveryAction: action,
		PreviousID:     previousID,
	}
	l.attempts = append(l.attempts, a)
	l.byID[a.ID] = a
	if len(l.attempts) > l.capacity {
		drop := l.attempts[0]
		l.attempts = l.attempts[1:]
		delete(l.byID, drop.ID)
	}
	return *a
}

// Finish records the outcome of an attempt.
func (l *Ledger) Finish(id string, outcome parlay.Outcome) (Attempt, error) {
	l.mu.Lock()
	a, ok := l.byID[id]
	if !ok {
		l.mu.Unlock()
		return Attempt{}, ErrUnknownAttempt
	}
	if a.Finished() {
		l.mu.Unlock()
		return *a, ErrFinished
	}
	now := l.now()
	a.FinishedAt = now
	a.Duration = now.Sub(a.StartedAt)
	a.Outcome = outcome.Kind()
	a.Class = parlay.ClassOf(outcome)
	a.Message = parlay.Message(outcome)
	switch v := outcome.(type) {
	case parlay.Success:
		a.Legs = len(v.Legs)
		a.Downgraded = v.Downgraded
		a.FallbackUsed = v.FallbackUsed
	case parlay.InsufficientCandidates:
		a.DebugID = v.DebugID
	}
	l.recordLocked(now, *a)
	out := *a
	cb := l.OnRecord
	l.mu.Unlock()

	if cb != nil {
		cb(out)
	}
	return out, nil
}

func (l *Ledger) recordLocked(now time.Time, a Attempt) {
	if day := startOfUTCDay(now); !day.Equal(l.daily.Day) {
		l.daily = newDailyStats(day)
	}
	d := &l.daily
	d.Attempts++
	d.ByOutcome[a.Outcome]++
	d.TotalDuration += a.Duration
	if a.Outcome == parlay.KindSuccess {
		d.Successes++
	}
	if a.Downgraded {
		d.Downgrades++
	}
	if a.RecoveryAction != "" {
		d.RecoveryAttempts++
		s := d.ByAction[a.RecoveryAction]
		s.Attempts++
		if a.Recovered() {
			d.RecoverySuccesses++
			s.Successes++
		}
		d.ByAction[a.RecoveryAction] = s
	}
}

// Get returns one attempt.
func (l *Ledger) Get(id string) (Attempt, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a, ok := l.byID[id]
	if !ok {
		return Attempt{}, false
	}
	return *a, true
}

// Recent returns up to n attempts, newest first. n <= 0 returns all.
func (l *Ledger) Recent(n int) []Attempt {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if n <= 0 || n > len(l.attempts) {
		n = len(l.attempts)
	}
	out := make([]Attempt, 0, n)
	for i := len(l.attempts) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, *l.attempts[i])
	}
	return out
}

// Stats returns a copy of today's aggregate.
func (l *Ledger) Stats() DailyStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	if day := startOfUTCDay(l.now()); !day.Equal(l.daily.Day) {
		l.daily = newDailyStats(day)
	}
	out := l.daily
	out.ByOutcome = make(map[parlay.OutcomeKind]int, len(l.daily.ByOutcome))
	for k, v := range l.daily.ByOutcome {
		out.ByOutcome[k] = v
	}
	out.ByAction = make(map[string]ActionStats, len(l.daily.ByAction))
	for k, v := range l.daily.ByAction {
		out.ByAction[k] = v
	}
	return out
}

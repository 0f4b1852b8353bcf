package progress

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestEstimate(t *testing.T) {
	tests := []struct {
		name string
		cfg  parlay.RequestConfig
		want time.Duration
	}{
		{"triple", parlay.RequestConfig{Mode: parlay.ModeTriple, LegCount: 7, Risk: parlay.RiskDegen, Sports: []parlay.Sport{"NFL", "NBA"}}, 90 * time.Second},
		{"conservative 3", parlay.RequestConfig{Mode: parlay.ModeSingle, LegCount: 3, Risk: parlay.RiskConservative, Sports: []parlay.Sport{"NFL"}}, 19500 * time.Millisecond},
		{"balanced 4", parlay.RequestConfig{Mode: parlay.ModeSingle, LegCount: 4, Risk: parlay.RiskBalanced, Sports: []parlay.Sport{"NFL"}}, 29 * time.Second},
		{"degen multi 5", parlay.RequestConfig{Mode: parlay.ModeSingle, LegCount: 5, Risk: parlay.RiskDegen, Sports: []parlay.Sport{"NFL", "NBA"}}, 57500 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Estimate(tt.cfg))
			assert.Equal(t, Estimate(tt.cfg), Estimate(tt.cfg))
		})
	}
}

func TestTickMonotonicAndCapped(t *testing.T) {
	estimate := 30 * time.Second
	prev := Tick(0, estimate, 0)
	assert.Equal(t, 0, prev.Percent)
	assert.Equal(t, phrases[0], prev.Message)

	for elapsed := 500 * time.Millisecond; elapsed <= 200*time.Second; elapsed += 500 * time.Millisecond {
		s := Tick(elapsed, estimate, prev.Phase)
		require.GreaterOrEqual(t, s.Percent, prev.Percent)
		require.GreaterOrEqual(t, s.Phase, prev.Phase)
		require.LessOrEqual(t, s.Percent, MaxPercent)
		require.False(t, s.Done)
		prev = s
	}
	assert.Equal(t, MaxPercent, prev.Percent)
	assert.Equal(t, PhaseCount-1, prev.Phase)
}

func TestTickRespectsFloorPhase(t *testing.T) {
	s := Tick(time.Second, time.Minute, 3)
	assert.Equal(t, 3, s.Phase)
	assert.Equal(t, phrases[3], s.Message)
}

func TestEscalationBands(t *testing.T) {
	assert.Equal(t, EscalationNone, Tick(119*time.Second, TripleEstimate, 0).Escalation)

	slow := Tick(130*time.Second, TripleEstimate, 0)
	assert.Equal(t, EscalationSlow, slow.Escalation)
	assert.NotEmpty(t, slow.EscalationCopy)

	late := Tick(151*time.Second, TripleEstimate, 0)
	assert.Equal(t, EscalationLate, late.Escalation)
	assert.NotEqual(t, slow.EscalationCopy, late.EscalationCopy)

	assert.Equal(t, EscalationSlow, EscalationFor(120*time.Second))
	assert.Equal(t, EscalationLate, EscalationFor(150*time.Second))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
	tk  *fakeTicker
}

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func (f *fakeTicker) C() <-chan time.Time { return f.ch }
func (f *fakeTicker) Stop() {
	f.mu.Lock()
	f.stopped = true
	f.mu.Unlock()
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0), tk: &fakeTicker{ch: make(chan time.Time)}}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(time.Duration) ClockTicker { return c.tk }

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	c.mu.Unlock()
	c.tk.ch <- now
}

func TestTickerProgressesAndCompletes(t *testing.T) {
	clock := newFakeClock()
	ticks := make(chan Snapshot, 16)
	tk := Start(time.Minute, Options{Clock: clock, OnTick: func(s Snapshot) { ticks <- s }})

	clock.advance(30 * time.Second)
	s := <-ticks
	assert.Equal(t, 50, s.Percent)

	clock.advance(100 * time.Second)
	s = <-ticks
	assert.Equal(t, MaxPercent, s.Percent)
	assert.Equal(t, EscalationSlow, s.Escalation)
	assert.Equal(t, s, tk.Snapshot())

	done := tk.Complete()
	assert.Equal(t, 100, done.Percent)
	assert.Equal(t, CompleteMessage, done.Message)
	assert.True(t, done.Done)
	assert.True(t, clock.tk.stopped)

	// idempotent
	tk.Stop()
	tk.Complete()
	assert.Equal(t, done, tk.Snapshot())
}

func TestTickerStopWithoutTicks(t *testing.T) {
	tk := Start(time.Minute, Options{Period: time.Hour})
	tk.Stop()
	tk.Stop()
	assert.False(t, tk.Snapshot().Done)
	assert.Equal(t, 0, tk.Snapshot().Percent)
}

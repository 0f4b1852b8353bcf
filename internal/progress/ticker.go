package progress

import (
	"sync"
	"time"
)

// DefaultPeriod is the tick period of a running attempt.
const DefaultPeriod = 500 * time.Millisecond

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) ClockTicker
}

// ClockTicker abstracts time.Ticker.
type ClockTicker interface {
	C() <-chan time.Time
	Stop()
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
func (realClock) NewTicker(d time.Duration) ClockTicker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

type Options struct {
	Clock  Clock
	Period time.Duration
	// OnTick runs on the ticker goroutine after each reading.
	OnTick func(Snapshot)
}

// Ticker is the per-attempt progress resource. The owner must call Stop or
// Complete on every exit path; both release the goroutine and are safe to call
// more than once.
type Ticker struct {
	clock    Clock
	estimate time.Duration
	start    time.Time
	onTick   func(Snapshot)

	mu   sync.RWMutex
	snap Snapshot

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Start begins ticking for an attempt expected to take estimate.
func Start(estimate time.Duration, opts Options) *Ticker {
	clock := opts.Clock
	if clock == nil {
		clock = realClock{}
	}
	period := opts.Period
	if period <= 0 {
		period = DefaultPeriod
	}
	t := &Ticker{
		clock:    clock,
		estimate: estimate,
		start:    clock.Now(),
		onTick:   opts.OnTick,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	t.snap = Tick(0, estimate, 0)
	tk := clock.NewTicker(period)
	go t.loop(tk)
	return t
}

func (t *Ticker) loop(tk ClockTicker) {
	defer close(t.done)
	defer tk.Stop()
	for {
		select {
		case <-t.stop:
			return
		case <-tk.C():
			snap, ok := t.advance()
			if ok && t.onTick != nil {
				t.onTick(snap)
			}
		}
	}
}

func (t *Ticker) advance() (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.snap.Done {
		return t.snap, false
	}
	next := Tick(t.clock.Now().Sub(t.start), t.estimate, t.snap.Phase)
	if next.Percent < t.snap.Percent {
		next.Percent = t.snap.Percent
	}
	t.snap = next
	return next, true
}

// Snapshot returns the latest reading.
func (t *Ticker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snap
}

// StartedAt is when the attempt began.
func (t *Ticker) StartedAt() time.Time { return t.start }

// Stop ends ticking and waits for the goroutine to exit.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
}

// Complete stops ticking and snaps the reading to 100% / "Complete!".
func (t *Ticker) Complete() Snapshot {
	t.Stop()
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.snap.Done {
		t.snap = Completed(t.clock.Now().Sub(t.start), t.estimate)
	}
	return t.snap
}

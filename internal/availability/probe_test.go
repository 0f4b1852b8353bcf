package availability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/GoPolymarket/parlay-builder/internal/cache"
	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeCounter struct {
	mu      sync.Mutex
	counts  map[parlay.Sport]parlay.CandidateAvailability
	fail    map[parlay.Sport]bool
	queries []parlay.CandidateQuery
	block   chan struct{}
}

func (f *fakeCounter) CandidateLegsCount(ctx context.Context, q parlay.CandidateQuery) (parlay.CandidateAvailability, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	block := f.block
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return parlay.CandidateAvailability{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[q.Sport] {
		return parlay.CandidateAvailability{}, errors.New("boom")
	}
	v := f.counts[q.Sport]
	v.Sport = q.Sport
	return v, nil
}

func (f *fakeCounter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func counts(n, strong int) parlay.CandidateAvailability {
	return parlay.CandidateAvailability{Count: parlay.IntPtr(n), StrongEdgeCount: parlay.IntPtr(strong)}
}

func TestFetchFanOutAndUnknownOnFailure(t *testing.T) {
	f := &fakeCounter{
		counts: map[parlay.Sport]parlay.CandidateAvailability{parlay.SportNFL: counts(12, 2), parlay.SportNHL: counts(0, 0)},
		fail:   map[parlay.Sport]bool{parlay.SportNBA: true},
	}
	p := New(f, Options{Logger: zerolog.Nop()})
	defer p.Close()

	week := 4
	res := p.Fetch(context.Background(), Selection{
		Sports: []parlay.Sport{parlay.SportNFL, parlay.SportNBA, parlay.SportNHL},
		Week:   &week, LegCount: 3, Mode: parlay.ModeTriple,
	})
	require.Len(t, res.PerSport, 3)
	assert.Equal(t, parlay.SportNFL, res.PerSport[0].Sport)
	assert.Equal(t, 12, *res.PerSport[0].Count)

	nba := res.PerSport[1]
	assert.Equal(t, parlay.SportNBA, nba.Sport)
	assert.Nil(t, nba.Count, "failure must be unknown, not zero")
	assert.Nil(t, nba.StrongEdgeCount)
	assert.False(t, nba.Empty())

	assert.Equal(t, []parlay.Sport{parlay.SportNHL}, res.Disabled())
	assert.True(t, res.Gate().Selectable, "unknown count keeps the gate open")

	// week only sent for sports that have weeks
	for _, q := range f.queries {
		if q.Sport == parlay.SportNFL {
			require.NotNil(t, q.Week)
			assert.Equal(t, 4, *q.Week)
		} else {
			assert.Nil(t, q.Week)
		}
	}
}

func TestGate(t *testing.T) {
	closed := Result{PerSport: []parlay.CandidateAvailability{counts(10, 1), counts(8, 1)}}
	g := closed.Gate()
	assert.True(t, g.Known)
	assert.False(t, g.Selectable)
	assert.Equal(t, 2, g.StrongEdges)
	assert.NotEmpty(t, g.Reason)

	open := Result{PerSport: []parlay.CandidateAvailability{counts(10, 2), counts(8, 1)}}
	assert.True(t, open.Gate().Selectable)
	assert.True(t, Result{}.Gate().Selectable)
}

func TestRequestDebouncesAndDiscardsStale(t *testing.T) {
	f := &fakeCounter{counts: map[parlay.Sport]parlay.CandidateAvailability{
		parlay.SportNFL: counts(5, 3),
		parlay.SportNBA: counts(9, 4),
	}}
	updates := make(chan Result, 4)
	p := New(f, Options{Debounce: 20 * time.Millisecond, Logger: zerolog.Nop(), OnUpdate: func(r Result) { updates <- r }})
	defer p.Close()

	p.Request(Selection{Sports: []parlay.Sport{parlay.SportNFL}, LegCount: 3})
	p.Request(Selection{Sports: []parlay.Sport{parlay.SportNFL}, LegCount: 4})
	last := p.Request(Selection{Sports: []parlay.Sport{parlay.SportNBA}, LegCount: 4})

	select {
	case r := <-updates:
		assert.Equal(t, last, r.Token)
		assert.Equal(t, parlay.SportNBA, r.PerSport[0].Sport)
	case <-time.After(2 * time.Second):
		t.Fatal("no probe result")
	}
	assert.Equal(t, 1, f.calls(), "superseded requests must not reach the backend")

	cur, ok := p.Current()
	require.True(t, ok)
	assert.Equal(t, last, cur.Token)
}

func TestInFlightResultSupersededIsDropped(t *testing.T) {
	f := &fakeCounter{
		counts: map[parlay.Sport]parlay.CandidateAvailability{parlay.SportNFL: counts(5, 3), parlay.SportNBA: counts(1, 0)},
		block:  make(chan struct{}),
	}
	updates := make(chan Result, 4)
	p := New(f, Options{Debounce: time.Millisecond, Logger: zerolog.Nop(), OnUpdate: func(r Result) { updates <- r }})
	defer p.Close()

	p.Request(Selection{Sports: []parlay.Sport{parlay.SportNFL}})
	require.Eventually(t, func() bool { return f.calls() == 1 }, time.Second, time.Millisecond)

	f.mu.Lock()
	f.block = nil
	f.mu.Unlock()
	second := p.Request(Selection{Sports: []parlay.Sport{parlay.SportNBA}})

	r := <-updates
	assert.Equal(t, second, r.Token)
	assert.Equal(t, parlay.SportNBA, r.PerSport[0].Sport)

	select {
	case extra := <-updates:
		t.Fatalf("stale result delivered: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRequestForNewSelectionDropsCurrent(t *testing.T) {
	f := &fakeCounter{counts: map[parlay.Sport]parlay.CandidateAvailability{
		parlay.SportNFL: counts(5, 1),
		parlay.SportNBA: counts(9, 8),
	}}
	p := New(f, Options{Debounce: time.Millisecond, Logger: zerolog.Nop()})
	defer p.Close()

	nfl := Selection{Sports: []parlay.Sport{parlay.SportNFL}, LegCount: 3, Mode: parlay.ModeTriple}
	p.Request(nfl)
	require.Eventually(t, func() bool { _, ok := p.Current(); return ok }, time.Second, time.Millisecond)
	assert.False(t, p.Gate(nfl).Selectable)

	// Same selection again keeps the reading while the refresh is pending.
	p.mu.Lock()
	p.debounce = time.Hour
	p.mu.Unlock()
	p.Request(nfl)
	_, ok := p.CurrentFor(nfl)
	assert.True(t, ok)

	nba := Selection{Sports: []parlay.Sport{parlay.SportNBA}, LegCount: 3, Mode: parlay.ModeTriple}
	p.Request(nba)
	_, ok = p.Current()
	assert.False(t, ok, "a reading for another selection must not survive the edit")
	g := p.Gate(nba)
	assert.True(t, g.Selectable)
	assert.False(t, g.Known)
}

func TestSelectionEqual(t *testing.T) {
	w3, w4 := 3, 4
	base := Selection{Sports: []parlay.Sport{parlay.SportNFL}, Week: &w3, LegCount: 3, Mode: parlay.ModeSingle}
	same := Selection{Sports: []parlay.Sport{parlay.SportNFL}, Week: &w3, LegCount: 3, Mode: parlay.ModeSingle}
	assert.True(t, base.Equal(same))

	for name, other := range map[string]Selection{
		"sports": {Sports: []parlay.Sport{parlay.SportNBA}, Week: &w3, LegCount: 3, Mode: parlay.ModeSingle},
		"week":   {Sports: []parlay.Sport{parlay.SportNFL}, Week: &w4, LegCount: 3, Mode: parlay.ModeSingle},
		"noweek": {Sports: []parlay.Sport{parlay.SportNFL}, LegCount: 3, Mode: parlay.ModeSingle},
		"legs":   {Sports: []parlay.Sport{parlay.SportNFL}, Week: &w3, LegCount: 4, Mode: parlay.ModeSingle},
		"props":  {Sports: []parlay.Sport{parlay.SportNFL}, Week: &w3, LegCount: 3, Mode: parlay.ModeSingle, IncludePlayerProps: true},
		"mode":   {Sports: []parlay.Sport{parlay.SportNFL}, Week: &w3, LegCount: 3, Mode: parlay.ModeTriple},
	} {
		assert.False(t, base.Equal(other), name)
	}
}

func TestFetchUsesCache(t *testing.T) {
	f := &fakeCounter{counts: map[parlay.Sport]parlay.CandidateAvailability{parlay.SportNFL: counts(7, 1)}}
	p := New(f, Options{Cache: cache.NewMemory(), Logger: zerolog.Nop()})
	defer p.Close()

	sel := Selection{Sports: []parlay.Sport{parlay.SportNFL}, LegCount: 3}
	first := p.Fetch(context.Background(), sel)
	second := p.Fetch(context.Background(), sel)
	assert.Equal(t, first.PerSport, second.PerSport)
	assert.Equal(t, 1, f.calls())
}

func TestCloseStopsPending(t *testing.T) {
	f := &fakeCounter{}
	p := New(f, Options{Debounce: time.Hour, Logger: zerolog.Nop()})
	p.Request(Selection{Sports: []parlay.Sport{parlay.SportNFL}})
	p.Close()
	p.Close()
	assert.Equal(t, 0, f.calls())
	p.Request(Selection{Sports: []parlay.Sport{parlay.SportNFL}})
	_, ok := p.Current()
	assert.False(t, ok)
}

func TestSelectionFor(t *testing.T) {
	cfg := parlay.DefaultRequest()
	cfg.Mode = parlay.ModeTriple
	cfg.LegCount = 6
	sel := SelectionFor(cfg)
	assert.Equal(t, parlay.TripleLegCount, sel.LegCount)
	sel.Sports[0] = parlay.SportNBA
	assert.Equal(t, parlay.SportNFL, cfg.Sports[0])
}

package entitlement

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

type fakeFetcher struct {
	mu    sync.Mutex
	plans map[string]parlay.Entitlements
	err   error
	calls atomic.Int32
	gate  chan struct{}
}

func (f *fakeFetcher) Entitlements(_ context.Context, userID string) (parlay.Entitlements, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return parlay.Entitlements{}, f.err
	}
	return f.plans[userID], nil
}

var premium = parlay.Entitlements{IsAuthenticated: true, MaxLegs: 10, MixSportsAllowed: true, PlayerPropsAllowed: true}

func TestAbsentSnapshotIsRestrictive(t *testing.T) {
	r := NewResolver(&fakeFetcher{}, zerolog.Nop())
	ent := r.Current()
	assert.False(t, ent.MixSportsAllowed)
	assert.False(t, ent.PlayerPropsAllowed)
	assert.Equal(t, parlay.DefaultMaxLegs, ent.MaxLegs)
	_, ok := r.Snapshot()
	assert.False(t, ok)
}

func TestSetUserFetches(t *testing.T) {
	f := &fakeFetcher{plans: map[string]parlay.Entitlements{"u1": premium}}
	r := NewResolver(f, zerolog.Nop())
	var seen []parlay.Entitlements
	r.OnChange(func(e parlay.Entitlements) { seen = append(seen, e) })

	require.NoError(t, r.SetUser(context.Background(), "u1"))
	assert.Equal(t, premium, r.Current())
	assert.Equal(t, "u1", r.UserID())
	assert.False(t, r.LastSync().IsZero())

	// same user, snapshot present: no refetch
	require.NoError(t, r.SetUser(context.Background(), "u1"))
	assert.EqualValues(t, 1, f.calls.Load())
	require.NotEmpty(t, seen)
	assert.Equal(t, premium, seen[len(seen)-1])
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	f := &fakeFetcher{plans: map[string]parlay.Entitlements{"u1": premium}}
	r := NewResolver(f, zerolog.Nop())
	require.NoError(t, r.SetUser(context.Background(), "u1"))

	f.err = errors.New("connection refused")
	err := r.Refresh(context.Background())
	require.Error(t, err)
	assert.Equal(t, premium, r.Current())
	assert.Error(t, r.LastError())
}

func TestSignOutDegrades(t *testing.T) {
	f := &fakeFetcher{plans: map[string]parlay.Entitlements{"u1": premium}}
	r := NewResolver(f, zerolog.Nop())
	require.NoError(t, r.SetUser(context.Background(), "u1"))

	f.err = errors.New("offline")
	require.Error(t, r.SetUser(context.Background(), ""))
	assert.Equal(t, parlay.RestrictiveEntitlements(), r.Current())

	f.err = nil
	require.NoError(t, r.Refresh(context.Background()))
	assert.False(t, r.Current().IsAuthenticated)
	assert.Equal(t, parlay.DefaultMaxLegs, r.Current().MaxLegs)
}

func TestStaleResponseDiscarded(t *testing.T) {
	f := &fakeFetcher{plans: map[string]parlay.Entitlements{"u1": premium, "u2": {IsAuthenticated: true, MaxLegs: 4}}, gate: make(chan struct{})}
	r := NewResolver(f, zerolog.Nop())

	errc := make(chan error, 1)
	go func() { errc <- r.SetUser(context.Background(), "u1") }()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)

	// switch identity while u1's fetch is parked
	r.mu.Lock()
	r.userID = "u2"
	r.gen++
	r.mu.Unlock()

	f.gate <- struct{}{}
	assert.ErrorIs(t, <-errc, ErrStale)
	_, ok := r.Snapshot()
	assert.False(t, ok)
}

func TestConcurrentRefreshCollapses(t *testing.T) {
	f := &fakeFetcher{plans: map[string]parlay.Entitlements{"": {}}, gate: make(chan struct{})}
	r := NewResolver(f, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.Refresh(context.Background())
		}()
	}
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(f.gate)
	wg.Wait()
	assert.LessOrEqual(t, f.calls.Load(), int32(5))
	_, ok := r.Snapshot()
	assert.True(t, ok)
}

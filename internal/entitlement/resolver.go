// Package entitlement keeps the signed-in user's entitlement snapshot.
package entitlement

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	xlog "github.com/GoPolymarket/parlay-builder/internal/log"
	"github.com/GoPolymarket/parlay-builder/internal/metrics"
	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

// ErrStale is returned when the user changed while a fetch was in flight.
var ErrStale = errors.New("entitlement: user changed during fetch")

// Fetcher reads entitlements from the backend.
type Fetcher interface {
	Entitlements(ctx context.Context, userID string) (parlay.Entitlements, error)
}

// Resolver owns the entitlement snapshot. A snapshot is replaced wholesale,
// never edited; while none is present Current reports the most restrictive
// entitlements.
type Resolver struct {
	fetcher Fetcher
	logger  zerolog.Logger
	group   singleflight.Group

	mu        sync.RWMutex
	userID    string
	gen       uint64
	snap      *parlay.Entitlements
	lastSync  time.Time
	lastErr   error
	listeners []func(parlay.Entitlements)
}

func NewResolver(fetcher Fetcher, logger zerolog.Logger) *Resolver {
	return &Resolver{fetcher: fetcher, logger: logger}
}

// OnChange registers fn to run after every accepted snapshot.
func (r *Resolver) OnChange(fn func(parlay.Entitlements)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// SetUser switches identity and fetches. An empty id is sign-out. The previous
// user's snapshot is dropped first so a failed fetch leaves the restrictive
// default rather than someone else's plan.
func (r *Resolver) SetUser(ctx context.Context, userID string) error {
	r.mu.Lock()
	if r.userID == userID && r.snap != nil {
		r.mu.Unlock()
		return nil
	}
	changed := r.userID != userID
	r.userID = userID
	r.gen++
	if changed {
		r.snap = nil
	}
	r.mu.Unlock()

	if changed {
		r.notify(parlay.RestrictiveEntitlements())
	}
	return r.Refresh(ctx)
}

// Refresh re-fetches for the current user. On failure the previous snapshot
// stays in place and the error is returned for logging only.
func (r *Resolver) Refresh(ctx context.Context) error {
	r.mu.RLock()
	userID, gen := r.userID, r.gen
	r.mu.RUnlock()

	logger := xlog.WithContext(ctx, r.logger).With().Str(xlog.FieldUserID, userID).Logger()

	v, err, _ := r.group.Do(userID, func() (any, error) {
		return r.fetcher.Entitlements(ctx, userID)
	})
	if err != nil {
		metrics.EntitlementFetchTotal.WithLabelValues(metrics.ResultError).Inc()
		r.mu.Lock()
		r.lastErr = err
		r.mu.Unlock()
		logger.Warn().Err(err).Msg("entitlement fetch failed; keeping previous snapshot")
		return err
	}
	ent := v.(parlay.Entitlements).Normalize()

	r.mu.Lock()
	if r.gen != gen || r.userID != userID {
		r.mu.Unlock()
		metrics.EntitlementFetchTotal.WithLabelValues(metrics.ResultDiscarded).Inc()
		logger.Debug().Msg("discarding entitlements for previous user")
		return ErrStale
	}
	r.snap = &ent
	r.lastSync = time.Now()
	r.lastErr = nil
	r.mu.Unlock()

	metrics.EntitlementFetchTotal.WithLabelValues(metrics.ResultOK).Inc()
	logger.Info().
		Bool("authenticated", ent.IsAuthenticated).
		Int("max_legs", ent.MaxLegs).
		Bool("mix_sports", ent.MixSportsAllowed).
		Bool("player_props", ent.PlayerPropsAllowed).
		Msg("entitlements updated")
	r.notify(ent)
	return nil
}

func (r *Resolver) notify(ent parlay.Entitlements) {
	r.mu.RLock()
	listeners := append([]func(parlay.Entitlements){}, r.listeners...)
	r.mu.RUnlock()
	for _, fn := range listeners {
		fn(ent)
	}
}

// Current returns the snapshot, or the restrictive default when absent.
func (r *Resolver) Current() parlay.Entitlements {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snap == nil {
		return parlay.RestrictiveEntitlements()
	}
	return *r.snap
}

// Snapshot returns the snapshot and whether one is present.
func (r *Resolver) Snapshot() (parlay.Entitlements, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.snap == nil {
		return parlay.RestrictiveEntitlements(), false
	}
	return *r.snap, true
}

func (r *Resolver) UserID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userID
}

func (r *Resolver) LastSync() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastSync
}

func (r *Resolver) LastError() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastErr
}

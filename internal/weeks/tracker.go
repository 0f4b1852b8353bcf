// Package weeks keeps the selectable NFL week list fresh.
package weeks

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/GoPolymarket/parlay-builder/internal/metrics"
	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

// DefaultInterval is how often the week list is refreshed.
const DefaultInterval = time.Hour

// Fetcher reads the week list.
type Fetcher interface {
	NFLWeeks(ctx context.Context) (parlay.WeekList, error)
}

// Tracker periodically syncs the NFL week list.
type Tracker struct {
	fetcher      Fetcher
	logger       zerolog.Logger
	syncInterval time.Duration

	mu       sync.RWMutex
	list     parlay.WeekList
	lastSync time.Time
	onSync   func(parlay.WeekList)
}

func NewTracker(fetcher Fetcher, syncInterval time.Duration, logger zerolog.Logger) *Tracker {
	if syncInterval <= 0 {
		syncInterval = DefaultInterval
	}
	return &Tracker{fetcher: fetcher, syncInterval: syncInterval, logger: logger}
}

// OnSync registers fn to run after every successful sync.
func (t *Tracker) OnSync(fn func(parlay.WeekList)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSync = fn
}

// Sync fetches the week list. On failure the previous list is kept.
func (t *Tracker) Sync(ctx context.Context) error {
	list, err := t.fetcher.NFLWeeks(ctx)
	if err != nil {
		metrics.WeeksSyncTotal.WithLabelValues(metrics.ResultError).Inc()
		return err
	}
	metrics.WeeksSyncTotal.WithLabelValues(metrics.ResultOK).Inc()

	t.mu.Lock()
	t.list = list
	t.lastSync = time.Now()
	fn := t.onSync
	t.mu.Unlock()

	if fn != nil {
		fn(list)
	}
	return nil
}

// Weeks returns the cached list.
func (t *Tracker) Weeks() parlay.WeekList {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.list
}

// CurrentWeek returns the server's current week, if known.
func (t *Tracker) CurrentWeek() (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.list.CurrentWeek != nil {
		return *t.list.CurrentWeek, true
	}
	for _, w := range t.list.Weeks {
		if w.IsCurrent {
			return w.Week, true
		}
	}
	return 0, false
}

func (t *Tracker) LastSync() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastSync
}

// Run syncs immediately and then on every interval until ctx is done.
func (t *Tracker) Run(ctx context.Context) error {
	if err := t.Sync(ctx); err != nil {
		t.logger.Warn().Err(err).Msg("weeks tracker initial sync")
	}

	ticker := time.NewTicker(t.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := t.Sync(ctx); err != nil {
				t.logger.Warn().Err(err).Msg("weeks tracker sync")
			}
		}
	}
}

// Handle is a running refresh loop.
type Handle struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start runs the refresh loop in the background. The owner must call Stop.
func (t *Tracker) Start(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(h.done)
		_ = t.Run(ctx)
	}()
	return h
}

// Stop ends the loop and waits for it to exit. Safe to call more than once.
func (h *Handle) Stop() {
	h.once.Do(h.cancel)
	<-h.done
}

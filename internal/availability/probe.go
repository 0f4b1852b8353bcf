// Package availability reads how many eligible legs exist for the current
// selection. Its results are advisory: they gray out options but never block
// or cancel a generation.
package availability

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/GoPolymarket/parlay-builder/internal/cache"
	"github.com/GoPolymarket/parlay-builder/internal/metrics"
	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

const (
	DefaultDebounce = 300 * time.Millisecond
	DefaultCacheTTL = 60 * time.Second
	maxParallel     = 4
)

// Counter is the backend read the probe issues per sport.
type Counter interface {
	CandidateLegsCount(ctx context.Context, q parlay.CandidateQuery) (parlay.CandidateAvailability, error)
}

// Selection is the part of a RequestConfig that affects availability.
type Selection struct {
	Sports             []parlay.Sport `json:"sports"`
	Week               *int           `json:"week,omitempty"`
	LegCount           int            `json:"leg_count"`
	IncludePlayerProps bool           `json:"include_player_props"`
	Mode               parlay.Mode    `json:"mode"`
}

// SelectionFor extracts the probe selection from cfg.
func SelectionFor(cfg parlay.RequestConfig) Selection {
	c := cfg.Clone()
	return Selection{
		Sports:             c.Sports,
		Week:               c.Week,
		LegCount:           c.EffectiveLegCount(),
		IncludePlayerProps: c.IncludePlayerProps,
		Mode:               c.Mode,
	}
}

// Equal reports whether s and o would issue the same backend reads.
func (s Selection) Equal(o Selection) bool {
	if s.LegCount != o.LegCount || s.IncludePlayerProps != o.IncludePlayerProps || s.Mode != o.Mode {
		return false
	}
	if (s.Week == nil) != (o.Week == nil) || (s.Week != nil && *s.Week != *o.Week) {
		return false
	}
	return slices.Equal(s.Sports, o.Sports)
}

func (s Selection) query(sport parlay.Sport) parlay.CandidateQuery {
	q := parlay.CandidateQuery{
		Sport:              sport,
		LegCountHint:       s.LegCount,
		IncludePlayerProps: s.IncludePlayerProps,
		Mode:               s.Mode,
	}
	if s.Week != nil && sport.SupportsWeeks() {
		w := *s.Week
		q.Week = &w
	}
	return q
}

// Result is one resolved probe for a selection.
type Result struct {
	Token     uint64                         `json:"token"`
	Selection Selection                      `json:"selection"`
	PerSport  []parlay.CandidateAvailability `json:"per_sport"`
	FetchedAt time.Time                      `json:"fetched_at"`
}

// Disabled lists sports with a known count of zero. Unknown counts are never
// disabled.
func (r Result) Disabled() []parlay.Sport {
	var out []parlay.Sport
	for _, a := range r.PerSport {
		if a.Empty() {
			out = append(out, a.Sport)
		}
	}
	return out
}

// For returns the reading for one sport.
func (r Result) For(sport parlay.Sport) (parlay.CandidateAvailability, bool) {
	for _, a := range r.PerSport {
		if a.Sport == sport {
			return a, true
		}
	}
	return parlay.CandidateAvailability{}, false
}

// TripleGate says whether Triple mode may be attempted.
type TripleGate struct {
	Selectable  bool   `json:"selectable"`
	Known       bool   `json:"known"`
	StrongEdges int    `json:"strong_edges"`
	Reason      string `json:"reason,omitempty"`
}

// Gate sums strong-edge counts across the selected sports. Any unknown count
// leaves the gate open.
func (r Result) Gate() TripleGate {
	if len(r.PerSport) == 0 {
		return TripleGate{Selectable: true}
	}
	total := 0
	for _, a := range r.PerSport {
		if a.StrongEdgeCount == nil {
			return TripleGate{Selectable: true}
		}
		total += *a.StrongEdgeCount
	}
	g := TripleGate{Known: true, StrongEdges: total, Selectable: total >= parlay.TripleLegCount}
	if !g.Selectable {
		g.Reason = fmt.Sprintf("Triple needs %d strong-edge picks; only %d available right now.", parlay.TripleLegCount, total)
	}
	return g
}

type Options struct {
	Debounce time.Duration
	Cache    cache.Cache
	CacheTTL time.Duration
	Logger   zerolog.Logger
	// OnUpdate runs after a fresh result replaces the current one.
	OnUpdate func(Result)
}

// Probe issues debounced, token-guarded availability reads.
type Probe struct {
	counter  Counter
	debounce time.Duration
	cache    cache.Cache
	cacheTTL time.Duration
	logger   zerolog.Logger
	onUpdate func(Result)

	mu      sync.Mutex
	token   uint64
	timer   *time.Timer
	cancel  context.CancelFunc
	current *Result
	closed  bool
	wg      sync.WaitGroup
}

func New(counter Counter, opts Options) *Probe {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Probe{
		counter:  counter,
		debounce: debounce,
		cache:    opts.Cache,
		cacheTTL: ttl,
		logger:   opts.Logger,
		onUpdate: opts.OnUpdate,
	}
}

// Request schedules a probe for sel after the debounce delay, superseding any
// pending or in-flight probe. A current result for a different selection is
// dropped at once. It returns the token the result will carry.
func (p *Probe) Request(sel Selection) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return p.token
	}
	p.supersedeLocked()
	if p.current != nil && !p.current.Selection.Equal(sel) {
		p.current = nil
	}
	p.token++
	token := p.token
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	p.wg.Add(1)
	p.timer = time.AfterFunc(p.debounce, func() {
		defer p.wg.Done()
		defer cancel()
		res := p.Fetch(ctx, sel)
		res.Token = token
		p.resolve(res)
	})
	return token
}

// supersedeLocked stops the pending timer and cancels the in-flight read.
func (p *Probe) supersedeLocked() {
	if p.timer != nil && p.timer.Stop() {
		p.wg.Done()
	}
	p.timer = nil
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *Probe) resolve(res Result) {
	p.mu.Lock()
	if p.closed || res.Token != p.token {
		p.mu.Unlock()
		metrics.ProbeStaleTotal.Inc()
		p.logger.Debug().Uint64("token", res.Token).Msg("discarding stale availability result")
		return
	}
	cp := res
	p.current = &cp
	onUpdate := p.onUpdate
	p.mu.Unlock()

	if onUpdate != nil {
		onUpdate(res)
	}
}

// Fetch reads availability for every selected sport now. A per-sport failure
// yields an unknown reading for that sport, never zero.
func (p *Probe) Fetch(ctx context.Context, sel Selection) Result {
	out := make([]parlay.CandidateAvailability, len(sel.Sports))
	var g errgroup.Group
	g.SetLimit(maxParallel)
	for i, sport := range sel.Sports {
		i := i
		q := sel.query(sport)
		g.Go(func() error {
			out[i] = p.fetchOne(ctx, q)
			return nil
		})
	}
	_ = g.Wait()
	return Result{Selection: sel, PerSport: out, FetchedAt: time.Now()}
}

func (p *Probe) fetchOne(ctx context.Context, q parlay.CandidateQuery) parlay.CandidateAvailability {
	key := cache.Key(q)
	if p.cache != nil {
		if v, ok := p.cache.Get(ctx, key); ok {
			metrics.ProbeResultTotal.WithLabelValues(metrics.ResultCacheHit).Inc()
			return v
		}
	}
	v, err := p.counter.CandidateLegsCount(ctx, q)
	if err != nil {
		metrics.ProbeResultTotal.WithLabelValues(metrics.ResultError).Inc()
		if ctx.Err() == nil {
			p.logger.Warn().Err(err).Str("sport", string(q.Sport)).Msg("availability probe failed")
		}
		return parlay.Unknown(q.Sport, q.Week)
	}
	metrics.ProbeResultTotal.WithLabelValues(metrics.ResultOK).Inc()
	if p.cache != nil {
		p.cache.Set(ctx, key, v, p.cacheTTL)
	}
	return v
}

// Current returns the latest accepted result.
func (p *Probe) Current() (Result, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return Result{}, false
	}
	return *p.current, true
}

// CurrentFor returns the latest accepted result only when it was read for sel.
func (p *Probe) CurrentFor(sel Selection) (Result, bool) {
	res, ok := p.Current()
	if !ok || !res.Selection.Equal(sel) {
		return Result{}, false
	}
	return res, true
}

// Token is the token of the most recent Request.
func (p *Probe) Token() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token
}

// Gate is the Triple gate of the current result for sel. A missing or
// mismatched result leaves the gate open.
func (p *Probe) Gate(sel Selection) TripleGate {
	res, ok := p.CurrentFor(sel)
	if !ok {
		return TripleGate{Selectable: true}
	}
	return res.Gate()
}

// Close cancels pending work and waits for any running probe to finish.
func (p *Probe) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.supersedeLocked()
	p.mu.Unlock()
	p.wg.Wait()
}

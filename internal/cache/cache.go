// Package cache holds short-lived availability probe results so repeated
// selections do not re-query the backend.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

// Cache stores availability readings with a TTL. Implementations never return
// errors from Get: a failed read is a miss.
type Cache interface {
	Get(ctx context.Context, key string) (parlay.CandidateAvailability, bool)
	Set(ctx context.Context, key string, value parlay.CandidateAvailability, ttl time.Duration)
	Close() error
}

// Key identifies one probe query.
func Key(q parlay.CandidateQuery) string {
	week := "all"
	if q.Week != nil {
		week = strconv.Itoa(*q.Week)
	}
	mode := q.Mode
	if mode == "" {
		mode = parlay.ModeSingle
	}
	return fmt.Sprintf("parlay:probe:%s:%s:%d:%t:%s", q.Sport, week, q.LegCountHint, q.IncludePlayerProps, mode)
}

type entry struct {
	value   parlay.CandidateAvailability
	expires time.Time
}

// Memory is an in-process Cache. Expired entries are dropped lazily.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]entry), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string) (parlay.CandidateAvailability, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return parlay.CandidateAvailability{}, false
	}
	if !m.now().Before(e.expires) {
		delete(m.entries, key)
		return parlay.CandidateAvailability{}, false
	}
	return e.value, true
}

func (m *Memory) Set(_ context.Context, key string, value parlay.CandidateAvailability, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = entry{value: value, expires: now.Add(ttl)}
}

// Len reports the number of stored entries, expired or not.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) Close() error { return nil }

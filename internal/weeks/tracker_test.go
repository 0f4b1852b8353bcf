package weeks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/goleak"

	"github.com/GoPolymarket/parlay-builder/internal/parlay"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeFetcher struct {
	list  parlay.WeekList
	err   error
	calls atomic.Int32
}

func (f *fakeFetcher) NFLWeeks(context.Context) (parlay.WeekList, error) {
	f.calls.Add(1)
	return f.list, f.err
}

func sampleList() parlay.WeekList {
	cur := 7
	return parlay.WeekList{
		CurrentWeek: &cur,
		Weeks: []parlay.Week{
			{Week: 6, Label: "Week 6", IsAvailable: false},
			{Week: 7, Label: "Week 7", IsCurrent: true, IsAvailable: true},
			{Week: 8, Label: "Week 8", IsAvailable: true},
		},
	}
}

func TestNewTrackerDefaults(t *testing.T) {
	tracker := NewTracker(nil, 0, zerolog.Nop())
	if tracker.syncInterval != DefaultInterval {
		t.Errorf("expected %v sync interval, got %v", DefaultInterval, tracker.syncInterval)
	}
	if !tracker.LastSync().IsZero() {
		t.Error("expected zero last sync time")
	}
	if _, ok := tracker.CurrentWeek(); ok {
		t.Error("expected no current week before sync")
	}
}

func TestSyncAndKeepOnFailure(t *testing.T) {
	f := &fakeFetcher{list: sampleList()}
	tracker := NewTracker(f, time.Hour, zerolog.Nop())
	var synced int
	tracker.OnSync(func(parlay.WeekList) { synced++ })

	if err := tracker.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if w, ok := tracker.CurrentWeek(); !ok || w != 7 {
		t.Fatalf("current week = %d, %v", w, ok)
	}
	if !tracker.Weeks().Available(8) || tracker.Weeks().Available(6) {
		t.Fatal("availability flags not kept")
	}

	f.err = errors.New("down")
	if err := tracker.Sync(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(tracker.Weeks().Weeks) != 3 {
		t.Fatal("failed sync dropped the list")
	}
	if synced != 1 {
		t.Fatalf("OnSync ran %d times", synced)
	}
}

func TestCurrentWeekFromFlags(t *testing.T) {
	f := &fakeFetcher{list: parlay.WeekList{Weeks: []parlay.Week{{Week: 3}, {Week: 4, IsCurrent: true}}}}
	tracker := NewTracker(f, time.Hour, zerolog.Nop())
	_ = tracker.Sync(context.Background())
	if w, ok := tracker.CurrentWeek(); !ok || w != 4 {
		t.Fatalf("current week = %d, %v", w, ok)
	}
}

func TestHandleStopsLoop(t *testing.T) {
	f := &fakeFetcher{list: sampleList()}
	tracker := NewTracker(f, 10*time.Millisecond, zerolog.Nop())
	h := tracker.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for f.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	h.Stop()
	h.Stop()
	if f.calls.Load() < 2 {
		t.Fatalf("expected periodic syncs, got %d", f.calls.Load())
	}
	after := f.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if f.calls.Load() != after {
		t.Fatal("loop still running after Stop")
	}
}

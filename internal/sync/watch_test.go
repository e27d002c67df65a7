package sync

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewWatcher_IntervalFallback(t *testing.T) {
	w := NewWatcher(nil, 0)
	if w.interval != 5*time.Second {
		t.Errorf("interval = %s, want 5s fallback", w.interval)
	}
	w = NewWatcher(nil, -time.Second)
	if w.interval != 5*time.Second {
		t.Errorf("interval = %s, want 5s fallback", w.interval)
	}
}

func TestWatcher_FirstTickImmediate(t *testing.T) {
	eng, _, adapter, _ := newTestEngine(t, ModeOneWay)
	w := NewWatcher(eng, time.Hour) // interval never fires within the test

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := w.Run(ctx)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run = %v, want deadline exceeded", err)
	}
	if adapter.pulls != 1 {
		t.Errorf("pulls = %d, want exactly one immediate tick", adapter.pulls)
	}
}

func TestWatcher_KeepsTickingThroughFailures(t *testing.T) {
	eng, _, adapter, _ := newTestEngine(t, ModeOneWay)
	adapter.pullErr = errors.New("tracker is down")
	w := NewWatcher(eng, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := w.Run(ctx)

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run = %v", err)
	}
	if adapter.pulls < 2 {
		t.Errorf("pulls = %d, want the loop to survive tick failures", adapter.pulls)
	}
}

func TestWatcher_TicksNeverOverlap(t *testing.T) {
	eng, _, adapter, _ := newTestEngine(t, ModeOneWay)

	const tickDur = 20 * time.Millisecond
	const interval = 10 * time.Millisecond

	var inTick, maxInTick int32
	var starts []time.Time
	adapter.pullHook = func() {
		starts = append(starts, time.Now())
		if n := atomic.AddInt32(&inTick, 1); n > atomic.LoadInt32(&maxInTick) {
			atomic.StoreInt32(&maxInTick, n)
		}
		time.Sleep(tickDur) // every tick overruns the interval
		atomic.AddInt32(&inTick, -1)
	}
	w := NewWatcher(eng, interval)

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	if err := w.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run = %v", err)
	}

	if adapter.pulls < 2 {
		t.Fatalf("pulls = %d, want at least two ticks", adapter.pulls)
	}
	if maxInTick > 1 {
		t.Errorf("ticks overlapped: %d ran concurrently", maxInTick)
	}
	// Scheduling is relative to tick completion, so consecutive starts
	// are separated by at least the tick duration plus the interval. A
	// wall-clock cadence would fire the next tick mid-run.
	for i := 1; i < len(starts); i++ {
		if gap := starts[i].Sub(starts[i-1]); gap < tickDur+interval {
			t.Errorf("tick %d started %s after tick %d, want at least %s",
				i, gap, i-1, tickDur+interval)
		}
	}
}

func TestWatcher_CancellationStops(t *testing.T) {
	eng, _, _, _ := newTestEngine(t, ModeOneWay)
	w := NewWatcher(eng, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(20 * time.Millisecond) // let the first tick land
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after cancellation")
	}
}

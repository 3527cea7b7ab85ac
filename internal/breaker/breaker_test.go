package breaker

import (
	"sync"
	"testing"
	"time"
)

func newTestBreaker(threshold float64, minCalls, window, halfOpenPermits int, wait time.Duration) *Breaker {
	return New(Config{
		Name:                     "test",
		FailureRateThreshold:     threshold,
		WaitDurationInOpenState:  wait,
		SlidingWindowSize:        window,
		MinimumNumberOfCalls:     minCalls,
		PermittedCallsInHalfOpen: halfOpenPermits,
	})
}

func TestNewBreakerDefaultsToClosed(t *testing.T) {
	b := New(Config{})
	snap := b.Snapshot()
	if snap.State != "CLOSED" {
		t.Errorf("expected CLOSED, got %s", snap.State)
	}
}

func TestClosedToOpenOnThreshold(t *testing.T) {
	b := newTestBreaker(0.6, 5, 5, 3, time.Second)

	// 3 failures, 2 successes => 60% failure rate, at the threshold.
	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatal("expected allowed while closed")
		}
		b.RecordFailure()
	}
	for i := 0; i < 2; i++ {
		if !b.Allow() {
			t.Fatal("expected allowed while closed")
		}
		b.RecordSuccess()
	}

	if got := b.Snapshot().State; got != "OPEN" {
		t.Errorf("expected OPEN after reaching failure threshold, got %s", got)
	}
}

func TestOpenRejectsUntilWaitElapses(t *testing.T) {
	b := newTestBreaker(0.5, 1, 5, 1, 50*time.Millisecond)
	b.Allow()
	b.RecordFailure()
	if b.Snapshot().State != "OPEN" {
		t.Fatal("expected OPEN after a single failure at threshold 0.5 with minCalls 1")
	}

	if b.Allow() {
		t.Fatal("expected OPEN breaker to reject immediately")
	}

	time.Sleep(60 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("expected a half-open permit after the wait duration elapses")
	}
	if got := b.Snapshot().State; got != "HALF_OPEN" {
		t.Errorf("expected HALF_OPEN, got %s", got)
	}
}

func TestHalfOpenPermitsAreBounded(t *testing.T) {
	b := newTestBreaker(0.5, 1, 5, 2, 10*time.Millisecond)
	b.Allow()
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	if !b.Allow() {
		t.Fatal("expected first half-open permit")
	}
	if !b.Allow() {
		t.Fatal("expected second half-open permit")
	}
	if b.Allow() {
		t.Fatal("expected third half-open call to be rejected (permits exhausted)")
	}
}

func TestHalfOpenAllSuccessClosesBreaker(t *testing.T) {
	b := newTestBreaker(0.5, 1, 5, 2, 10*time.Millisecond)
	b.Allow()
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	b.Allow()
	b.RecordSuccess()
	b.Allow()
	b.RecordSuccess()

	if got := b.Snapshot().State; got != "CLOSED" {
		t.Errorf("expected CLOSED after all half-open permits succeed, got %s", got)
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	b := newTestBreaker(0.5, 1, 5, 2, 10*time.Millisecond)
	b.Allow()
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)

	b.Allow()
	b.RecordFailure()

	if got := b.Snapshot().State; got != "OPEN" {
		t.Errorf("expected OPEN after a half-open failure, got %s", got)
	}
}

func TestBelowMinimumCallsNeverOpens(t *testing.T) {
	b := newTestBreaker(0.1, 10, 10, 3, time.Second)
	for i := 0; i < 4; i++ {
		b.Allow()
		b.RecordFailure()
	}
	if got := b.Snapshot().State; got != "CLOSED" {
		t.Errorf("expected CLOSED below minimum-calls floor, got %s", got)
	}
}

func TestManagerSharesBreakerByName(t *testing.T) {
	m := NewManager()
	a := m.GetOrCreate("dynamicRoute", Config{})
	b := m.GetOrCreate("dynamicRoute", Config{})
	if a != b {
		t.Fatal("expected the same breaker instance for repeated name lookups")
	}
}

func TestManagerPresetsCoverNamedInstances(t *testing.T) {
	m := NewManager()
	for _, name := range []string{"backendService", "criticalService", "dynamicRoute"} {
		found := false
		for _, snap := range m.Snapshots() {
			if snap.Name == name {
				found = true
			}
		}
		if !found {
			t.Errorf("expected preset breaker %q to exist", name)
		}
	}
}

func TestConcurrentOutcomeRecordingKeepsStateValid(t *testing.T) {
	b := newTestBreaker(0.6, 5, 15, 3, 10*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if !b.Allow() {
					continue
				}
				if (n+j)%3 == 0 {
					b.RecordFailure()
				} else {
					b.RecordSuccess()
				}
			}
		}(i)
	}
	wg.Wait()

	snap := b.Snapshot()
	switch snap.State {
	case "CLOSED", "OPEN", "HALF_OPEN":
	default:
		t.Fatalf("invalid state %q", snap.State)
	}
	if snap.FailureRate < 0 || snap.FailureRate > 1 {
		t.Fatalf("failure rate out of [0, 1]: %v", snap.FailureRate)
	}
}

// Package breaker implements a per-name sliding-window circuit
// breaker: CLOSED accepts all calls and records outcomes in a
// count-based ring; once enough outcomes accumulate and the failure
// rate crosses the configured threshold, it opens; after a wait
// duration it issues a bounded number of half-open trial permits,
// closing again only if every one of them succeeds.
package breaker

import (
	"sync"
	"time"
)

// State is one of CLOSED, OPEN, HALF_OPEN.
type State int

const (
	CLOSED State = iota
	OPEN
	HALF_OPEN
)

func (s State) String() string {
	switch s {
	case OPEN:
		return "OPEN"
	case HALF_OPEN:
		return "HALF_OPEN"
	default:
		return "CLOSED"
	}
}

// Config parameterizes one named breaker.
type Config struct {
	Name                     string
	FailureRateThreshold     float64 // e.g. 0.6 for 60%
	WaitDurationInOpenState  time.Duration
	SlidingWindowSize        int
	MinimumNumberOfCalls     int
	PermittedCallsInHalfOpen int
	// Fallback names the local fallback path this breaker routes to
	// when OPEN, e.g. "/fallback/message".
	Fallback string
}

// withDefaults fills zero-value fields with the dynamicRoute preset.
func (c Config) withDefaults() Config {
	if c.FailureRateThreshold <= 0 {
		c.FailureRateThreshold = 0.6
	}
	if c.WaitDurationInOpenState <= 0 {
		c.WaitDurationInOpenState = 15 * time.Second
	}
	if c.SlidingWindowSize <= 0 {
		c.SlidingWindowSize = 15
	}
	if c.MinimumNumberOfCalls <= 0 {
		c.MinimumNumberOfCalls = 5
	}
	if c.PermittedCallsInHalfOpen <= 0 {
		c.PermittedCallsInHalfOpen = 3
	}
	if c.Fallback == "" {
		c.Fallback = "/fallback/message"
	}
	return c
}

// Breaker is one named circuit breaker instance. Safe for concurrent
// use; state transitions are serialized by mu, outcome recording is
// atomic per slot by virtue of the same lock.
type Breaker struct {
	cfg Config

	mu    sync.Mutex
	state State

	ring     []bool
	ringPos  int
	filled   int
	failures int

	openedAt time.Time

	halfOpenPermitsRemaining int
	halfOpenDispensed        int
	halfOpenSuccesses        int
}

// New builds a breaker in the CLOSED state.
func New(cfg Config) *Breaker {
	cfg = cfg.withDefaults()
	return &Breaker{cfg: cfg, state: CLOSED, ring: make([]bool, cfg.SlidingWindowSize)}
}

// Allow reports whether a call may proceed, consuming a half-open
// permit if the breaker is transitioning out of OPEN.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case CLOSED:
		return true
	case OPEN:
		if time.Since(b.openedAt) < b.cfg.WaitDurationInOpenState {
			return false
		}
		b.state = HALF_OPEN
		b.halfOpenPermitsRemaining = b.cfg.PermittedCallsInHalfOpen
		b.halfOpenDispensed = 0
		b.halfOpenSuccesses = 0
		fallthrough
	case HALF_OPEN:
		if b.halfOpenPermitsRemaining <= 0 {
			return false
		}
		b.halfOpenPermitsRemaining--
		b.halfOpenDispensed++
		return true
	default:
		return false
	}
}

// RecordSuccess records a successful outcome for the call most
// recently admitted by Allow.
func (b *Breaker) RecordSuccess() { b.record(true) }

// RecordFailure records a failed outcome for the call most recently
// admitted by Allow.
func (b *Breaker) RecordFailure() { b.record(false) }

func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HALF_OPEN:
		if !success {
			b.open()
			return
		}
		b.halfOpenSuccesses++
		if b.halfOpenDispensed >= b.cfg.PermittedCallsInHalfOpen &&
			b.halfOpenSuccesses >= b.cfg.PermittedCallsInHalfOpen {
			b.state = CLOSED
			b.resetWindow()
		}
	case CLOSED:
		b.push(success)
		if b.filled >= b.cfg.MinimumNumberOfCalls {
			rate := float64(b.failures) / float64(b.filled)
			if rate >= b.cfg.FailureRateThreshold {
				b.open()
			}
		}
	case OPEN:
		// A call admitted just before the OPEN transition reporting
		// back late; the state already reflects the decision.
	}
}

func (b *Breaker) push(success bool) {
	if b.filled == len(b.ring) {
		if !b.ring[b.ringPos] {
			b.failures--
		}
	} else {
		b.filled++
	}
	b.ring[b.ringPos] = success
	if !success {
		b.failures++
	}
	b.ringPos = (b.ringPos + 1) % len(b.ring)
}

func (b *Breaker) open() {
	b.state = OPEN
	b.openedAt = time.Now()
	b.resetWindow()
}

func (b *Breaker) resetWindow() {
	b.ring = make([]bool, len(b.ring))
	b.ringPos = 0
	b.filled = 0
	b.failures = 0
	b.halfOpenPermitsRemaining = 0
	b.halfOpenDispensed = 0
	b.halfOpenSuccesses = 0
}

// Snapshot is a point-in-time, lock-free-safe read of breaker state.
type Snapshot struct {
	Name        string
	State       string
	FailureRate float64
	Fallback    string
}

// Snapshot returns the current state and failure rate.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	var rate float64
	if b.filled > 0 {
		rate = float64(b.failures) / float64(b.filled)
	}
	return Snapshot{Name: b.cfg.Name, State: b.state.String(), FailureRate: rate, Fallback: b.cfg.Fallback}
}

// Fallback returns the local fallback path this breaker routes to
// when OPEN.
func (b *Breaker) Fallback() string {
	return b.cfg.Fallback
}

// Name returns the breaker's configured name.
func (b *Breaker) Name() string { return b.cfg.Name }

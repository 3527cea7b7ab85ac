package breaker

import (
	"sync"
	"time"
)

// Manager hands out shared *Breaker instances keyed by name, so
// multiple routes configured with the same breaker name (e.g. the
// built-in "dynamicRoute" default) observe and trip the same state.
type Manager struct {
	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewManager builds a Manager pre-seeded with the three recommended
// named presets.
func NewManager() *Manager {
	m := &Manager{breakers: make(map[string]*Breaker)}
	for name, cfg := range Presets() {
		m.breakers[name] = New(cfg)
	}
	return m
}

// GetOrCreate returns the existing breaker for name, or creates one
// from cfg if this is the first reference to that name.
func (m *Manager) GetOrCreate(name string, cfg Config) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.breakers[name]; ok {
		return b
	}
	cfg.Name = name
	b := New(cfg)
	m.breakers[name] = b
	return b
}

// Snapshots returns a point-in-time view of every known breaker,
// consumed by the health probe and admin surface.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, 0, len(m.breakers))
	for _, b := range m.breakers {
		out = append(out, b.Snapshot())
	}
	return out
}

// Presets returns the three recommended named breaker configurations.
func Presets() map[string]Config {
	return map[string]Config{
		"backendService": {
			Name:                     "backendService",
			FailureRateThreshold:     0.5,
			WaitDurationInOpenState:  10 * time.Second,
			SlidingWindowSize:        10,
			MinimumNumberOfCalls:     5,
			PermittedCallsInHalfOpen: 3,
			Fallback:                 "/fallback/backend",
		},
		"criticalService": {
			Name:                     "criticalService",
			FailureRateThreshold:     0.7,
			WaitDurationInOpenState:  30 * time.Second,
			SlidingWindowSize:        20,
			MinimumNumberOfCalls:     10,
			PermittedCallsInHalfOpen: 3,
			Fallback:                 "/fallback/critical",
		},
		"dynamicRoute": {
			Name:                     "dynamicRoute",
			FailureRateThreshold:     0.6,
			WaitDurationInOpenState:  15 * time.Second,
			SlidingWindowSize:        15,
			MinimumNumberOfCalls:     5,
			PermittedCallsInHalfOpen: 3,
			Fallback:                 "/fallback/message",
		},
	}
}

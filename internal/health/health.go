// Package health implements the gateway's health probe: a
// lazily-evaluated UP/DEGRADED/DOWN status derived from the route
// store's own reachability, with a hard timeout so a wedged store
// never wedges a load balancer's health check.
package health

import (
	"context"
	"time"

	"github.com/neuragate/gateway/internal/breaker"
	"github.com/neuragate/gateway/internal/routestore"
)

// Status is the probe's tri-state result.
type Status string

const (
	Up       Status = "UP"
	Degraded Status = "DEGRADED"
	Down     Status = "DOWN"
)

// storeHealth is the subset of *routestore.Store the probe depends
// on, so tests can supply a fake without wiring a real Redis client.
type storeHealth interface {
	Health(ctx context.Context) routestore.Health
}

// Probe reports the gateway's aggregate health for /actuator/health
// and for load balancers deciding whether to keep an instance in
// rotation.
type Probe struct {
	store    storeHealth
	breakers *breaker.Manager
	timeout  time.Duration
}

// New builds a Probe bound to store and breakers. A store check that
// exceeds the 2s hard timeout counts as Down, never hangs the caller.
func New(store storeHealth, breakers *breaker.Manager) *Probe {
	return &Probe{store: store, breakers: breakers, timeout: 2 * time.Second}
}

// Report is the full health payload rendered at /actuator/health.
type Report struct {
	Status     Status                     `json:"status"`
	Components map[string]ComponentStatus `json:"components"`
}

// ComponentStatus is one named component's contribution to Report.
type ComponentStatus struct {
	Status  string            `json:"status"`
	Details map[string]string `json:"details,omitempty"`
}

// Check runs the probe: UP when the store is Up, DEGRADED when the
// store is unreachable but still serving cached remote definitions or
// the in-memory fallback set, DOWN otherwise. A timeout while asking
// the store counts as Down.
func (p *Probe) Check(ctx context.Context) Report {
	checkCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	storeStatus := p.safeStoreHealth(checkCtx)

	var overall Status
	switch storeStatus {
	case routestore.Up:
		overall = Up
	case routestore.Degraded:
		overall = Degraded
	default:
		overall = Down
	}

	components := map[string]ComponentStatus{
		"gateway":         {Status: string(overall)},
		"routeStore":      {Status: storeStatus.String()},
		"circuitBreakers": p.breakerComponent(),
	}

	return Report{Status: overall, Components: components}
}

// safeStoreHealth runs p.store.Health and treats a context deadline
// exceeded as Down, matching the "timeouts count as Down" rule even
// when the store implementation doesn't itself honor ctx promptly.
func (p *Probe) safeStoreHealth(ctx context.Context) routestore.Health {
	done := make(chan routestore.Health, 1)
	go func() { done <- p.store.Health(ctx) }()
	select {
	case h := <-done:
		return h
	case <-ctx.Done():
		return routestore.Down
	}
}

func (p *Probe) breakerComponent() ComponentStatus {
	details := make(map[string]string)
	for _, snap := range p.breakers.Snapshots() {
		details[snap.Name] = snap.State
	}
	return ComponentStatus{Status: "reporting", Details: details}
}

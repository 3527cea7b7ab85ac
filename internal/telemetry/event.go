// Package telemetry implements per-request event capture (wrapping
// the whole filter chain) and its non-blocking, at-least-once
// delivery to a message bus via gocloud.dev/pubsub.
package telemetry

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// Event is one captured request outcome.
type Event struct {
	RouteID               string    `json:"route_id,omitempty"`
	Path                  string    `json:"path"`
	Method                string    `json:"method"`
	Status                int       `json:"status"`
	LatencyMs             float64   `json:"latency_ms"`
	Timestamp             time.Time `json:"timestamp"`
	CorrelationID         string    `json:"correlation_id"`
	ClientIP              string    `json:"client_ip"`
	UserAgent             string    `json:"user_agent,omitempty"`
	RateLimited           bool      `json:"rate_limited"`
	CircuitBreakerTrigger bool      `json:"circuit_breaker_triggered"`
	RetryCount            int       `json:"retry_count"`
}

// IsError reports whether this event belongs on the gateway-errors
// topic: status >= 500. Capture records an uncaught panic as a
// synthesized 500, so such failures land here too.
func (e Event) IsError() bool {
	return e.Status >= 500
}

type recorderKey struct{}

// Recorder accumulates the fields a request's filters contribute
// before the capture middleware builds the final Event on exit. Safe
// for concurrent use, though in practice one request's filters run
// sequentially.
type Recorder struct {
	mu sync.Mutex

	routeID               string
	rateLimited           bool
	circuitBreakerTrigger bool
	retryCount            int
}

// NewContext returns a context carrying a fresh Recorder, plus the
// Recorder itself so the caller that wraps the whole chain can read
// it back after the downstream handler returns.
func NewContext(ctx context.Context) (context.Context, *Recorder) {
	rec := &Recorder{}
	return context.WithValue(ctx, recorderKey{}, rec), rec
}

// FromContext returns the Recorder stored by NewContext, or nil.
func FromContext(ctx context.Context) *Recorder {
	rec, _ := ctx.Value(recorderKey{}).(*Recorder)
	return rec
}

// SetRouteID records which route matched the request.
func (r *Recorder) SetRouteID(id string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.routeID = id
	r.mu.Unlock()
}

// MarkRateLimited flags that the rate limiter rejected the request.
func (r *Recorder) MarkRateLimited() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.rateLimited = true
	r.mu.Unlock()
}

// MarkCircuitBreakerTriggered flags that the circuit breaker short-circuited the request.
func (r *Recorder) MarkCircuitBreakerTriggered() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.circuitBreakerTrigger = true
	r.mu.Unlock()
}

// SetRetryCount records the retry policy's final retry count for the request.
func (r *Recorder) SetRetryCount(n int) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.retryCount = n
	r.mu.Unlock()
}

func (r *Recorder) snapshot() (routeID string, rateLimited, breakerTriggered bool, retryCount int) {
	if r == nil {
		return "", false, false, 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.routeID, r.rateLimited, r.circuitBreakerTrigger, r.retryCount
}

// clientIP extracts the caller's address sans port, preferring
// X-Forwarded-For's first hop when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for i := 0; i < len(fwd); i++ {
			if fwd[i] == ',' {
				return fwd[:i]
			}
		}
		return fwd
	}
	host := r.RemoteAddr
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
	}
	return host
}

// Package correlation extracts or mints the per-request correlation id
// and propagates it through the request context and the request and
// response headers. It does not touch logging: a log record carries the
// id only where the logging call adds it as a field (as Capture's panic
// log does). It also lifts any inbound W3C
// trace context (traceparent/baggage) onto the request context so the
// proxy can re-inject it on the upstream call.
package correlation

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func init() {
	// Batch crypto/rand reads so minting an id isn't a syscall per request.
	uuid.EnableRandPool()
}

// Header is the canonical correlation id header name.
const Header = "X-Correlation-ID"

type contextKey struct{}

// SetupPropagation installs the W3C trace-context + baggage
// propagator as the process global, replacing OTEL's no-op default.
// Called once by the gateway wiring.
func SetupPropagation() {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

// Middleware reuses an inbound X-Correlation-ID or mints a fresh
// UUIDv4, stores it on the context, echoes it on the request and
// response headers, extracts any inbound trace context, and hands
// control to next.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if id == "" {
			id = uuid.New().String()
		}
		r.Header.Set(Header, id)
		w.Header().Set(Header, id)

		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		ctx = context.WithValue(ctx, contextKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the correlation id stored by Middleware, or "".
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}

// FromRequest is a convenience wrapper around FromContext.
func FromRequest(r *http.Request) string {
	return FromContext(r.Context())
}

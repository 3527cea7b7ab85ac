package telemetry

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/neuragate/gateway/internal/correlation"
	"github.com/neuragate/gateway/internal/gwerrors"
	"github.com/neuragate/gateway/internal/logging"
)

// statusWriter captures the status code a downstream handler writes
// without changing response behavior.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

// Capture wraps the whole filter chain, recording timestamp on entry
// and latency on exit, then hands the finished Event to publish
// without blocking the response write. It is also the chain's last
// line of defense against panics: an uncaught panic is logged with
// the correlation id, rendered as a synthesized 500, and still
// produces a telemetry event rather than unwinding past the chain.
func Capture(publish func(Event), next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, rec := NewContext(r.Context())
		r = r.WithContext(ctx)

		sw := &statusWriter{ResponseWriter: w}

		defer func() {
			status := sw.status
			if rc := recover(); rc != nil {
				logging.Error("uncaught panic in filter chain",
					zap.Any("panic", rc),
					zap.Stack("stack"),
					zap.String("correlation_id", correlation.FromRequest(r)))
				if !sw.wroteHeader {
					gwerrors.ErrInternalServerError.WithCorrelationID(correlation.FromRequest(r)).WriteJSON(sw)
				}
				status = http.StatusInternalServerError
			} else if !sw.wroteHeader {
				// Handler returned without writing; net/http sends 200.
				status = http.StatusOK
			}

			routeID, rateLimited, breakerTriggered, retryCount := rec.snapshot()
			ev := Event{
				RouteID:               routeID,
				Path:                  r.URL.Path,
				Method:                r.Method,
				Status:                status,
				LatencyMs:             float64(time.Since(start)) / float64(time.Millisecond),
				Timestamp:             start,
				CorrelationID:         correlation.FromRequest(r),
				ClientIP:              clientIP(r),
				UserAgent:             r.Header.Get("User-Agent"),
				RateLimited:           rateLimited,
				CircuitBreakerTrigger: breakerTriggered,
				RetryCount:            retryCount,
			}

			Metrics.record(ev)

			// Handoff must not block the response write, which has
			// already completed by this point; publish itself is
			// non-blocking (bounded queue, drop-on-full).
			publish(ev)
		}()

		next.ServeHTTP(sw, r)
	})
}

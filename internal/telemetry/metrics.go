package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the process-wide Prometheus registry for the request
// path, distinct from the async Event bus: counters and histograms
// here are for operators scraping /actuator/metrics, while Events carry the
// per-request record onto the telemetry bus for downstream consumers.
var Metrics = newMetrics()

type metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	rateLimited     *prometheus.CounterVec
	breakerTripped  *prometheus.CounterVec
	eventsDropped   prometheus.Counter
}

func newMetrics() *metrics {
	return &metrics{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neuragate",
			Name:      "requests_total",
			Help:      "Total requests handled by route and status code.",
		}, []string{"route", "status"}),
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "neuragate",
			Name:      "request_duration_seconds",
			Help:      "Request latency in seconds by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		rateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neuragate",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter, by route.",
		}, []string{"route"}),
		breakerTripped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "neuragate",
			Name:      "circuit_breaker_short_circuited_total",
			Help:      "Requests short-circuited by an open breaker, by route.",
		}, []string{"route"}),
		eventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "neuragate",
			Name:      "telemetry_events_dropped_total",
			Help:      "Telemetry events dropped because the publisher queue was full.",
		}),
	}
}

// record folds one finished Event into the Prometheus vectors;
// Capture calls this right alongside publish so scrapeable metrics
// and the async bus always agree on the same observed outcome.
func (m *metrics) record(ev Event) {
	route := ev.RouteID
	if route == "" {
		route = "unmatched"
	}
	m.requestsTotal.WithLabelValues(route, statusBucket(ev.Status)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(ev.LatencyMs / 1000)
	if ev.RateLimited {
		m.rateLimited.WithLabelValues(route).Inc()
	}
	if ev.CircuitBreakerTrigger {
		m.breakerTripped.WithLabelValues(route).Inc()
	}
}

func statusBucket(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

// Handler exposes the Prometheus text exposition format for
// /actuator/metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

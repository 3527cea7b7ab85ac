package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCaptureDefaultsToImplicit200(t *testing.T) {
	var got Event
	publish := func(ev Event) { got = ev }

	h := Capture(publish, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/x", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got.Status != http.StatusOK {
		t.Fatalf("expected default 200 when WriteHeader is implicit, got %d", got.Status)
	}
}

func TestCaptureRecoversPanicAsSynthesized500(t *testing.T) {
	var got Event
	publish := func(ev Event) { got = ev }

	h := Capture(publish, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("filter blew up")
	}))

	req := httptest.NewRequest("GET", "/x", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected a synthesized 500 response, got %d", rec.Code)
	}
	if got.Status != http.StatusInternalServerError {
		t.Fatalf("expected the telemetry event to carry the synthesized 500, got %d", got.Status)
	}
	if got.LatencyMs < 0 {
		t.Fatalf("expected non-negative latency, got %v", got.LatencyMs)
	}
}

func TestCaptureRecordsRecorderFlags(t *testing.T) {
	var got Event
	publish := func(ev Event) { got = ev }

	h := Capture(publish, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := FromContext(r.Context())
		rec.SetRouteID("inv")
		rec.MarkRateLimited()
		rec.MarkCircuitBreakerTriggered()
		rec.SetRetryCount(2)
		w.WriteHeader(503)
	}))

	req := httptest.NewRequest("GET", "/inventory/1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got.RouteID != "inv" || !got.RateLimited || !got.CircuitBreakerTrigger || got.RetryCount != 2 {
		t.Fatalf("expected recorder flags to propagate into the event, got %+v", got)
	}
	if got.Status != 503 {
		t.Fatalf("expected status 503, got %d", got.Status)
	}
}

func TestPublisherDropsOnFullQueue(t *testing.T) {
	// Exercise Publish directly against an unconsumed queue so the
	// drain worker's scheduling can't race away the overflow.
	p := &Publisher{queue: make(chan Event, 1)}

	p.Publish(Event{Path: "/a"})
	p.Publish(Event{Path: "/b"})
	p.Publish(Event{Path: "/c"})

	if p.Dropped() != 2 {
		t.Fatalf("expected 2 dropped events once the queue of capacity 1 is saturated, got %d", p.Dropped())
	}
}

func TestNewPublisherStartsDrainWorker(t *testing.T) {
	ctx := context.Background()
	p, err := NewPublisher(ctx, Config{BusURL: "mem://test-drain", QueueCapacity: 8, BatchInterval: 5 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	defer p.Close(ctx)

	p.Publish(Event{Path: "/a", RouteID: "r1"})
	time.Sleep(20 * time.Millisecond)
	// No assertion on bus contents (mempubsub has no peek API here);
	// this just exercises the open/publish/close lifecycle end to end.
}

func TestEventIsError(t *testing.T) {
	if (Event{Status: 200}).IsError() {
		t.Fatal("200 should not be an error event")
	}
	if !(Event{Status: 502}).IsError() {
		t.Fatal("502 should be an error event")
	}
}

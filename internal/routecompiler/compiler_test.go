package routecompiler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/neuragate/gateway/internal/breaker"
	"github.com/neuragate/gateway/internal/proxy"
	"github.com/neuragate/gateway/internal/route"
	"github.com/neuragate/gateway/internal/telemetry"
)

func newCompiler() *Compiler {
	pool := proxy.NewTransportPool(proxy.DefaultTransportConfig)
	return New(breaker.NewManager(), pool, nil, time.Second)
}

func TestCompileProxiesToUpstream(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))
	defer backend.Close()

	def := &route.Definition{
		ID:         "r1",
		URI:        backend.URL,
		Predicates: []route.Predicate{{Name: "Path", Args: map[string]string{"pattern": "orders/**"}}},
	}

	c := newCompiler()
	cr, err := c.Compile(def)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	req := httptest.NewRequest("GET", "/orders/1", nil)
	ctx, _ := telemetry.NewContext(req.Context())
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	cr.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCompileRoutesToFallbackWhenConfiguredBreakerOpens(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer backend.Close()

	def := &route.Definition{
		ID:         "r2",
		URI:        backend.URL,
		Predicates: []route.Predicate{{Name: "Path", Args: map[string]string{"pattern": "x"}}},
		Filters: []route.Filter{
			{Name: "Retry", Args: map[string]string{"retries": "0"}},
			{Name: "CircuitBreaker", Args: map[string]string{
				"name":                        "r2-breaker",
				"minimum-number-of-calls":     "1",
				"failure-rate-threshold":      "0.1",
				"wait-duration-in-open-state": "1h",
			}},
		},
	}

	c := newCompiler()
	cr, err := c.Compile(def)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	// First request trips the breaker (single failing call exceeds threshold).
	req1 := httptest.NewRequest("GET", "/x", nil)
	ctx1, _ := telemetry.NewContext(req1.Context())
	req1 = req1.WithContext(ctx1)
	rec1 := httptest.NewRecorder()
	cr.Handler.ServeHTTP(rec1, req1)
	if rec1.Code != http.StatusBadGateway {
		t.Fatalf("expected first call to reach upstream and get 502, got %d", rec1.Code)
	}

	// Second request should short-circuit to the fallback router.
	req2 := httptest.NewRequest("GET", "/x", nil)
	ctx2, _ := telemetry.NewContext(req2.Context())
	req2 = req2.WithContext(ctx2)
	rec2 := httptest.NewRecorder()
	cr.Handler.ServeHTTP(rec2, req2)
	if rec2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected breaker to short-circuit to fallback 503, got %d", rec2.Code)
	}
}

func TestCompileRejectsInvalidDefinition(t *testing.T) {
	c := newCompiler()
	_, err := c.Compile(&route.Definition{ID: "bad"})
	if err == nil {
		t.Fatal("expected validation error for a definition with no uri/predicates")
	}
}

func TestCompileAppliesUserFilters(t *testing.T) {
	var gotHeader string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("X-Tenant")
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	def := &route.Definition{
		ID:         "r3",
		URI:        backend.URL,
		Predicates: []route.Predicate{{Name: "Path", Args: map[string]string{"pattern": "x"}}},
		Filters: []route.Filter{
			{Name: "AddRequestHeader", Args: map[string]string{"name": "X-Tenant", "value": "acme"}},
		},
	}

	c := newCompiler()
	cr, err := c.Compile(def)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	req := httptest.NewRequest("GET", "/x", nil)
	ctx, _ := telemetry.NewContext(req.Context())
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	cr.Handler.ServeHTTP(rec, req)

	if gotHeader != "acme" {
		t.Fatalf("expected upstream to see injected header, got %q", gotHeader)
	}
}

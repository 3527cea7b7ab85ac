package correlation

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewareReusesInboundID(t *testing.T) {
	var seen string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = FromRequest(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(Header, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "abc-123" {
		t.Fatalf("expected context id abc-123, got %q", seen)
	}
	if got := rec.Header().Get(Header); got != "abc-123" {
		t.Fatalf("expected response header abc-123, got %q", got)
	}
}

func TestMiddlewareMintsIDWhenAbsent(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get(Header); got == "" {
		t.Fatal("expected a minted correlation id")
	}
}

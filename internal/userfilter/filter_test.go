package userfilter

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAddRequestHeaderSetsHeader(t *testing.T) {
	f := &AddRequestHeader{HeaderName: "X-Tenant", HeaderValue: "acme"}
	req := httptest.NewRequest("GET", "/x", nil)
	f.ApplyRequest(req)
	if req.Header.Get("X-Tenant") != "acme" {
		t.Fatalf("expected header to be set")
	}
}

func TestAddResponseHeaderSetsHeader(t *testing.T) {
	f := &AddResponseHeader{HeaderName: "X-Served-By", HeaderValue: "gateway"}
	resp := &http.Response{Header: make(http.Header)}
	f.ApplyResponse(resp)
	if resp.Header.Get("X-Served-By") != "gateway" {
		t.Fatalf("expected response header to be set")
	}
}

func TestStripPrefixRemovesLeadingSegment(t *testing.T) {
	f := &StripPrefix{Prefix: "/api/v1"}
	req := httptest.NewRequest("GET", "/api/v1/orders/9", nil)
	f.ApplyRequest(req)
	if req.URL.Path != "/orders/9" {
		t.Fatalf("expected /orders/9, got %q", req.URL.Path)
	}
}

func TestBuildUnknownFilterErrors(t *testing.T) {
	if _, err := Build("NoSuchFilter", nil); err == nil {
		t.Fatal("expected an error for an unknown filter name")
	}
}

func TestBuildStripPrefixRequiresPrefix(t *testing.T) {
	if _, err := Build("StripPrefix", map[string]string{}); err == nil {
		t.Fatal("expected an error when prefix is missing")
	}
}

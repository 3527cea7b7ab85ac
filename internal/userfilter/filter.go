// Package userfilter implements the closed set of request/response
// filters a route definition may configure beyond the built-in
// resilience trio (RequestRateLimiter, Retry, CircuitBreaker). A
// Filter applies directly to the one request/response pair a single
// upstream attempt sees, rather than wrapping a whole http.Handler,
// since user filters sit inside the retry loop and must run again on
// every attempt, not just once around the chain.
package userfilter

import (
	"fmt"
	"net/http"
	"strings"
)

// Filter mutates an outgoing request before it reaches the upstream,
// or an incoming response before it reaches the retry/breaker outcome
// check.
type Filter interface {
	Name() string
	ApplyRequest(r *http.Request)
	ApplyResponse(resp *http.Response)
}

// AddRequestHeader sets a fixed header on every upstream attempt.
type AddRequestHeader struct {
	HeaderName  string
	HeaderValue string
}

func (f *AddRequestHeader) Name() string { return "AddRequestHeader" }
func (f *AddRequestHeader) ApplyRequest(r *http.Request) {
	r.Header.Set(f.HeaderName, f.HeaderValue)
}
func (f *AddRequestHeader) ApplyResponse(*http.Response) {}

// AddResponseHeader sets a fixed header on every upstream response
// before it is relayed to the client.
type AddResponseHeader struct {
	HeaderName  string
	HeaderValue string
}

func (f *AddResponseHeader) Name() string { return "AddResponseHeader" }
func (f *AddResponseHeader) ApplyRequest(*http.Request) {}
func (f *AddResponseHeader) ApplyResponse(resp *http.Response) {
	if resp == nil {
		return
	}
	resp.Header.Set(f.HeaderName, f.HeaderValue)
}

// StripPrefix removes a leading path segment before the request is
// proxied, e.g. stripping "/api/v1" from "/api/v1/orders/9".
type StripPrefix struct {
	Prefix string
}

func (f *StripPrefix) Name() string { return "StripPrefix" }
func (f *StripPrefix) ApplyRequest(r *http.Request) {
	trimmed := strings.TrimPrefix(r.URL.Path, f.Prefix)
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	r.URL.Path = trimmed
}
func (f *StripPrefix) ApplyResponse(*http.Response) {}

// Build compiles one route.Filter spec into a Filter instance. The
// set of recognized names is closed, matching the predicate registry:
// an unrecognized name is a config error raised at compile time.
func Build(name string, args map[string]string) (Filter, error) {
	switch name {
	case "AddRequestHeader":
		return &AddRequestHeader{HeaderName: args["name"], HeaderValue: args["value"]}, nil
	case "AddResponseHeader":
		return &AddResponseHeader{HeaderName: args["name"], HeaderValue: args["value"]}, nil
	case "StripPrefix":
		if args["prefix"] == "" {
			return nil, fmt.Errorf("userfilter: StripPrefix requires a prefix arg")
		}
		return &StripPrefix{Prefix: args["prefix"]}, nil
	default:
		return nil, fmt.Errorf("userfilter: unknown filter %q", name)
	}
}

package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Upstream is one compiled proxy target: the route's base URI and the
// shared transport it should use.
type Upstream struct {
	BaseURL *url.URL
	pool    *TransportPool
	timeout time.Duration
}

// NewUpstream parses rawURL and binds it to pool for transport reuse.
func NewUpstream(rawURL string, pool *TransportPool, readTimeout time.Duration) (*Upstream, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("proxy: invalid upstream uri %q: %w", rawURL, err)
	}
	if readTimeout <= 0 {
		readTimeout = DefaultTransportConfig.ReadTimeout
	}
	return &Upstream{BaseURL: u, pool: pool, timeout: readTimeout}, nil
}

// Attempt performs exactly one upstream call for r, matching
// retry.Attempt's shape so it can be handed straight to retry.Execute.
func (u *Upstream) Attempt(ctx context.Context, r *http.Request) (*http.Response, error) {
	target := *u.BaseURL
	target.Path = singleJoiningSlash(u.BaseURL.Path, r.URL.Path)
	target.RawQuery = r.URL.RawQuery

	body := r.Body
	outReq, err := http.NewRequestWithContext(ctx, r.Method, target.String(), body)
	if err != nil {
		return nil, err
	}
	outReq.Header = cloneHeader(r.Header)
	applyForwardingHeaders(outReq, r)
	removeHopHeaders(outReq.Header)

	// Inject OTEL trace context + W3C baggage into the outbound request
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(outReq.Header))

	tryCtx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()
	outReq = outReq.WithContext(tryCtx)

	transport := u.pool.Get(target.Host)
	resp, err := transport.RoundTrip(outReq)
	if err != nil {
		return nil, &TransportError{Upstream: target.Host, Err: err}
	}
	removeHopHeaders(resp.Header)
	return resp, nil
}

// TransportError wraps a transport-level failure so callers can
// recognize it as the "retryable transport error" the component
// design promises on a failed upstream call.
type TransportError struct {
	Upstream string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("proxy: transport failure calling %s: %v", e.Upstream, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// WriteResponse copies status, headers, and a streamed body to w.
func WriteResponse(w http.ResponseWriter, resp *http.Response) {
	for k, vv := range resp.Header {
		for _, v := range vv {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if resp.Body != nil {
		io.Copy(w, resp.Body)
		resp.Body.Close()
	}
}

func cloneHeader(h http.Header) http.Header {
	out := make(http.Header, len(h))
	for k, vv := range h {
		out[k] = append([]string(nil), vv...)
	}
	return out
}

func applyForwardingHeaders(outReq *http.Request, r *http.Request) {
	clientIP := clientIPOf(r)
	if clientIP != "" {
		if prior := outReq.Header.Get("X-Forwarded-For"); prior != "" {
			outReq.Header.Set("X-Forwarded-For", prior+", "+clientIP)
		} else {
			outReq.Header.Set("X-Forwarded-For", clientIP)
		}
	}
	if r.TLS != nil {
		outReq.Header.Set("X-Forwarded-Proto", "https")
	} else {
		outReq.Header.Set("X-Forwarded-Proto", "http")
	}
	outReq.Header.Set("X-Forwarded-Host", r.Host)
}

func clientIPOf(r *http.Request) string {
	host := r.RemoteAddr
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
	}
	return host
}

var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

func removeHopHeaders(header http.Header) {
	for _, h := range hopHeaders {
		header.Del(h)
	}
}

// singleJoiningSlash joins two URL paths with exactly one slash
// between them.
func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	default:
		return a + b
	}
}

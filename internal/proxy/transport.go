// Package proxy performs the upstream HTTP call: it joins the route's
// upstream URI with the request path, copies headers sans hop-by-hop
// headers, streams the body, and applies connect/read timeouts over a
// connection pool reused per upstream host.
package proxy

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// TransportConfig parameterizes the shared upstream transport.
type TransportConfig struct {
	ConnectTimeout      time.Duration
	ReadTimeout         time.Duration
	MaxIdleConns        int
	MaxIdleConnsPerHost int
	IdleConnTimeout     time.Duration
}

// DefaultTransportConfig matches the connect/read timeout defaults
// (2s/10s) and pooling defaults the proxy engine falls back to.
var DefaultTransportConfig = TransportConfig{
	ConnectTimeout:      2 * time.Second,
	ReadTimeout:         10 * time.Second,
	MaxIdleConns:        100,
	MaxIdleConnsPerHost: 10,
	IdleConnTimeout:     90 * time.Second,
}

// NewTransport builds an *http.Transport with connection pooling per
// upstream host and the configured connect timeout.
func NewTransport(cfg TransportConfig) *http.Transport {
	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}
}

// TransportPool hands out one *http.Transport per upstream host,
// reusing connections across requests to the same host.
type TransportPool struct {
	cfg TransportConfig

	mu         sync.RWMutex
	transports map[string]*http.Transport
}

// NewTransportPool builds a pool using cfg for every host it creates
// a transport for.
func NewTransportPool(cfg TransportConfig) *TransportPool {
	return &TransportPool{cfg: cfg, transports: make(map[string]*http.Transport)}
}

// Get returns the shared transport for host, creating one on first use.
func (p *TransportPool) Get(host string) *http.Transport {
	p.mu.RLock()
	t, ok := p.transports[host]
	p.mu.RUnlock()
	if ok {
		return t
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.transports[host]; ok {
		return t
	}
	t = NewTransport(p.cfg)
	p.transports[host] = t
	return t
}

// CloseIdleConnections releases idle connections on every pooled
// transport, used during graceful shutdown.
func (p *TransportPool) CloseIdleConnections() {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, t := range p.transports {
		t.CloseIdleConnections()
	}
}

// Package ratelimit implements the distributed token-bucket rate
// limiter: an in-process keyed limiter by default, or a Redis-backed
// variant for multi-instance deployments, both keyed by a
// configurable request dimension and both fail-open on backing-store
// outage.
package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config parameterizes one rate limiter instance.
type Config struct {
	Capacity      int           // burst capacity
	ReplenishRate float64       // tokens per second
	Key           string        // "ip" | "user" | "path" | "ip+path"
	UserHeader    string        // header read for Key == "user", default X-User-ID
	TTL           time.Duration // idle-bucket eviction, default 10m
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = 20
	}
	if c.ReplenishRate <= 0 {
		c.ReplenishRate = 10
	}
	if c.Key == "" {
		c.Key = "ip"
	}
	if c.UserHeader == "" {
		c.UserHeader = "X-User-ID"
	}
	if c.TTL <= 0 {
		c.TTL = 10 * time.Minute
	}
	return c
}

// Limiter is the in-process limiter: one rate.Limiter per resolved
// key, created lazily on first use and evicted once its bucket has
// refilled to full capacity (a full bucket means the key has been
// idle at least long enough to replenish the whole burst).
type Limiter struct {
	cfg   Config
	keyFn func(*http.Request) string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New builds an in-process Limiter and starts its idle-eviction loop.
func New(cfg Config) *Limiter {
	cfg = cfg.withDefaults()
	l := &Limiter{
		cfg:      cfg,
		keyFn:    KeyFunc(cfg.Key, cfg.UserHeader),
		limiters: make(map[string]*rate.Limiter),
	}
	go l.cleanupLoop()
	return l
}

// Result is the outcome of one Allow call.
type Result struct {
	Allowed   bool
	Remaining float64
	Capacity  int
	Replenish float64
}

// AllowCtx attempts to consume one token from the bucket for r's
// resolved key. The in-process Limiter never fails, so the error
// return is always nil; it exists so Limiter and RedisLimiter satisfy
// the same gate shape.
func (l *Limiter) AllowCtx(ctx context.Context, r *http.Request) (Result, error) {
	return l.Allow(r), nil
}

// Allow is the direct, error-free entry point used by tests and by
// AllowCtx. Remaining is read after the consume and may slightly
// overstate under a fast refill; it stays within [0, capacity].
func (l *Limiter) Allow(r *http.Request) Result {
	lim := l.getLimiter(l.keyFn(r))
	if !lim.Allow() {
		return Result{Allowed: false, Remaining: 0, Capacity: l.cfg.Capacity, Replenish: l.cfg.ReplenishRate}
	}
	remaining := lim.Tokens()
	if remaining < 0 {
		remaining = 0
	}
	if remaining > float64(l.cfg.Capacity) {
		remaining = float64(l.cfg.Capacity)
	}
	return Result{Allowed: true, Remaining: remaining, Capacity: l.cfg.Capacity, Replenish: l.cfg.ReplenishRate}
}

func (l *Limiter) getLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.cfg.ReplenishRate), l.cfg.Capacity)
		l.limiters[key] = lim
	}
	return lim
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.cfg.TTL)
	defer ticker.Stop()
	for range ticker.C {
		l.mu.Lock()
		// Remove limiters that have full tokens (idle)
		for key, lim := range l.limiters {
			if lim.Tokens() >= float64(l.cfg.Capacity) {
				delete(l.limiters, key)
			}
		}
		l.mu.Unlock()
	}
}

func setHeaders(w http.ResponseWriter, res Result) {
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(res.Remaining)))
	w.Header().Set("X-RateLimit-Replenish-Rate", strconv.FormatFloat(res.Replenish, 'f', -1, 64))
	w.Header().Set("X-RateLimit-Burst-Capacity", strconv.Itoa(res.Capacity))
}

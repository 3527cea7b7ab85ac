// Package routecompiler turns one route.Definition into a
// route.CompiledRoute by building its matcher and its fully
// ordered, immutable filter chain, injecting the default resilience
// filters (RequestRateLimiter, Retry, CircuitBreaker) whenever a
// definition omits them.
package routecompiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/neuragate/gateway/internal/breaker"
	"github.com/neuragate/gateway/internal/fallback"
	"github.com/neuragate/gateway/internal/gwerrors"
	"github.com/neuragate/gateway/internal/logging"
	"github.com/neuragate/gateway/internal/matcher"
	"github.com/neuragate/gateway/internal/proxy"
	"github.com/neuragate/gateway/internal/ratelimit"
	"github.com/neuragate/gateway/internal/retry"
	"github.com/neuragate/gateway/internal/route"
	"github.com/neuragate/gateway/internal/telemetry"
	"github.com/neuragate/gateway/internal/userfilter"
	"go.uber.org/zap"
)

// Compiler holds the shared, long-lived dependencies every compiled
// route's filter chain wires into: the breaker registry so routes
// sharing a breaker name observe the same state, the transport pool
// so routes to the same upstream host reuse connections, and an
// optional Redis client for the distributed rate limiter backend.
type Compiler struct {
	Breakers      *breaker.Manager
	TransportPool *proxy.TransportPool
	RedisClient   *redis.Client
	ReadTimeout   time.Duration
}

// New builds a Compiler. redisClient may be nil, in which case every
// rate limiter compiles to the in-process keyed bucket instead of
// the Redis-backed one.
func New(breakers *breaker.Manager, pool *proxy.TransportPool, redisClient *redis.Client, readTimeout time.Duration) *Compiler {
	if readTimeout <= 0 {
		readTimeout = proxy.DefaultTransportConfig.ReadTimeout
	}
	return &Compiler{Breakers: breakers, TransportPool: pool, RedisClient: redisClient, ReadTimeout: readTimeout}
}

// Compile builds the full CompiledRoute for def: predicate matcher,
// resilience filters (present or defaulted), user filters, and the
// final handler assembled in the fixed order RateLimiter -> Retry ->
// CircuitBreaker -> user filters -> Proxy.
func (c *Compiler) Compile(def *route.Definition) (*route.CompiledRoute, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}

	match, err := buildMatcher(def.Predicates)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", def.ID, err)
	}

	upstream, err := proxy.NewUpstream(def.URI, c.TransportPool, c.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", def.ID, err)
	}

	userFilters, err := buildUserFilters(def.Filters)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", def.ID, err)
	}

	retryPolicy := buildRetryPolicy(def.Filters)
	brk := c.buildBreaker(def)
	rateLimit := c.buildRateLimiter(def)

	core := coreHandler(def.ID, upstream, retryPolicy, brk, userFilters)
	handler := core
	if rateLimit != nil {
		handler = ratelimit.Middleware(rateLimit, handler)
	}

	return &route.CompiledRoute{
		ID:          def.ID,
		Order:       def.Order,
		Definition:  def,
		ContentHash: def.ContentHash(),
		Match:       match,
		Handler:     handler,
	}, nil
}

func buildMatcher(predicates []route.Predicate) (matcher.Predicate, error) {
	names := make([]string, len(predicates))
	argsList := make([]map[string]string, len(predicates))
	for i, p := range predicates {
		names[i] = p.Name
		argsList[i] = p.Args
	}
	return matcher.BuildAll(names, argsList)
}

func buildUserFilters(filters []route.Filter) ([]userfilter.Filter, error) {
	out := make([]userfilter.Filter, 0, len(filters))
	for _, f := range filters {
		switch f.Name {
		case "RequestRateLimiter", "Retry", "CircuitBreaker":
			continue
		}
		uf, err := userfilter.Build(f.Name, f.Args)
		if err != nil {
			return nil, err
		}
		out = append(out, uf)
	}
	return out, nil
}

func findFilter(filters []route.Filter, name string) (route.Filter, bool) {
	for _, f := range filters {
		if f.Name == name {
			return f, true
		}
	}
	return route.Filter{}, false
}

func buildRetryPolicy(filters []route.Filter) *retry.Policy {
	f, ok := findFilter(filters, "Retry")
	if !ok {
		return retry.DefaultPolicy()
	}
	maxRetries := atoiOr(f.Args["retries"], 3)
	base := durationOr(f.Args["base-backoff"], 500*time.Millisecond)
	multiplier := floatOr(f.Args["multiplier"], 2)
	statuses := intListOr(f.Args["statuses"], []int{502, 503})
	methods := stringListOr(f.Args["methods"], []string{"GET", "POST", "PUT", "DELETE"})
	return retry.New(maxRetries, base, multiplier, statuses, methods)
}

func (c *Compiler) buildBreaker(def *route.Definition) *breaker.Breaker {
	f, ok := findFilter(def.Filters, "CircuitBreaker")
	if !ok {
		return c.Breakers.GetOrCreate("dynamicRoute", breaker.Presets()["dynamicRoute"])
	}
	name := f.Args["name"]
	if name == "" {
		name = def.ID + "-breaker"
	}
	if preset, isPreset := breaker.Presets()[name]; isPreset {
		return c.Breakers.GetOrCreate(name, preset)
	}
	cfg := breaker.Config{
		Name:                     name,
		FailureRateThreshold:     floatOr(f.Args["failure-rate-threshold"], 0.6),
		WaitDurationInOpenState:  durationOr(f.Args["wait-duration-in-open-state"], 15*time.Second),
		SlidingWindowSize:        atoiOr(f.Args["sliding-window-size"], 15),
		MinimumNumberOfCalls:     atoiOr(f.Args["minimum-number-of-calls"], 5),
		PermittedCallsInHalfOpen: atoiOr(f.Args["permitted-calls-in-half-open"], 3),
		Fallback:                 orDefault(f.Args["fallback"], "/fallback/message"),
	}
	return c.Breakers.GetOrCreate(name, cfg)
}

// buildRateLimiter returns nil when neither an explicit
// RequestRateLimiter filter nor the rate-limit-enabled metadata flag
// asks for one; a nil return means the compiled route skips the
// middleware entirely rather than wrapping with a no-op gate.
func (c *Compiler) buildRateLimiter(def *route.Definition) func(r *http.Request) (ratelimit.Result, error) {
	f, hasFilter := findFilter(def.Filters, "RequestRateLimiter")
	if !hasFilter && def.Metadata["rate-limit-enabled"] != "true" {
		return nil
	}
	cfg := ratelimit.Config{
		Capacity:      atoiOr(f.Args["burst-capacity"], 20),
		ReplenishRate: floatOr(f.Args["replenish-rate"], 10),
		Key:           orDefault(f.Args["key"], "ip"),
		UserHeader:    orDefault(f.Args["user-header"], "X-User-ID"),
	}
	if c.RedisClient != nil {
		return ratelimit.FromRedisLimiter(ratelimit.NewRedisLimiter(c.RedisClient, cfg))
	}
	return ratelimit.FromLimiter(ratelimit.New(cfg))
}

// coreHandler assembles Retry -> CircuitBreaker -> user filters ->
// Proxy into one http.Handler. Retry and CircuitBreaker operate below
// the http.Handler level (they gate and observe individual upstream
// attempts), so user filters are applied directly to each attempt's
// request/response rather than wrapped as outer middleware.
func coreHandler(routeID string, upstream *proxy.Upstream, policy *retry.Policy, brk *breaker.Breaker, filters []userfilter.Filter) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		telemetry.FromContext(r.Context()).SetRouteID(routeID)

		// A retried attempt must be able to replay the request body,
		// so buffer it up front for methods the policy may retry;
		// everything else keeps the original streaming body.
		var bufferedBody []byte
		if policy.MaxRetries > 0 && policy.RetryableMethods[r.Method] && r.Body != nil && r.Body != http.NoBody {
			b, err := io.ReadAll(r.Body)
			r.Body.Close()
			if err != nil {
				gwerrors.New(http.StatusBadRequest, "failed to read request body").WriteJSON(w)
				return
			}
			bufferedBody = b
		}

		attempt := func(ctx context.Context) (*http.Response, error) {
			outReq := r.Clone(ctx)
			if bufferedBody != nil {
				outReq.Body = io.NopCloser(bytes.NewReader(bufferedBody))
				outReq.ContentLength = int64(len(bufferedBody))
			}
			for _, f := range filters {
				f.ApplyRequest(outReq)
			}
			resp, err := upstream.Attempt(ctx, outReq)
			if err == nil {
				for _, f := range filters {
					f.ApplyResponse(resp)
				}
			}
			return resp, err
		}

		result := retry.Execute(r.Context(), policy, r.Method, brk, attempt)
		telemetry.FromContext(r.Context()).SetRetryCount(result.RetryCount)

		if result.ShortCircuited {
			telemetry.FromContext(r.Context()).MarkCircuitBreakerTriggered()
			fallback.ByName(brk.Fallback(), "circuit breaker open").ServeHTTP(w, r)
			return
		}
		if result.Err != nil {
			logging.Warn("upstream attempt exhausted retries", zap.String("route", routeID), zap.Error(result.Err))
			gwErr := gwerrors.ErrBadGateway
			if errors.Is(result.Err, context.DeadlineExceeded) {
				gwErr = gwerrors.ErrGatewayTimeout
			}
			gwErr.WithDetails(result.Err.Error()).WriteJSON(w)
			return
		}
		proxy.WriteResponse(w, result.Response)
	})
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func floatOr(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func durationOr(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func intListOr(s string, def []int) []int {
	if s == "" {
		return def
	}
	var out []int
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				if n, err := strconv.Atoi(s[start:i]); err == nil {
					out = append(out, n)
				}
			}
			start = i + 1
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

func stringListOr(s string, def []string) []string {
	if s == "" {
		return def
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}

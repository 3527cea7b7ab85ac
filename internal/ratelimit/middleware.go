package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/neuragate/gateway/internal/gwerrors"
	"github.com/neuragate/gateway/internal/logging"
	"github.com/neuragate/gateway/internal/telemetry"
	"go.uber.org/zap"
)

// gateFunc adapts either backend (in-process or Redis) to one call
// shape the middleware can use uniformly.
type gateFunc func(r *http.Request) (Result, error)

// Middleware wraps next with rate limiting. On reject, downstream
// filters (retry, breaker, proxy) never run. On backing-store outage,
// the limiter fails open: the request proceeds, rate-limited is
// false, and a warning is logged.
func Middleware(allow gateFunc, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := allow(r)
		if err != nil {
			logging.Warn("rate limiter store unavailable, failing open", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}

		if !res.Allowed {
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.Header().Set("X-RateLimit-Replenish-Rate", strconv.FormatFloat(res.Replenish, 'f', -1, 64))
			w.Header().Set("X-RateLimit-Burst-Capacity", strconv.Itoa(res.Capacity))
			telemetry.FromContext(r.Context()).MarkRateLimited()
			gwerrors.ErrTooManyRequests.WriteJSON(w)
			return
		}

		setHeaders(w, res)
		next.ServeHTTP(w, r)
	})
}

// FromLimiter adapts an in-process Limiter to a gateFunc.
func FromLimiter(l *Limiter) gateFunc {
	return func(r *http.Request) (Result, error) { return l.Allow(r), nil }
}

// FromRedisLimiter adapts a RedisLimiter to a gateFunc.
func FromRedisLimiter(rl *RedisLimiter) gateFunc {
	return func(r *http.Request) (Result, error) { return rl.AllowCtx(r.Context(), r) }
}

package ratelimit

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// tokenBucketScript atomically refills and consumes from a Redis hash
// holding {tokens, last_refill_ms}, mirroring the in-process Limiter's
// algorithm so either backend observes identical semantics.
// Returns {allowed (0/1), remaining_floor}.
var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local replenish = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local data = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(data[1])
local last = tonumber(data[2])
if tokens == nil then
    tokens = capacity
    last = now
end

local elapsed = math.max(0, (now - last) / 1000.0)
tokens = math.min(capacity, tokens + elapsed * replenish)

local allowed = 0
if tokens >= 1 then
    allowed = 1
    tokens = tokens - 1
end

redis.call('HMSET', key, 'tokens', tokens, 'last_refill', now)
redis.call('PEXPIRE', key, ttl)

return {allowed, math.floor(tokens)}
`)

// RedisLimiter is the distributed token-bucket backend for
// multi-instance deployments, sharing bucket state across processes.
type RedisLimiter struct {
	client *redis.Client
	cfg    Config
	keyFn  func(*http.Request) string
	prefix string
}

// NewRedisLimiter builds a Redis-backed limiter.
func NewRedisLimiter(client *redis.Client, cfg Config) *RedisLimiter {
	cfg = cfg.withDefaults()
	return &RedisLimiter{client: client, cfg: cfg, keyFn: KeyFunc(cfg.Key, cfg.UserHeader), prefix: "gw:rl:"}
}

// AllowCtx runs the atomic refill-and-consume script. A non-nil error
// means the store was unreachable; callers must fail open on it.
func (rl *RedisLimiter) AllowCtx(ctx context.Context, r *http.Request) (Result, error) {
	key := rl.prefix + rl.keyFn(r)
	opCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
	defer cancel()

	nowMs := time.Now().UnixMilli()
	ttlMs := rl.cfg.TTL.Milliseconds()

	out, err := tokenBucketScript.Run(opCtx, rl.client, []string{key}, rl.cfg.Capacity, rl.cfg.ReplenishRate, nowMs, ttlMs).Int64Slice()
	if err != nil {
		return Result{}, err
	}
	return Result{
		Allowed:   out[0] == 1,
		Remaining: float64(out[1]),
		Capacity:  rl.cfg.Capacity,
		Replenish: rl.cfg.ReplenishRate,
	}, nil
}

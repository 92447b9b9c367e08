package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"walletbot/internal/config"
	"walletbot/internal/stores/redis"

	goredis "github.com/redis/go-redis/v9"
)

// token bucket in one round trip; state is a hash {tok, ts} per key
var luaTokenBucket = goredis.NewScript(`
-- KEYS[1] = key
-- ARGV[1] = now_ms
-- ARGV[2] = refill_per_sec (integer)
-- ARGV[3] = burst (integer)
-- ARGV[4] = ttl_seconds
local key   = KEYS[1]
local now   = tonumber(ARGV[1])
local rate  = tonumber(ARGV[2])
local burst = tonumber(ARGV[3])
local ttl   = tonumber(ARGV[4])

local last_ms = tonumber(redis.call('HGET', key, 'ts') or now)
local tokens  = tonumber(redis.call('HGET', key, 'tok') or burst)

if now > last_ms then
  local delta = (now - last_ms) / 1000.0
  tokens = math.min(burst, tokens + (delta * rate))
end

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('HSET', key, 'tok', tostring(tokens), 'ts', tostring(now))
redis.call('EXPIRE', key, ttl)

return {allowed, math.floor(tokens)}
`)

const defaultTTL = 2 * time.Minute

// Limiter redis token bucket shared by the bot (per chat) and the HTTP API (per ip/subject)
type Limiter struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func New(rdb *redis.Client, prefix string) (*Limiter, error) {
	if rdb == nil {
		return nil, errors.New("redis client is required to the rate limiter")
	}
	if prefix == "" {
		prefix = "rl:"
	}

	return &Limiter{rdb: rdb, prefix: prefix, now: time.Now}, nil
}

// Allow takes one token from bucket key. On redis failure it lets the request through and returns the error.
func (l *Limiter) Allow(ctx context.Context, key string, b config.RateBucket) (bool, error) {
	ttl := b.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	res, err := luaTokenBucket.Run(ctx, l.rdb, []string{l.prefix + key},
		l.now().UnixMilli(),
		b.RefillPerSec,
		b.Burst,
		int(ttl.Seconds()),
	).Result()
	if err != nil {
		return true, fmt.Errorf("rate limit script failed for %s: %w", key, err)
	}

	arr, ok := res.([]any)
	if !ok || len(arr) == 0 {
		return true, fmt.Errorf("unexpected rate limit reply %T", res)
	}

	allowed, _ := arr[0].(int64)
	return allowed == 1, nil
}

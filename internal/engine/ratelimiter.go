package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter implements a per-key sliding window rate limiter using Redis.
// Uses a sorted set where each member is a unique request ID with a timestamp score.
// A Lua script atomically cleans expired entries, checks the count, and adds new entries.
type RateLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	script      *redis.Script
	seq         atomic.Uint64
}

var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('EXPIRE', key, math.ceil(window / 1000) + 1)
    return 1
else
    return 0
end
`)

func NewRateLimiter(redisClient *redis.Client, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		logger:      logger,
		script:      slidingWindowScript,
	}
}

func rlKey(scope, id string) string {
	return fmt.Sprintf("rl:%s:%s", scope, id)
}

// Allow reports whether another request for id fits in the window.
// A limit of zero or less disables limiting. Redis failures allow the request.
func (rl *RateLimiter) Allow(ctx context.Context, scope, id string, limit int, window time.Duration) bool {
	if limit <= 0 || window <= 0 {
		return true
	}

	key := rlKey(scope, id)
	now := time.Now()
	member := fmt.Sprintf("%d:%d", now.UnixNano(), rl.seq.Add(1))

	result, err := rl.script.Run(ctx, rl.redisClient, []string{key},
		now.UnixMilli(), window.Milliseconds(), limit, member,
	).Int64()
	if err != nil {
		rl.logger.Error("rate limiter script failed", "error", err, "scope", scope)
		return true
	}

	if result == 0 {
		rl.logger.Debug("rate limited", "scope", scope, "key", id, "limit", limit)
		return false
	}
	return true
}

package httpx

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const (
	redisRateKeyPrefix = "supaconsole:ratelimit:"
	redisRateTimeout   = 250 * time.Millisecond
)

// chargeScript increments the window counter and starts its expiry on the
// first hit. It returns {count, pttl}.
var chargeScript = redis.NewScript(`
local used = redis.call("INCR", KEYS[1])
if used == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {used, redis.call("PTTL", KEYS[1])}
`)

type redisRateLimiter struct {
	client redis.UniversalClient
	logger *slog.Logger
	now    func() time.Time
}

// NewRedisRateLimiter shares budgets across API replicas through Redis.
func NewRedisRateLimiter(ctx context.Context, addr, password string, db int, logger *slog.Logger) (RateLimiter, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	return &redisRateLimiter{client: client, logger: logger, now: time.Now}, nil
}

// Allow lets the request through when Redis misbehaves; an unavailable
// limiter must not take the API down with it.
func (l *redisRateLimiter) Allow(ctx context.Context, key string, budget Budget) RateDecision {
	if budget.Limit <= 0 {
		return RateDecision{Allowed: true}
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), redisRateTimeout)
	defer cancel()

	win := budget.window()
	res, err := chargeScript.Run(ctx, l.client, []string{redisRateKeyPrefix + key}, win.Milliseconds()).Int64Slice()
	if err != nil || len(res) != 2 {
		l.logger.Error("redis rate limiter failed", "key_scope", rateMetricKey(key), "error", err)
		return RateDecision{Allowed: true}
	}
	used, ttl := int(res[0]), time.Duration(res[1])*time.Millisecond
	if ttl <= 0 {
		ttl = win
	}
	return RateDecision{
		Allowed:   used <= budget.Limit,
		Remaining: budget.Limit - used,
		Reset:     l.now().Add(ttl),
	}
}

func (l *redisRateLimiter) Close() {
	_ = l.client.Close()
}

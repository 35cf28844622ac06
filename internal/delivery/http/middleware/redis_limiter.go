package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
)

const rateLimitKeyPrefix = "facto:ratelimit:"

// RedisLimiter is a fixed-window limiter backed by Redis, for deployments
// with more than one backend replica behind one rate budget.
type RedisLimiter struct {
	client      *goredis.Client
	maxRequests int
	window      time.Duration
}

var _ LimiterStore = (*RedisLimiter)(nil)

// NewRedisLimiter creates a Redis-backed limiter allowing maxRequests per
// window per client IP.
func NewRedisLimiter(client *goredis.Client, maxRequests int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client:      client,
		maxRequests: maxRequests,
		window:      window,
	}
}

// Allow increments the client's window counter, setting the expiry when
// the window opens. INCR+EXPIRE in a pipeline keeps this one round trip.
func (r *RedisLimiter) Allow(c *gin.Context, key string) (bool, time.Duration, error) {
	ctx := c.Request.Context()
	redisKey := rateLimitKeyPrefix + key

	pipe := r.client.TxPipeline()
	count := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, r.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, fmt.Errorf("redis: rate limit window: %w", err)
	}

	if count.Val() > int64(r.maxRequests) {
		ttl, err := r.client.TTL(ctx, redisKey).Result()
		if err != nil || ttl < 0 {
			ttl = r.window
		}
		return false, ttl, nil
	}
	return true, 0, nil
}

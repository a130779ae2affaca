package middleware

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Counter increments a request counter that expires after its window
type Counter interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

type redisCounter struct {
	rdb *redis.Client
}

// RedisCounter counts requests in Redis with INCR + EXPIRE in one pipeline
func RedisCounter(rdb *redis.Client) Counter {
	return &redisCounter{rdb: rdb}
}

func (r *redisCounter) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	pipe := r.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	// Keep the counter a little past its window so late requests still see it
	pipe.Expire(ctx, key, 2*window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

var timeNow = time.Now

// RateLimitKey returns the counter key for a client in the second containing now
func RateLimitKey(clientIP string, now time.Time) string {
	return fmt.Sprintf("rl:ip:%s:%d", clientIP, now.Unix())
}

// RateLimitMiddleware limits each client IP to perSecond requests in a fixed
// one-second window. Counter failures let the request through.
func RateLimitMiddleware(counter Counter, perSecond int) fiber.Handler {
	return func(c *fiber.Ctx) error {
		now := timeNow()
		key := RateLimitKey(c.IP(), now)

		count, err := counter.Incr(c.UserContext(), key, time.Second)
		if err != nil {
			log.Printf("Rate limit counter unavailable: %v", err)
			return c.Next()
		}

		c.Set("X-RateLimit-Limit-Second", strconv.Itoa(perSecond))

		if count > int64(perSecond) {
			c.Set("X-RateLimit-Remaining-Second", "0")
			c.Set("X-RateLimit-Reset-Second", strconv.FormatInt(now.Unix()+1, 10))
			c.Set("Retry-After", "1")

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "rate_limit_exceeded",
				"message":     "Too many requests per second",
				"limit":       perSecond,
				"retry_after": 1,
			})
		}

		c.Set("X-RateLimit-Remaining-Second", strconv.FormatInt(int64(perSecond)-count, 10))
		return c.Next()
	}
}

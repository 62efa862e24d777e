package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/PayLink/internal/http/util"
	"go.uber.org/zap"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	KeyPrefix   string
}

// DefaultRateLimitConfig returns default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 100,
		Window:      time.Minute,
		KeyPrefix:   "paylink:ratelimit",
	}
}

// RateLimit creates a fixed-window rate limiter keyed by client IP and
// backed by Redis. It fails open when Redis is unavailable.
func RateLimit(redisClient *redis.Client, config RateLimitConfig, logger *zap.Logger) fiber.Handler {
	defaults := DefaultRateLimitConfig()
	if config.MaxRequests <= 0 {
		config.MaxRequests = defaults.MaxRequests
	}
	if config.Window <= 0 {
		config.Window = defaults.Window
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = defaults.KeyPrefix
	}

	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		key := config.KeyPrefix + ":" + util.ClientIP(c)

		count, err := redisClient.Incr(ctx, key).Result()
		if err != nil {
			logger.Error("rate limit redis error", zap.Error(err))
			return c.Next()
		}

		// First hit in the window starts the expiry clock.
		if count == 1 {
			if err := redisClient.Expire(ctx, key, config.Window).Err(); err != nil {
				logger.Warn("rate limit expire failed", zap.String("key", key), zap.Error(err))
			}
		}

		reset := time.Now().Add(config.Window)
		if ttl, err := redisClient.PTTL(ctx, key).Result(); err == nil && ttl > 0 {
			reset = time.Now().Add(ttl)
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(config.MaxRequests))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(max(0, config.MaxRequests-int(count))))
		c.Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if count > int64(config.MaxRequests) {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "rate limit exceeded",
			})
		}

		return c.Next()
	}
}

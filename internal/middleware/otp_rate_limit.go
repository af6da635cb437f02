package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const otpRateLimitPrefix = "rl:otp:"

// PhoneCanonicalizer maps the spellings of one number to a single key.
type PhoneCanonicalizer interface {
	IsValid(input string) bool
	ToCanonical(input string) string
}

// OTPRateLimit caps code requests per canonical phone (or IP when no phone
// is sent) per minute. Without Redis, or when Redis fails, requests pass
// through.
func OTPRateLimit(cache *redis.Client, phones PhoneCanonicalizer, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 3
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		var req struct {
			Phone string `json:"phone"`
		}
		_ = c.BodyParser(&req)
		subject := strings.Join(strings.Fields(req.Phone), "")
		if subject != "" && phones != nil && phones.IsValid(subject) {
			subject = phones.ToCanonical(subject)
		}
		if subject == "" {
			subject = c.IP()
		}
		key := otpRateLimitPrefix + subject
		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			c.Set(fiber.HeaderRetryAfter, "60")
			return fiber.NewError(http.StatusTooManyRequests, "Too many OTP requests, please try again in a minute")
		}
		return c.Next()
	}
}

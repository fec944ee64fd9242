package ratelimit

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	DefaultMax       = 60
	DefaultWindow    = time.Minute
	DefaultKeyPrefix = "rate:"
)

// Logger is satisfied by *slog.Logger
type Logger interface {
	Warn(msg string, args ...any)
}

type Config struct {
	// Next skips the limiter when it returns true
	Next func(c *fiber.Ctx) bool

	// Max requests allowed per key inside Window
	Max    int
	Window time.Duration

	KeyPrefix string
	// KeyFunc defaults to the client IP
	KeyFunc func(c *fiber.Ctx) string

	// Counter defaults to a MemoryCounter
	Counter Counter
	Logger  Logger

	// LimitReached builds the 429 response
	LimitReached fiber.Handler
}

func configDefault(config ...Config) Config {
	var cfg Config
	if len(config) > 0 {
		cfg = config[0]
	}

	if cfg.Max <= 0 {
		cfg.Max = DefaultMax
	}

	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}

	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}

	if cfg.KeyFunc == nil {
		cfg.KeyFunc = func(c *fiber.Ctx) string {
			return c.IP()
		}
	}

	if cfg.Counter == nil {
		cfg.Counter = NewMemoryCounter()
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.LimitReached == nil {
		cfg.LimitReached = func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"detail": "Too many requests",
			})
		}
	}

	return cfg
}

// New returns a fixed window limiter. When the counter fails the request
// is let through and the failure logged.
func New(config ...Config) fiber.Handler {
	cfg := configDefault(config...)
	retryAfter := strconv.Itoa(int(cfg.Window.Seconds()))

	return func(c *fiber.Ctx) error {
		if cfg.Next != nil && cfg.Next(c) {
			return c.Next()
		}

		key := cfg.KeyPrefix + cfg.KeyFunc(c)

		count, err := cfg.Counter.Increment(c.UserContext(), key, cfg.Window)
		if err != nil {
			cfg.Logger.Warn("rate limit counter failed", "key", key, "error", err)
			return c.Next()
		}

		if count > int64(cfg.Max) {
			c.Set(fiber.HeaderRetryAfter, retryAfter)
			return cfg.LimitReached(c)
		}

		return c.Next()
	}
}

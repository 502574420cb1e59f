package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/resetkit/config"
	"github.com/tech-arch1tect/resetkit/services/logging"
	"go.uber.org/zap"
)

type Config struct {
	Store          Store
	Rate           int
	Period         time.Duration
	CountMode      config.CountingMode
	KeyGenerator   func(c echo.Context) string
	OnLimitReached func(c echo.Context) error
	Logger         *logging.Service
}

// Middleware limits requests per key. When the store is unreachable the request is let
// through and a warning logged.
func Middleware(cfg *Config) echo.MiddlewareFunc {
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}

	if cfg.Rate <= 0 {
		cfg.Rate = 5
	}

	if cfg.Period <= 0 {
		cfg.Period = 15 * time.Minute
	}

	if cfg.KeyGenerator == nil {
		cfg.KeyGenerator = DefaultKeyGenerator
	}

	if cfg.OnLimitReached == nil {
		cfg.OnLimitReached = DefaultOnLimitReached
	}

	if cfg.CountMode == "" {
		cfg.CountMode = config.CountAll
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			key := cfg.KeyGenerator(c)

			if cfg.CountMode == config.CountAll {
				count, resetTime, err := cfg.Store.Increment(ctx, key, cfg.Period)
				if err != nil {
					cfg.warn("rate limit store unavailable", key, err)
					return next(c)
				}
				setHeaders(c, cfg.Rate, cfg.Rate-count, resetTime)
				if count > cfg.Rate {
					return cfg.OnLimitReached(c)
				}
				return next(c)
			}

			// Reserve a slot before the handler; give it back when the response is not counted.
			count, resetTime, err := cfg.Store.Increment(ctx, key, cfg.Period)
			if err != nil {
				cfg.warn("rate limit store unavailable", key, err)
				return next(c)
			}

			if count > cfg.Rate {
				cfg.release(ctx, key)
				setHeaders(c, cfg.Rate, 0, resetTime)
				return cfg.OnLimitReached(c)
			}

			setHeaders(c, cfg.Rate, cfg.Rate-count, resetTime)

			handlerErr := next(c)

			if !shouldCount(cfg.CountMode, responseStatus(c, handlerErr)) {
				cfg.release(ctx, key)
			}

			return handlerErr
		}
	}
}

func (cfg *Config) release(ctx context.Context, key string) {
	if err := cfg.Store.Decrement(context.WithoutCancel(ctx), key); err != nil {
		cfg.warn("failed to release rate limit slot", key, err)
	}
}

func (cfg *Config) warn(msg, key string, err error) {
	if cfg.Logger != nil {
		cfg.Logger.Warn(msg, zap.String("key", key), zap.Error(err))
	}
}

func shouldCount(mode config.CountingMode, status int) bool {
	switch mode {
	case config.CountFailures:
		return status >= 400
	case config.CountSuccess:
		return status < 400
	default:
		return true
	}
}

// responseStatus is the status the client will see, including errors echo has not yet
// written.
func responseStatus(c echo.Context, err error) int {
	if c.Response().Committed || err == nil {
		return c.Response().Status
	}
	if he, ok := err.(*echo.HTTPError); ok {
		return he.Code
	}
	return http.StatusInternalServerError
}

func setHeaders(c echo.Context, limit, remaining int, resetTime time.Time) {
	h := c.Response().Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(max(remaining, 0)))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(resetTime.Unix(), 10))
}

func DefaultKeyGenerator(c echo.Context) string {
	realIP := c.RealIP()

	if realIP == "" || realIP == "unknown" {
		realIP = "fallback"
	}

	return "rate_limit:" + realIP
}

func DefaultOnLimitReached(c echo.Context) error {
	return c.JSON(http.StatusTooManyRequests, map[string]any{
		"errors": []string{"Too many requests. Please try again later."},
	})
}

package ratelimit

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/resetkit/config"
	"github.com/tech-arch1tect/resetkit/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const redisKeyPrefix = "resetkit:"

type StoreParams struct {
	fx.In
	Lifecycle fx.Lifecycle `optional:"true"`
	Config    *config.Config
	Redis     *redis.Client    `optional:"true"`
	Logger    *logging.Service `optional:"true"`
}

func ProvideRateLimitStore(p StoreParams) (Store, error) {
	switch p.Config.RateLimit.Store {
	case "redis":
		if p.Redis == nil {
			return nil, fmt.Errorf("redis rate limit store requires a redis client")
		}
		if p.Logger != nil {
			p.Logger.Info("using redis rate limit store")
		}
		return NewRedisStore(p.Redis, redisKeyPrefix), nil
	case "memory", "":
		store := NewMemoryStore()
		if p.Lifecycle != nil {
			p.Lifecycle.Append(fx.Hook{
				OnStop: func(context.Context) error {
					return store.Close()
				},
			})
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported rate limit store: %s", p.Config.RateLimit.Store)
	}
}

// FromConfig builds the middleware described by cfg, or a pass-through one when rate
// limiting is disabled.
func FromConfig(cfg *config.RateLimitConfig, store Store, logger *logging.Service) echo.MiddlewareFunc {
	if !cfg.Enabled {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	if logger != nil {
		logger.Info("rate limiting enabled",
			zap.Int("rate", cfg.Rate),
			zap.Duration("period", cfg.Period),
			zap.String("count_mode", string(cfg.CountMode)))
	}

	return Middleware(&Config{
		Store:     store,
		Rate:      cfg.Rate,
		Period:    cfg.Period,
		CountMode: cfg.CountMode,
		Logger:    logger,
	})
}

var Module = fx.Module("ratelimit",
	fx.Provide(ProvideRateLimitStore),
)

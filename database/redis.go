package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/resetkit/config"
	"github.com/tech-arch1tect/resetkit/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProvideRedis connects to redis and verifies the connection with PING.
func ProvideRedis(ctx context.Context, cfg config.RedisConfig, logger *logging.Service) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.Error("failed to connect to redis", zap.String("address", cfg.Address), zap.Error(err))
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("connected to redis", zap.String("address", cfg.Address), zap.Int("db", cfg.DB))
	return client, nil
}

// ProvideRedisFx returns a nil client when no component is configured to use redis.
func ProvideRedisFx(lc fx.Lifecycle, cfg *config.Config, logger *logging.Service) (*redis.Client, error) {
	if !cfg.RedisRequired() {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Redis.DialTimeout+time.Second)
	defer cancel()

	client, err := ProvideRedis(ctx, cfg.Redis, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

package ledger

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/tech-arch1tect/resetkit/config"
	"github.com/tech-arch1tect/resetkit/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type StoreParams struct {
	fx.In

	Config *config.Config
	Logger *logging.Service
	DB     *gorm.DB      `optional:"true"`
	Redis  *redis.Client `optional:"true"`
}

func ProvideStore(p StoreParams) (Store, error) {
	switch p.Config.Reset.Store {
	case "database":
		if p.DB == nil {
			return nil, fmt.Errorf("reset store %q requires a database", p.Config.Reset.Store)
		}
		p.Logger.Info("using database reset token store")
		return NewGormStore(p.DB), nil
	case "redis":
		if p.Redis == nil {
			return nil, fmt.Errorf("reset store %q requires a redis client", p.Config.Reset.Store)
		}
		p.Logger.Info("using redis reset token store", zap.String("key_prefix", p.Config.Reset.RedisKeyPrefix))
		return NewRedisStore(p.Redis, p.Config.Reset.RedisKeyPrefix, p.Config.Reset.SweepGrace), nil
	default:
		return nil, fmt.Errorf("unsupported reset store: %s", p.Config.Reset.Store)
	}
}

type MetricsParams struct {
	fx.In

	Registerer prometheus.Registerer `optional:"true"`
}

func ProvideMetrics(p MetricsParams) (*Metrics, error) {
	return NewMetrics(p.Registerer)
}

func ProvideLedger(store Store, cfg *config.Config, metrics *Metrics, logger *logging.Service) (*Ledger, error) {
	return New(store, cfg.Reset, logger.Named("ledger"), WithMetrics(metrics))
}

func registerSweeper(lc fx.Lifecycle, l *Ledger, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			l.StartSweeper(cfg.Reset.SweepInterval)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return l.StopSweeper(ctx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(ProvideStore),
	fx.Provide(ProvideMetrics),
	fx.Provide(ProvideLedger),
	fx.Invoke(registerSweeper),
)

package logging

import (
	"context"

	"github.com/tech-arch1tect/resetkit/config"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewLoggingService),
	fx.Invoke(registerSync),
)

func NewLoggingService(cfg *config.Config) (*Service, error) {
	return NewService(Config{
		Level:      LogLevel(cfg.Log.Level),
		Format:     cfg.Log.Format,
		OutputPath: cfg.Log.Output,
	})
}

func registerSync(lc fx.Lifecycle, logger *Service) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// stdout/stderr return EINVAL on sync; nothing useful to report.
			_ = logger.Sync()
			return nil
		},
	})
}

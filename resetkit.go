package resetkit

import (
	"github.com/tech-arch1tect/resetkit/app"
	"github.com/tech-arch1tect/resetkit/config"
	"github.com/tech-arch1tect/resetkit/internal/options"
	"github.com/tech-arch1tect/resetkit/services/mail"
	"go.uber.org/fx"
)

type App = app.App

func New(opts ...options.Option) (*App, error) {
	return app.New(opts...)
}

func WithConfig(cfg *config.Config) options.Option {
	return options.WithConfig(cfg)
}

func WithModels(models ...any) options.Option {
	return options.WithModels(models...)
}

func WithMailClient(client mail.MailClient) options.Option {
	return options.WithMailClient(client)
}

func WithFxOptions(opts ...fx.Option) options.Option {
	return options.WithFxOptions(opts...)
}

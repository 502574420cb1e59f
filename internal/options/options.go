package options

import (
	"github.com/tech-arch1tect/resetkit/config"
	"github.com/tech-arch1tect/resetkit/services/mail"
	"go.uber.org/fx"
)

type Options struct {
	Config         *config.Config
	Models         []any
	MailClient     mail.MailClient
	ExtraFxOptions []fx.Option
}

type Option func(*Options)

func WithConfig(cfg *config.Config) Option {
	return func(opts *Options) {
		opts.Config = cfg
	}
}

func WithModels(models ...any) Option {
	return func(opts *Options) {
		opts.Models = append(opts.Models, models...)
	}
}

func WithMailClient(client mail.MailClient) Option {
	return func(opts *Options) {
		opts.MailClient = client
	}
}

func WithFxOptions(fxOpts ...fx.Option) Option {
	return func(opts *Options) {
		opts.ExtraFxOptions = append(opts.ExtraFxOptions, fxOpts...)
	}
}

func Apply(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

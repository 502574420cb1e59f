package app

import "github.com/tech-arch1tect/resetkit/internal/options"

// New builds an App from functional options. Without WithConfig the configuration is read
// from the environment.
func New(opts ...options.Option) (*App, error) {
	o := options.Apply(opts...)

	b := NewApp()
	if o.Config != nil {
		b.WithConfig(o.Config)
	}
	if len(o.Models) > 0 {
		b.WithModels(o.Models...)
	}
	if o.MailClient != nil {
		b.WithMailClient(o.MailClient)
	}
	b.WithFxOptions(o.ExtraFxOptions...)

	return b.Build()
}

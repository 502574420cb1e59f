package app

import (
	"errors"
	"fmt"

	"github.com/tech-arch1tect/resetkit/config"
	"github.com/tech-arch1tect/resetkit/database"
	resethandlers "github.com/tech-arch1tect/resetkit/handlers/passwordreset"
	"github.com/tech-arch1tect/resetkit/metrics"
	"github.com/tech-arch1tect/resetkit/middleware/ratelimit"
	"github.com/tech-arch1tect/resetkit/server"
	"github.com/tech-arch1tect/resetkit/services/accounts"
	"github.com/tech-arch1tect/resetkit/services/ledger"
	"github.com/tech-arch1tect/resetkit/services/logging"
	"github.com/tech-arch1tect/resetkit/services/mail"
	"github.com/tech-arch1tect/resetkit/services/passwordreset"
	"github.com/tech-arch1tect/resetkit/session"
	"go.uber.org/fx"
)

type AppBuilder struct {
	config     *config.Config
	models     []any
	mailClient mail.MailClient
	fxOptions  []fx.Option
	errors     []error
}

func NewApp() *AppBuilder {
	return &AppBuilder{}
}

func (b *AppBuilder) WithConfig(cfg *config.Config) *AppBuilder {
	if cfg == nil {
		b.addError("config cannot be nil")
		return b
	}
	b.config = cfg
	return b
}

func (b *AppBuilder) WithAutoConfig() *AppBuilder {
	cfg := &config.Config{}
	if err := config.LoadConfig(cfg); err != nil {
		b.addError(fmt.Sprintf("failed to load config: %v", err))
		return b
	}
	b.config = cfg
	return b
}

// WithModels migrates extra models alongside the accounts and reset token tables.
func (b *AppBuilder) WithModels(models ...any) *AppBuilder {
	b.models = append(b.models, models...)
	return b
}

// WithMailClient replaces the SMTP client, for tests and alternative transports.
func (b *AppBuilder) WithMailClient(client mail.MailClient) *AppBuilder {
	if client == nil {
		b.addError("mail client cannot be nil")
		return b
	}
	b.mailClient = client
	return b
}

func (b *AppBuilder) WithFxOptions(opts ...fx.Option) *AppBuilder {
	b.fxOptions = append(b.fxOptions, opts...)
	return b
}

func (b *AppBuilder) Build() (*App, error) {
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("configuration errors: %w", errors.Join(b.errors...))
	}

	if b.config == nil {
		b.WithAutoConfig()
		if len(b.errors) > 0 {
			return nil, errors.Join(b.errors...)
		}
	} else if err := config.Validate(b.config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &App{config: b.config}

	options := b.buildFxOptions()
	options = append(options, fx.Populate(&app.logger, &app.server, &app.db, &app.ledger))

	app.fx = fx.New(options...)
	if err := app.fx.Err(); err != nil {
		return nil, fmt.Errorf("failed to assemble application: %w", err)
	}

	return app, nil
}

func (b *AppBuilder) addError(msg string) {
	b.errors = append(b.errors, errors.New(msg))
}

func (b *AppBuilder) migrations() *database.ModelsOption {
	models := []any{&accounts.Account{}}
	if b.config.Reset.Store == "database" {
		models = append(models, &ledger.ResetToken{})
	}
	return database.WithModels(append(models, b.models...)...)
}

func (b *AppBuilder) buildFxOptions() []fx.Option {
	options := []fx.Option{
		config.NewProvider(b.config),
		fx.Supply(b.migrations()),
		fx.NopLogger,
	}

	if b.mailClient != nil {
		client := b.mailClient
		options = append(options, fx.Provide(func() mail.MailClient { return client }))
	}

	options = append(options,
		logging.Module,
		metrics.Module,
		database.Module,
		ledger.Module,
		accounts.Module,
		mail.Module,
		passwordreset.Module,
		session.Module,
		ratelimit.Module,
		server.Module,
		resethandlers.Module,
	)

	return append(options, b.fxOptions...)
}

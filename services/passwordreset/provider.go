package passwordreset

import (
	"context"

	"github.com/tech-arch1tect/resetkit/config"
	"github.com/tech-arch1tect/resetkit/services/accounts"
	"github.com/tech-arch1tect/resetkit/services/ledger"
	"github.com/tech-arch1tect/resetkit/services/logging"
	"github.com/tech-arch1tect/resetkit/services/mail"
	"go.uber.org/fx"
)

func ProvidePasswordResetService(cfg *config.Config, directory *accounts.Service, tokens *ledger.Ledger, mailer *mail.Service, logger *logging.Service) (*Service, error) {
	return NewService(cfg, directory, tokens, mailer, logger.Named("passwordreset"))
}

func registerDeliveryDrain(lc fx.Lifecycle, s *Service) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return s.Wait(ctx)
		},
	})
}

var Module = fx.Options(
	fx.Provide(ProvidePasswordResetService),
	fx.Invoke(registerDeliveryDrain),
)

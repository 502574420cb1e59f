package accounts

import (
	"github.com/tech-arch1tect/resetkit/config"
	"github.com/tech-arch1tect/resetkit/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideAccountService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	return NewService(cfg, db, logger.Named("accounts"))
}

var Module = fx.Options(
	fx.Provide(ProvideAccountService),
)

package mail

import (
	"github.com/tech-arch1tect/resetkit/config"
	"github.com/tech-arch1tect/resetkit/services/logging"
	"go.uber.org/fx"
)

type Params struct {
	fx.In
	Config *config.Config
	Logger *logging.Service
	Client MailClient `optional:"true"`
}

// ProvideMailService uses the supplied MailClient when there is one, otherwise an SMTP
// client built from MAIL_*.
func ProvideMailService(p Params) (*Service, error) {
	if p.Client != nil {
		return NewServiceWithClient(&p.Config.Mail, p.Logger.Named("mail"), p.Client)
	}
	return NewService(&p.Config.Mail, p.Logger.Named("mail"))
}

var Module = fx.Options(
	fx.Provide(ProvideMailService),
)

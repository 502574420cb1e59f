package passwordreset

import (
	"github.com/tech-arch1tect/resetkit/config"
	"github.com/tech-arch1tect/resetkit/middleware/ratelimit"
	"github.com/tech-arch1tect/resetkit/openapi"
	"github.com/tech-arch1tect/resetkit/server"
	"github.com/tech-arch1tect/resetkit/services/logging"
	"github.com/tech-arch1tect/resetkit/services/passwordreset"
	"github.com/tech-arch1tect/resetkit/session"
	"go.uber.org/fx"
)

const docsPrefix = "/openapi"

func ProvideHandler(resets *passwordreset.Service, logger *logging.Service) *Handler {
	return NewHandler(resets, logger)
}

func ProvideOpenAPI(cfg *config.Config) *openapi.OpenAPI {
	return openapi.New(cfg.App.Name, "1.0.0").
		Description("Password reset API").
		Server(cfg.App.URL, "application").
		Tag("password", "Password reset")
}

type RoutesParams struct {
	fx.In
	Config  *config.Config
	Server  *server.Server
	Handler *Handler
	Store   ratelimit.Store
	Doc     *openapi.OpenAPI
	Session *session.Manager `optional:"true"`
	Logger  *logging.Service `optional:"true"`
}

func registerRoutes(p RoutesParams) {
	e := p.Server.Echo()
	e.Use(session.Middleware(p.Session))

	limiter := ratelimit.FromConfig(&p.Config.RateLimit, p.Store, p.Logger)
	RegisterRoutes(e, p.Handler, limiter, p.Doc)
	p.Doc.Register(e, docsPrefix)
}

var Module = fx.Module("passwordreset_handlers",
	fx.Provide(ProvideHandler),
	fx.Provide(ProvideOpenAPI),
	fx.Invoke(registerRoutes),
)

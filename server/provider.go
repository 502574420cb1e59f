package server

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tech-arch1tect/resetkit/config"
	"github.com/tech-arch1tect/resetkit/services/logging"
	"go.uber.org/fx"
)

type Params struct {
	fx.In
	Config   *config.Config
	Logger   *logging.Service     `optional:"true"`
	Registry *prometheus.Registry `optional:"true"`
}

func ProvideServer(p Params) (*Server, error) {
	return New(p.Config, p.Logger, p.Registry)
}

func registerLifecycle(lc fx.Lifecycle, srv *Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return srv.Start()
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(ProvideServer),
	fx.Invoke(registerLifecycle),
)

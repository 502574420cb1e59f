package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tech-arch1tect/resetkit/config"
	"github.com/tech-arch1tect/resetkit/metrics"
	"github.com/tech-arch1tect/resetkit/services/logging"
	"go.uber.org/zap"
)

const (
	healthPath = "/healthz"
	bodyLimit  = "64K"
)

type Server struct {
	echo   *echo.Echo
	cfg    *config.Config
	logger *logging.Service
}

// New builds the echo instance with the shared middleware stack. registry may be nil, in
// which case no metrics are collected.
func New(cfg *config.Config, logger *logging.Service, registry *prometheus.Registry) (*Server, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	if len(cfg.Server.TrustedProxies) > 0 {
		trust, err := trustOptions(cfg.Server.TrustedProxies)
		if err != nil {
			return nil, err
		}
		e.IPExtractor = echo.ExtractIPFromXFFHeader(trust...)
	} else {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(bodyLimit))
	if logger != nil {
		e.Use(logging.RequestLogger(logger, healthPath, cfg.Metrics.Path))
	}
	if cfg.Server.RequestTimeout > 0 {
		e.Use(middleware.ContextTimeout(cfg.Server.RequestTimeout))
	}

	if cfg.Metrics.Enabled && registry != nil {
		mw, err := echoprometheus.MiddlewareConfig{
			Namespace:  metrics.Namespace,
			Subsystem:  "http",
			Registerer: registry,
			Skipper: func(c echo.Context) bool {
				path := c.Request().URL.Path
				return path == cfg.Metrics.Path || path == healthPath
			},
		}.ToMiddleware()
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics middleware: %w", err)
		}
		e.Use(mw)
		e.GET(cfg.Metrics.Path, echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: registry}))
	}

	e.GET(healthPath, func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return &Server{
		echo:   e,
		cfg:    cfg,
		logger: logger,
	}, nil
}

func trustOptions(proxies []string) ([]echo.TrustOption, error) {
	opts := []echo.TrustOption{echo.TrustLoopback(false), echo.TrustLinkLocal(false), echo.TrustPrivateNet(false)}
	for _, proxy := range proxies {
		_, ipNet, err := net.ParseCIDR(proxy)
		if err != nil {
			ip := net.ParseIP(proxy)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", proxy)
			}
			bits := 32
			if ip.To4() == nil {
				bits = 128
			}
			ipNet = &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}
		}
		opts = append(opts, echo.TrustIPRange(ipNet))
	}
	return opts, nil
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Server.Host, s.cfg.Server.Port)
}

// Start listens on the configured address and serves in the background. Listen errors are
// returned; serve errors after that are logged.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.Addr(), err)
	}
	s.echo.Listener = listener

	if s.logger != nil {
		s.logger.Info("starting resetkit server", zap.String("addr", listener.Addr().String()))
	}

	go func() {
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			if s.logger != nil {
				s.logger.Error("server stopped unexpectedly", zap.Error(err))
			}
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.logger != nil {
		s.logger.Info("shutting down resetkit server")
	}
	return s.echo.Shutdown(ctx)
}

func (s *Server) Echo() *echo.Echo {
	return s.echo
}

package session

import (
	"context"
	"fmt"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/tech-arch1tect/resetkit/config"
	"github.com/tech-arch1tect/resetkit/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Manager struct {
	*scs.SessionManager
	config config.SessionConfig
}

type ManagerParams struct {
	fx.In
	Lifecycle fx.Lifecycle `optional:"true"`
	Config    *config.Config
	DB        *gorm.DB         `optional:"true"`
	Logger    *logging.Service `optional:"true"`
}

// ProvideSessionManager returns nil when sessions are disabled.
func ProvideSessionManager(p ManagerParams) (*Manager, error) {
	cfg := p.Config.Session
	if !cfg.Enabled {
		return nil, nil
	}

	sessionManager := scs.New()

	switch cfg.Store {
	case "memory", "":
		sessionManager.Store = NewMemoryStore()
	case "database":
		store, err := NewDatabaseStore(p.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to create database session store: %w", err)
		}
		sessionManager.Store = store
		if p.Lifecycle != nil {
			p.Lifecycle.Append(fx.Hook{
				OnStop: func(context.Context) error {
					store.StopCleanup()
					return nil
				},
			})
		}
	default:
		return nil, fmt.Errorf("unsupported session store: %s", cfg.Store)
	}

	sessionManager.Lifetime = cfg.MaxAge
	sessionManager.IdleTimeout = cfg.MaxAge
	sessionManager.Cookie.Name = cfg.Name
	sessionManager.Cookie.Path = cfg.Path
	sessionManager.Cookie.Domain = cfg.Domain
	sessionManager.Cookie.Secure = cfg.Secure
	sessionManager.Cookie.HttpOnly = cfg.HttpOnly
	sessionManager.Cookie.SameSite = parseSameSite(cfg.SameSite)

	if p.Logger != nil {
		p.Logger.Info("session manager initialized",
			zap.String("store", cfg.Store),
			zap.String("cookie", cfg.Name),
			zap.Duration("max_age", cfg.MaxAge))
	}

	return &Manager{
		SessionManager: sessionManager,
		config:         cfg,
	}, nil
}

func parseSameSite(mode string) http.SameSite {
	switch mode {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

var Module = fx.Module("session",
	fx.Provide(ProvideSessionManager),
)

package app

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/resetkit/config"
	"github.com/tech-arch1tect/resetkit/server"
	"github.com/tech-arch1tect/resetkit/services/ledger"
	"github.com/tech-arch1tect/resetkit/services/logging"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const shutdownTimeout = 30 * time.Second

type App struct {
	fx     *fx.App
	config *config.Config
	logger *logging.Service
	server *server.Server
	db     *gorm.DB
	ledger *ledger.Ledger
}

func (a *App) Start(ctx context.Context) error {
	return a.fx.Start(ctx)
}

func (a *App) Stop(ctx context.Context) error {
	err := a.fx.Stop(ctx)
	if err != nil && a.logger != nil {
		a.logger.Error("failed to stop application gracefully", zap.Error(err))
	}
	return err
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() {
	if err := a.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	if a.logger != nil {
		a.logger.Info("received shutdown signal, stopping gracefully", zap.Stringer("signal", sig))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.Stop(ctx); err != nil {
		os.Exit(1)
	}
}

func (a *App) Server() *echo.Echo {
	if a.server == nil {
		return nil
	}
	return a.server.Echo()
}

func (a *App) DB() *gorm.DB {
	return a.db
}

func (a *App) Ledger() *ledger.Ledger {
	return a.ledger
}

func (a *App) Logger() *logging.Service {
	return a.logger
}

func (a *App) Config() *config.Config {
	return a.config
}

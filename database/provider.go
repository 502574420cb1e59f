package database

import (
	"fmt"

	"github.com/tech-arch1tect/resetkit/config"
	"github.com/tech-arch1tect/resetkit/services/logging"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type ModelsOption struct {
	models []any
}

func WithModels(models ...any) *ModelsOption {
	return &ModelsOption{models: models}
}

func (o *ModelsOption) Append(models ...any) *ModelsOption {
	if o == nil {
		return WithModels(models...)
	}
	return &ModelsOption{models: append(append([]any{}, o.models...), models...)}
}

func ProvideDatabase(cfg config.Config, modelsOpt *ModelsOption, logger *logging.Service) (*gorm.DB, error) {
	var dialector gorm.Dialector

	switch cfg.Database.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.Database.DSN)
	case "postgres", "postgresql":
		dialector = postgres.Open(cfg.Database.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres, mysql)", cfg.Database.Driver)
	}

	// TranslateError maps unique violations to gorm.ErrDuplicatedKey, which the
	// ledger relies on to detect a concurrent issue for the same account.
	db, err := gorm.Open(dialector, &gorm.Config{TranslateError: true})
	if err != nil {
		logger.Error("failed to connect to database", zap.String("driver", cfg.Database.Driver), zap.Error(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access connection pool: %w", err)
	}

	if cfg.Database.Driver == "sqlite" {
		// SQLite allows a single writer, and each :memory: connection is its own database.
		sqlDB.SetMaxOpenConns(1)
	} else {
		if cfg.Database.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
		}
		if cfg.Database.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
		}
		if cfg.Database.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
		}
	}

	if cfg.Database.AutoMigrate && modelsOpt != nil && len(modelsOpt.models) > 0 {
		if err := db.AutoMigrate(modelsOpt.models...); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to auto-migrate models: %w", err)
		}
		logger.Info("database migrated", zap.Int("models", len(modelsOpt.models)))
	}

	logger.Info("database connected", zap.String("driver", cfg.Database.Driver))

	return db, nil
}

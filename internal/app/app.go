// Package app wires configuration, storage and services for the server
// and the command line tool.
package app

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"toolhub/internal/adapters/cache"
	"toolhub/internal/adapters/persistence/models"
	"toolhub/internal/adapters/persistence/repositories"
	"toolhub/internal/config"
	"toolhub/internal/core/services"
	"toolhub/internal/pkg/jwt"
)

// App holds the opened resources
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Cache    *cache.RedisCache // nil when Redis is not configured or down
	Notifier *services.NotificationService
	Services *services.Container
}

// Open connects the database, migrates it and builds the services.
// Redis is optional: when it cannot be reached reports are computed on
// every request.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		return nil, err
	}

	if err := models.AutoMigrate(db); err != nil {
		_ = config.CloseDatabase()
		return nil, err
	}
	zap.L().Info("database migration completed")

	a := &App{
		Config:   cfg,
		DB:       db,
		Notifier: services.NewNotificationService(cfg.Notify.WebhookURL, time.Duration(cfg.Notify.TimeoutSec)*time.Second),
	}

	opts := services.Options{
		FinePerDay:            cfg.Loan.FinePerDay,
		ImportDefaultPassword: cfg.Import.DefaultPassword,
		ImportMaxRows:         cfg.Import.MaxRows,
		ReportTTL:             time.Duration(cfg.Redis.SummaryTTL) * time.Second,
		Notifier:              a.Notifier,
	}

	if cfg.Redis.Addr != "" {
		rc, err := cache.Connect(ctx, cfg.Redis)
		if err != nil {
			zap.L().Warn("report cache disabled", zap.Error(err))
		} else {
			a.Cache = rc
			opts.Cache = rc
			zap.L().Info("report cache connected", zap.String("addr", cfg.Redis.Addr))
		}
	}

	tokens := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.RefreshSecret, cfg.JWT.AccessTokenMins, cfg.JWT.RefreshTokenDays)
	a.Services = services.NewContainer(repositories.NewRegistry(db), tokens, opts)
	return a, nil
}

// Close releases the cache and the database
func (a *App) Close() {
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			zap.L().Warn("closing cache", zap.Error(err))
		}
	}
	if err := config.CloseDatabase(); err != nil {
		zap.L().Warn("closing database", zap.Error(err))
	}
}

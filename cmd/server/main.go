package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	_ "toolhub/docs" // Swagger docs
	"toolhub/internal/adapters/http/handlers"
	"toolhub/internal/adapters/http/middleware"
	"toolhub/internal/adapters/http/routes"
	"toolhub/internal/app"
	"toolhub/internal/config"
	"toolhub/internal/core/services"
	"toolhub/internal/pkg/logger"
)

// @title ToolHub API
// @version 1.0
// @description Equipment lending: loans, return reconciliation and spreadsheet import

// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "toolhub:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, flush, err := logger.Init(cfg.AppMode, os.Getenv("LOG_VERBOSE") != "")
	if err != nil {
		return err
	}
	defer flush()

	if !cfg.EnvLoaded {
		log.Info(".env not found, using process environment")
	}

	ctx := context.Background()
	a, err := app.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.IsDev() {
		if err := config.NewSeeder(a.DB).Run(); err != nil {
			log.Warn("seeding failed", zap.Error(err))
		}
	} else if err := config.SeedMasterData(a.DB); err != nil {
		log.Warn("failed to seed master data", zap.Error(err))
	}

	svc := a.Services
	if cfg.Scheduler.Enabled {
		scheduler := services.NewCronService(svc.Reports, svc.Auth, a.Notifier, svc.FinePerDay)
		if err := scheduler.Register(cfg.Scheduler.OverdueCron); err != nil {
			return err
		}
		scheduler.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			scheduler.Stop(stopCtx)
		}()
	}

	fiberApp := fiber.New(fiber.Config{
		AppName:      "ToolHub API " + routes.Version,
		ErrorHandler: middleware.CustomErrorHandler,
		BodyLimit:    10 * 1024 * 1024, // spreadsheet uploads
		JSONEncoder:  jsoniter.ConfigCompatibleWithStandardLibrary.Marshal,
		JSONDecoder:  jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal,
	})

	middleware.Setup(fiberApp, cfg)

	var pinger handlers.Pinger
	if a.Cache != nil {
		pinger = a.Cache
	}
	routes.Setup(fiberApp, a.DB, cfg, svc, pinger)

	go gracefulShutdown(fiberApp, log)

	log.Info("server starting", zap.String("port", cfg.Port), zap.String("mode", cfg.AppMode))
	if err := fiberApp.Listen(":" + cfg.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// gracefulShutdown stops accepting requests on SIGINT or SIGTERM
func gracefulShutdown(app *fiber.App, log *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	if err := app.ShutdownWithTimeout(15 * time.Second); err != nil {
		log.Error("error during shutdown", zap.Error(err))
	}
	log.Info("server stopped gracefully")
}

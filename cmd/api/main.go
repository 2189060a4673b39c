package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"

	"github.com/vmelnikov/notiflow/internal/config"
	"github.com/vmelnikov/notiflow/internal/handler"
	"github.com/vmelnikov/notiflow/internal/infra/postgresql"
	"github.com/vmelnikov/notiflow/internal/infra/postgresql/migrations"
	"github.com/vmelnikov/notiflow/internal/observability"
	"github.com/vmelnikov/notiflow/internal/queue"
	"github.com/vmelnikov/notiflow/internal/repository"
	"github.com/vmelnikov/notiflow/internal/service"
	"github.com/vmelnikov/notiflow/internal/transport"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatal("failed to initialize logger", zap.Error(err))
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgresql.NewPostgres(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("postgres initialization failed", zap.Error(err))
	}

	if err := migrations.Migrate(db); err != nil {
		logger.Fatal("database migrations failed", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal("postgres underlying db init failed", zap.Error(err))
	}
	defer sqlDB.Close()

	broker, err := queue.NewRabbitMQ(cfg.QueueURL, cfg.JobsQueue, cfg.DLQQueue)
	if err != nil {
		logger.Fatal("rabbitmq initialization failed", zap.Error(err))
	}
	defer broker.Close()

	publisher := queue.NewRabbitMQPublisher(broker)

	jobs := queue.NewJobPublisher(publisher, broker, cfg.JobsQueue, logger)
	jobs.Start(ctx)
	defer jobs.Stop()

	metrics := observability.NewMetrics()

	events, err := service.NewEventService(jobs, logger)
	if err != nil {
		logger.Fatal("event service initialization failed", zap.Error(err))
	}
	events.SetMetrics(metrics)

	app := fiber.New(fiber.Config{
		ErrorHandler: transport.ErrorHandler(logger),
	})

	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	handler.RegisterHealthRoutes(app, sqlDB, broker)

	if err := handler.RegisterEventRoutes(app, events); err != nil {
		logger.Fatal("event routes registration failed", zap.Error(err))
	}

	if err := handler.RegisterTemplateRoutes(app, repository.NewGormTemplateRepo(db)); err != nil {
		logger.Fatal("template routes registration failed", zap.Error(err))
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down api")
		if err := app.Shutdown(); err != nil {
			logger.Error("api shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("notiflow api started", zap.Int("port", cfg.APIPort))

	if err := app.Listen(fmt.Sprintf(":%d", cfg.APIPort)); err != nil {
		logger.Fatal("api server failed", zap.Error(err))
	}

	logger.Info("notiflow api stopped")
}

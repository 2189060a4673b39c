package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vmelnikov/notiflow/internal/config"
	"github.com/vmelnikov/notiflow/internal/infra/postgresql"
	"github.com/vmelnikov/notiflow/internal/infra/postgresql/migrations"
	"github.com/vmelnikov/notiflow/internal/observability"
	"github.com/vmelnikov/notiflow/internal/queue"
	"github.com/vmelnikov/notiflow/internal/repository"
	"github.com/vmelnikov/notiflow/internal/service"
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

	scheduler, err := service.NewCampaignScheduler(
		repository.NewGormCampaignRepo(db),
		events,
		cfg.SchedulerInterval(),
		logger,
	)
	if err != nil {
		logger.Fatal("campaign scheduler initialization failed", zap.Error(err))
	}
	scheduler.SetMetrics(metrics)

	logger.Info("notiflow scheduler started",
		zap.Duration("interval", cfg.SchedulerInterval()),
	)

	if err := scheduler.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("scheduler stopped with error", zap.Error(err))
	}

	logger.Info("notiflow scheduler stopped")
}

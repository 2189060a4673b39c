package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vmelnikov/notiflow/internal/config"
	"github.com/vmelnikov/notiflow/internal/contacts"
	"github.com/vmelnikov/notiflow/internal/infra/postgresql"
	"github.com/vmelnikov/notiflow/internal/infra/postgresql/migrations"
	infraredis "github.com/vmelnikov/notiflow/internal/infra/redis"
	"github.com/vmelnikov/notiflow/internal/observability"
	"github.com/vmelnikov/notiflow/internal/queue"
	"github.com/vmelnikov/notiflow/internal/ratelimit"
	"github.com/vmelnikov/notiflow/internal/repository"
	"github.com/vmelnikov/notiflow/internal/sender"
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
	consumer := queue.NewRabbitMQConsumer(broker, cfg.ConsumerGroup, cfg.ConsumerPrefetch, logger)

	deadLetters := queue.NewDeadLetterPublisher(publisher, broker, cfg.DLQQueue, logger)
	deadLetters.Start(ctx)
	defer deadLetters.Stop()

	var rateLimiter ratelimit.RateLimiter = ratelimit.NewNopRateLimiter()
	if cfg.RedisURL != "" {
		rdb, err := infraredis.NewRedis(cfg.RedisURL)
		if err != nil {
			logger.Fatal("redis initialization failed", zap.Error(err))
		}
		defer rdb.Close()

		rateLimiter, err = infraredis.NewRateLimiter(rdb, cfg.RateLimitPerSec)
		if err != nil {
			logger.Fatal("rate limiter initialization failed", zap.Error(err))
		}
	}

	resolver, err := contacts.NewHTTPResolver(cfg.AuthBaseURL)
	if err != nil {
		logger.Fatal("contact resolver initialization failed", zap.Error(err))
	}

	fallbackResolver, err := contacts.NewFallbackResolver(resolver, logger)
	if err != nil {
		logger.Fatal("fallback resolver initialization failed", zap.Error(err))
	}

	registry, err := sender.NewRegistry(logger)
	if err != nil {
		logger.Fatal("sender registry initialization failed", zap.Error(err))
	}

	delays, err := cfg.BackoffDelays()
	if err != nil {
		logger.Fatal("invalid retry backoff", zap.Error(err))
	}

	metrics := observability.NewMetrics()

	deliveries := repository.NewGormDeliveryRepo(db)

	ledger, err := service.NewLedgerWriter(deliveries, logger)
	if err != nil {
		logger.Fatal("ledger writer initialization failed", zap.Error(err))
	}

	retryEngine, err := service.NewRetryEngine(
		repository.NewGormAttemptRepo(db),
		deadLetters,
		ledger,
		cfg.MaxAttempts,
		delays,
		logger,
	)
	if err != nil {
		logger.Fatal("retry engine initialization failed", zap.Error(err))
	}
	retryEngine.SetMetrics(metrics)

	orchestrator, err := service.NewOrchestrator(
		deliveries,
		repository.NewGormTemplateRepo(db),
		fallbackResolver,
		registry,
		rateLimiter,
		retryEngine,
		ledger,
		cfg.MaxAttempts,
		cfg.MaxSendDelay(),
		logger,
	)
	if err != nil {
		logger.Fatal("orchestrator initialization failed", zap.Error(err))
	}
	orchestrator.SetMetrics(metrics)

	worker, err := service.NewWorkerService(consumer, orchestrator, cfg.JobsQueue, cfg.WorkerConcurrency, logger)
	if err != nil {
		logger.Fatal("worker initialization failed", zap.Error(err))
	}
	worker.SetMetrics(metrics)

	logger.Info("notiflow worker started",
		zap.String("queue", cfg.JobsQueue),
		zap.Int("concurrency", cfg.WorkerConcurrency),
	)

	if err := worker.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("worker stopped with error", zap.Error(err))
	}

	logger.Info("notiflow worker stopped")
}

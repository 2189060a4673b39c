package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vmelnikov/notiflow/internal/observability"
	"github.com/vmelnikov/notiflow/internal/queue"
)

const minWorkerConcurrency = 1

// WorkerService consumes the jobs queue and hands each message to the
// orchestrator.
type WorkerService struct {
	consumer     queue.Consumer
	orchestrator *Orchestrator
	queueName    string
	concurrency  int
	logger       *zap.Logger
	metrics      *observability.Metrics
}

func NewWorkerService(
	consumer queue.Consumer,
	orchestrator *Orchestrator,
	queueName string,
	concurrency int,
	logger *zap.Logger,
) (*WorkerService, error) {
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if queueName == "" {
		return nil, fmt.Errorf("queue name is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &WorkerService{
		consumer:     consumer,
		orchestrator: orchestrator,
		queueName:    queueName,
		concurrency:  concurrency,
		logger:       logger,
	}, nil
}

func (s *WorkerService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Start consumes the jobs queue until context cancellation.
func (s *WorkerService) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < s.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			s.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", s.queueName),
			)

			err := s.consumer.Consume(groupCtx, s.queueName, s.processMessage)
			if err != nil {
				s.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.String("queue", s.queueName),
					zap.Error(err),
				)
				return err
			}

			s.logger.Info("worker stopped",
				zap.Int("workerId", workerID),
				zap.String("queue", s.queueName),
			)
			return nil
		})
	}

	return g.Wait()
}

// processMessage returns an error only when the context is gone, so the
// broker redelivers the in-flight job to the next worker. Processing
// failures are logged and acked; the ledger and the dead letter queue
// already hold the outcome.
func (s *WorkerService) processMessage(ctx context.Context, msg queue.JobMessage) error {
	job, ok := msg.ToJob()
	if !ok {
		s.logger.Warn("job message required channel normalization",
			zap.String("jobId", msg.JobID),
			zap.String("rawChannel", msg.Channel),
			zap.String("channel", job.Channel.String()),
		)
	}

	ctx = observability.WithJobID(ctx, job.JobID)
	logger := observability.WithContextLogger(s.logger, ctx)

	channelName := job.Channel.String()
	if s.metrics != nil {
		s.metrics.IncWorkerInFlight(channelName)
		defer s.metrics.DecWorkerInFlight(channelName)
	}

	if err := s.orchestrator.Handle(ctx, job); err != nil {
		if ctx.Err() != nil {
			return err
		}

		logger.Error("job processing failed", zap.Error(err))
	}

	return nil
}

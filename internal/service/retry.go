package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vmelnikov/notiflow/internal/domain"
	"github.com/vmelnikov/notiflow/internal/observability"
	"github.com/vmelnikov/notiflow/internal/repository"
)

// DeadLetter accepts jobs whose delivery attempts are exhausted.
type DeadLetter interface {
	Publish(ctx context.Context, job domain.NotificationJob, reason string)
}

// AttemptFunc performs one delivery attempt.
type AttemptFunc func(ctx context.Context, attemptNumber int) error

// RetryEngine drives the attempt loop for a single job: it numbers attempts,
// records each one in the audit trail, persists the running attempt count to
// the ledger after every failure that leaves budget, sleeps the configured
// backoff between failures, and dead-letters the job when the budget runs
// out.
type RetryEngine struct {
	attempts    repository.AttemptRepository
	deadLetter  DeadLetter
	ledger      *LedgerWriter
	maxAttempts int
	delays      []time.Duration
	logger      *zap.Logger
	metrics     *observability.Metrics
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewRetryEngine(
	attempts repository.AttemptRepository,
	deadLetter DeadLetter,
	ledger *LedgerWriter,
	maxAttempts int,
	delays []time.Duration,
	logger *zap.Logger,
) (*RetryEngine, error) {
	if attempts == nil {
		return nil, fmt.Errorf("attempt repository is required")
	}
	if deadLetter == nil {
		return nil, fmt.Errorf("dead letter publisher is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger writer is required")
	}
	if maxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be at least 1")
	}
	if len(delays) == 0 {
		return nil, fmt.Errorf("at least one backoff delay is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetryEngine{
		attempts:    attempts,
		deadLetter:  deadLetter,
		ledger:      ledger,
		maxAttempts: maxAttempts,
		delays:      delays,
		logger:      logger,
		now:         time.Now,
		sleep:       sleepWithContext,
	}, nil
}

func (e *RetryEngine) SetMetrics(metrics *observability.Metrics) {
	if e == nil {
		return
	}
	e.metrics = metrics
}

// Run executes delivery attempts for a job, starting after any attempts a
// previous incarnation of the worker already made. It returns the total
// attempt count and the last attempt error, nil on success. A context error
// is returned as-is so the caller can abandon the job without a ledger write.
func (e *RetryEngine) Run(ctx context.Context, job domain.NotificationJob, existingAttempts int, attempt AttemptFunc) (int, error) {
	if existingAttempts < 0 {
		existingAttempts = 0
	}

	if existingAttempts >= e.maxAttempts {
		err := fmt.Errorf("attempt budget already exhausted after %d attempts", existingAttempts)
		e.deadLetter.Publish(ctx, job, err.Error())
		return existingAttempts, err
	}

	var lastErr error
	for n := existingAttempts + 1; n <= e.maxAttempts; n++ {
		lastErr = attempt(ctx, n)

		if ctx.Err() != nil {
			return n, ctx.Err()
		}

		if recordErr := e.recordAttempt(ctx, job.JobID, n, lastErr); recordErr != nil {
			e.logger.Error("failed to record delivery attempt",
				zap.String("jobId", job.JobID),
				zap.Int("attempt", n),
				zap.Error(recordErr),
			)
		}

		if lastErr == nil {
			return n, nil
		}

		e.logger.Warn("delivery attempt failed",
			zap.String("jobId", job.JobID),
			zap.Int("attempt", n),
			zap.Int("maxAttempts", e.maxAttempts),
			zap.Error(lastErr),
		)

		if n < e.maxAttempts {
			// Persist the count before the backoff gap so a crashed
			// worker does not reset the budget on redelivery.
			if markErr := e.ledger.MarkRetrying(ctx, job, n, lastErr); markErr != nil {
				e.logger.Error("failed to persist retry progress",
					zap.String("jobId", job.JobID),
					zap.Int("attempt", n),
					zap.Error(markErr),
				)
			}

			if err := e.sleep(ctx, e.delayAfter(n)); err != nil {
				return n, err
			}
		}
	}

	e.deadLetter.Publish(ctx, job, lastErr.Error())
	if e.metrics != nil {
		e.metrics.IncDeadLetterPublish()
	}

	return e.maxAttempts, lastErr
}

// delayAfter returns the backoff to sleep once attempt n has failed. The
// last configured delay repeats when attempts outnumber delays.
func (e *RetryEngine) delayAfter(n int) time.Duration {
	idx := n - 1
	if idx >= len(e.delays) {
		idx = len(e.delays) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return e.delays[idx]
}

func (e *RetryEngine) recordAttempt(ctx context.Context, jobID string, attemptNumber int, attemptErr error) error {
	var errText *string
	if attemptErr != nil {
		value := attemptErr.Error()
		errText = &value
	}

	return e.attempts.Append(ctx, &domain.DeliveryAttempt{
		ID:            uuid.NewString(),
		JobID:         jobID,
		AttemptNumber: attemptNumber,
		Error:         errText,
		CreatedAt:     e.now().UTC(),
	})
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

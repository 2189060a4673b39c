package queue

import (
	"context"
	"sync"
	"time"

	"github.com/vmelnikov/notiflow/internal/domain"
	"go.uber.org/zap"
)

const (
	startMaxAttempts = 10
	startRetryDelay  = time.Second
)

// DeadLetterPublisher routes exhausted jobs to the dead-letter queue.
//
// Delivery is best-effort: when the broker cannot be reached at startup or at
// publish time the publisher degrades to logging the payload, so a DLQ outage
// never blocks the pipeline or crashes the worker.
type DeadLetterPublisher struct {
	publisher Publisher
	pinger    Pinger
	queue     string
	logger    *zap.Logger

	mu      sync.Mutex
	enabled bool

	startAttempts int
	startDelay    time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
}

func NewDeadLetterPublisher(publisher Publisher, pinger Pinger, queue string, logger *zap.Logger) *DeadLetterPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DeadLetterPublisher{
		publisher:     publisher,
		pinger:        pinger,
		queue:         queue,
		logger:        logger,
		startAttempts: startMaxAttempts,
		startDelay:    startRetryDelay,
		sleep:         sleepWithContext,
	}
}

// Start probes the broker with a bounded number of attempts. If the broker is
// unreachable after all attempts the publisher stays disabled and publishes
// are logged instead.
func (p *DeadLetterPublisher) Start(ctx context.Context) {
	if p == nil {
		return
	}
	if p.publisher == nil || p.pinger == nil {
		p.logger.Warn("dead-letter publisher has no broker, running in degraded mode")
		return
	}

	for attempt := 1; attempt <= p.startAttempts; attempt++ {
		err := p.pinger.Ping(ctx)
		if err == nil {
			p.mu.Lock()
			p.enabled = true
			p.mu.Unlock()
			p.logger.Info("dead-letter publisher started", zap.String("queue", p.queue))
			return
		}

		p.logger.Warn("dead-letter publisher start attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("maxAttempts", p.startAttempts),
			zap.Error(err),
		)

		if attempt == p.startAttempts {
			break
		}
		if err := p.sleep(ctx, p.startDelay); err != nil {
			return
		}
	}

	p.logger.Warn("dead-letter publisher giving up on broker, running in degraded mode",
		zap.String("queue", p.queue),
	)
}

// Stop disables the publisher. The underlying broker connection is owned by
// the caller and closed separately.
func (p *DeadLetterPublisher) Stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.enabled = false
	p.mu.Unlock()
}

// Enabled reports whether the publisher currently targets the broker.
func (p *DeadLetterPublisher) Enabled() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Publish emits the job plus its failure reason to the DLQ. Failures are
// logged, never raised.
func (p *DeadLetterPublisher) Publish(ctx context.Context, job domain.NotificationJob, reason string) {
	if p == nil {
		return
	}

	msg := DeadLetterMessage{
		JobMessage:    FromJob(job),
		FailureReason: reason,
	}

	if !p.Enabled() {
		p.logger.Warn("dead-letter publisher degraded, logging payload instead",
			zap.String("jobId", job.JobID),
			zap.String("queue", p.queue),
			zap.String("failureReason", reason),
		)
		return
	}

	if err := p.publisher.PublishDeadLetter(ctx, p.queue, msg); err != nil {
		p.logger.Error("failed to publish to dead-letter queue, payload logged instead",
			zap.String("jobId", job.JobID),
			zap.String("queue", p.queue),
			zap.String("failureReason", reason),
			zap.Error(err),
		)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

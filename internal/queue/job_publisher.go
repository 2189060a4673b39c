package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobPublisher puts notification jobs on the inbound jobs queue with the same
// degraded-mode behavior as the dead-letter publisher: a broker outage turns
// publishes into logged no-ops instead of request failures.
type JobPublisher struct {
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

func NewJobPublisher(publisher Publisher, pinger Pinger, queue string, logger *zap.Logger) *JobPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &JobPublisher{
		publisher:     publisher,
		pinger:        pinger,
		queue:         queue,
		logger:        logger,
		startAttempts: startMaxAttempts,
		startDelay:    startRetryDelay,
		sleep:         sleepWithContext,
	}
}

func (p *JobPublisher) Start(ctx context.Context) {
	if p == nil {
		return
	}
	if p.publisher == nil || p.pinger == nil {
		p.logger.Warn("job publisher has no broker, running in degraded mode")
		return
	}

	for attempt := 1; attempt <= p.startAttempts; attempt++ {
		err := p.pinger.Ping(ctx)
		if err == nil {
			p.mu.Lock()
			p.enabled = true
			p.mu.Unlock()
			p.logger.Info("job publisher started", zap.String("queue", p.queue))
			return
		}

		p.logger.Warn("job publisher start attempt failed",
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

	p.logger.Warn("job publisher giving up on broker, running in degraded mode",
		zap.String("queue", p.queue),
	)
}

func (p *JobPublisher) Stop() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.enabled = false
	p.mu.Unlock()
}

func (p *JobPublisher) Enabled() bool {
	if p == nil {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// PublishJob enqueues one job message. In degraded mode the payload is logged
// and the call succeeds, preserving queue-accept semantics for callers.
func (p *JobPublisher) PublishJob(ctx context.Context, msg JobMessage) error {
	if p == nil {
		return nil
	}

	if !p.Enabled() {
		p.logger.Warn("job publisher degraded, logging payload instead",
			zap.String("jobId", msg.JobID),
			zap.String("queue", p.queue),
			zap.String("templateCode", msg.TemplateCode),
		)
		return nil
	}

	if err := p.publisher.Publish(ctx, p.queue, msg); err != nil {
		p.logger.Error("failed to publish job, payload logged instead",
			zap.String("jobId", msg.JobID),
			zap.String("queue", p.queue),
			zap.Error(err),
		)
	}
	return nil
}

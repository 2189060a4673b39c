package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vmelnikov/notiflow/internal/contacts"
	"github.com/vmelnikov/notiflow/internal/domain"
	"github.com/vmelnikov/notiflow/internal/observability"
	"github.com/vmelnikov/notiflow/internal/ratelimit"
	"github.com/vmelnikov/notiflow/internal/render"
	"github.com/vmelnikov/notiflow/internal/repository"
	"github.com/vmelnikov/notiflow/internal/sender"
)

// Orchestrator runs a job through the delivery pipeline: deduplication,
// expiration, delayed send, the retry loop, and the terminal ledger write.
type Orchestrator struct {
	deliveries   repository.DeliveryRepository
	templates    repository.TemplateRepository
	contacts     contacts.Resolver
	senders      *sender.Registry
	rateLimiter  ratelimit.RateLimiter
	retry        *RetryEngine
	ledger       *LedgerWriter
	maxAttempts  int
	maxSendDelay time.Duration
	logger       *zap.Logger
	metrics      *observability.Metrics
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
}

func NewOrchestrator(
	deliveries repository.DeliveryRepository,
	templates repository.TemplateRepository,
	resolver contacts.Resolver,
	senders *sender.Registry,
	rateLimiter ratelimit.RateLimiter,
	retry *RetryEngine,
	ledger *LedgerWriter,
	maxAttempts int,
	maxSendDelay time.Duration,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if deliveries == nil {
		return nil, fmt.Errorf("delivery repository is required")
	}
	if templates == nil {
		return nil, fmt.Errorf("template repository is required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("contact resolver is required")
	}
	if senders == nil {
		return nil, fmt.Errorf("sender registry is required")
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.NewNopRateLimiter()
	}
	if retry == nil {
		return nil, fmt.Errorf("retry engine is required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger writer is required")
	}
	if maxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be at least 1")
	}
	if maxSendDelay <= 0 {
		maxSendDelay = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		deliveries:   deliveries,
		templates:    templates,
		contacts:     resolver,
		senders:      senders,
		rateLimiter:  rateLimiter,
		retry:        retry,
		ledger:       ledger,
		maxAttempts:  maxAttempts,
		maxSendDelay: maxSendDelay,
		logger:       logger,
		now:          time.Now,
		sleep:        sleepWithContext,
	}, nil
}

func (o *Orchestrator) SetMetrics(metrics *observability.Metrics) {
	if o == nil {
		return
	}
	o.metrics = metrics
}

// Handle processes one job end to end. A returned error means the job was
// abandoned mid-flight and may be redelivered; nil means the job reached a
// terminal state or was discarded as a duplicate.
func (o *Orchestrator) Handle(ctx context.Context, job domain.NotificationJob) error {
	logger := o.logger.With(zap.String("jobId", job.JobID))

	existingAttempts := 0
	existing, err := o.deliveries.GetByJobID(ctx, job.JobID)
	switch {
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("failed to check delivery ledger: %w", err)
	case existing != nil:
		if o.shouldSkip(existing) {
			logger.Info("duplicate job discarded",
				zap.String("status", existing.Status.String()),
				zap.Int("attempts", existing.Attempts),
			)
			return nil
		}
		existingAttempts = existing.Attempts
		logger.Info("resuming partially processed job",
			zap.Int("attempts", existingAttempts),
		)
	}

	if job.Expired(o.now()) {
		logger.Info("job expired before delivery")
		if o.metrics != nil {
			o.metrics.IncDeliveryExpired(job.Channel.String())
		}
		return o.ledger.MarkExpired(ctx, job, existingAttempts)
	}

	if err := o.waitSendAfter(ctx, job, logger); err != nil {
		return err
	}

	// A job can expire while it sits waiting for its send window.
	if job.Expired(o.now()) {
		logger.Info("job expired during send delay")
		if o.metrics != nil {
			o.metrics.IncDeliveryExpired(job.Channel.String())
		}
		return o.ledger.MarkExpired(ctx, job, existingAttempts)
	}

	attempts, sendErr := o.retry.Run(ctx, job, existingAttempts, func(attemptCtx context.Context, _ int) error {
		return o.attemptSend(attemptCtx, job)
	})

	if sendErr != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("job abandoned: %w", ctx.Err())
		}

		if o.metrics != nil {
			o.metrics.IncDeliveryFailed(job.Channel.String())
		}
		return o.ledger.MarkFailed(ctx, job, attempts, sendErr)
	}

	if o.metrics != nil {
		o.metrics.IncDeliverySent(job.Channel.String())
	}
	return o.ledger.MarkSent(ctx, job, attempts)
}

// shouldSkip reports whether the ledger row makes reprocessing pointless.
// Sent jobs never run again. Every other status reruns only when the
// previous incarnation still had attempt budget left; an exhausted RETRYING
// row means the terminal write was lost, and rerunning it would dead-letter
// the job a second time.
func (o *Orchestrator) shouldSkip(existing *domain.DeliveryRecord) bool {
	switch existing.Status {
	case domain.StatusSent:
		return true
	case domain.StatusRetrying, domain.StatusFailed, domain.StatusExpired:
		return existing.Attempts >= o.maxAttempts
	default:
		return false
	}
}

func (o *Orchestrator) waitSendAfter(ctx context.Context, job domain.NotificationJob, logger *zap.Logger) error {
	if job.SendAfter == nil {
		return nil
	}

	delay := job.SendAfter.Sub(o.now())
	if delay <= 0 {
		return nil
	}

	if delay > o.maxSendDelay {
		logger.Warn("send delay exceeds cap, clamping",
			zap.Duration("requested", delay),
			zap.Duration("cap", o.maxSendDelay),
		)
		delay = o.maxSendDelay
	}

	logger.Info("delaying send", zap.Duration("delay", delay))
	return o.sleep(ctx, delay)
}

func (o *Orchestrator) attemptSend(ctx context.Context, job domain.NotificationJob) error {
	if err := o.rateLimiter.Wait(ctx, job.Channel); err != nil {
		return fmt.Errorf("rate limiter wait failed: %w", err)
	}

	userContacts, err := o.contacts.Resolve(ctx, job.UserID)
	if err != nil {
		return fmt.Errorf("failed to resolve contacts: %w", err)
	}

	template, err := o.templates.Lookup(ctx, job.TemplateCode, job.Locale, job.Channel)
	if err != nil {
		return fmt.Errorf("failed to look up template %s/%s/%s: %w", job.TemplateCode, job.Locale, job.Channel, err)
	}

	subject := ""
	if template.Subject != nil {
		subject, err = render.Render(*template.Subject, job.Data)
		if err != nil {
			return fmt.Errorf("failed to render subject: %w", err)
		}
	}

	body, err := render.Render(template.Body, job.Data)
	if err != nil {
		return fmt.Errorf("failed to render body: %w", err)
	}

	address, err := sender.AddressFor(job.Channel, userContacts)
	if err != nil {
		return err
	}
	if address == "" {
		return fmt.Errorf("no %s address for user %s: %w", job.Channel, job.UserID, domain.ErrValidation)
	}

	channelSender, err := o.senders.ForChannel(job.Channel)
	if err != nil {
		return err
	}

	sendStart := o.now()
	sendErr := channelSender.Send(ctx, address, subject, body)
	if o.metrics != nil {
		o.metrics.ObserveSendAttemptDuration(job.Channel.String(), o.now().Sub(sendStart))
	}

	return sendErr
}

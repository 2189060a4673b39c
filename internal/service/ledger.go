package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/vmelnikov/notiflow/internal/domain"
	"github.com/vmelnikov/notiflow/internal/repository"
)

const (
	errorCodeSendFailed = "send_failed"
	errorCodeExpired    = "expired"
)

// LedgerWriter records delivery progress and outcomes in the delivery
// ledger. Progress rows carry status RETRYING so a redelivered job resumes
// from the last persisted attempt count instead of restarting the budget.
type LedgerWriter struct {
	deliveries repository.DeliveryRepository
	logger     *zap.Logger
	now        func() time.Time
}

func NewLedgerWriter(deliveries repository.DeliveryRepository, logger *zap.Logger) (*LedgerWriter, error) {
	if deliveries == nil {
		return nil, fmt.Errorf("delivery repository is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LedgerWriter{
		deliveries: deliveries,
		logger:     logger,
		now:        time.Now,
	}, nil
}

// MarkRetrying persists the attempt count after a failed attempt while the
// budget still has room.
func (w *LedgerWriter) MarkRetrying(ctx context.Context, job domain.NotificationJob, attempts int, attemptErr error) error {
	ts := w.now().UTC()
	record := w.newRecord(job, domain.StatusRetrying, attempts, ts)

	code := errorCodeSendFailed
	record.ErrorCode = &code
	if attemptErr != nil {
		msg := attemptErr.Error()
		record.ErrorMessage = &msg
	}

	return w.write(ctx, record)
}

func (w *LedgerWriter) MarkSent(ctx context.Context, job domain.NotificationJob, attempts int) error {
	ts := w.now().UTC()
	record := w.newRecord(job, domain.StatusSent, attempts, ts)
	record.SentAt = &ts

	return w.write(ctx, record)
}

func (w *LedgerWriter) MarkFailed(ctx context.Context, job domain.NotificationJob, attempts int, sendErr error) error {
	ts := w.now().UTC()
	record := w.newRecord(job, domain.StatusFailed, attempts, ts)

	code := errorCodeSendFailed
	record.ErrorCode = &code
	if sendErr != nil {
		msg := sendErr.Error()
		record.ErrorMessage = &msg
	}

	return w.write(ctx, record)
}

func (w *LedgerWriter) MarkExpired(ctx context.Context, job domain.NotificationJob, attempts int) error {
	ts := w.now().UTC()
	record := w.newRecord(job, domain.StatusExpired, attempts, ts)

	code := errorCodeExpired
	record.ErrorCode = &code

	return w.write(ctx, record)
}

func (w *LedgerWriter) newRecord(job domain.NotificationJob, status domain.Status, attempts int, ts time.Time) *domain.DeliveryRecord {
	channel := job.Channel
	if !channel.IsValid() {
		// Rows must always land in the ledger, even for mangled jobs.
		w.logger.Warn("ledger write with unrecognized channel, recording as email",
			zap.String("jobId", job.JobID),
			zap.String("channel", channel.String()),
		)
		channel = domain.ChannelEmail
	}

	return &domain.DeliveryRecord{
		JobID:     job.JobID,
		UserID:    job.UserID,
		Channel:   channel,
		Status:    status,
		Attempts:  attempts,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
}

func (w *LedgerWriter) write(ctx context.Context, record *domain.DeliveryRecord) error {
	if err := w.deliveries.Upsert(ctx, record); err != nil {
		return fmt.Errorf("failed to write delivery ledger: %w", err)
	}

	w.logger.Info("delivery ledger updated",
		zap.String("jobId", record.JobID),
		zap.String("status", record.Status.String()),
		zap.Int("attempts", record.Attempts),
	)

	return nil
}

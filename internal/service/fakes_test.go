package service

import (
	"context"
	"time"

	"github.com/vmelnikov/notiflow/internal/domain"
	"github.com/vmelnikov/notiflow/internal/queue"
)

type fakeDeliveryRepo struct {
	getByJobIDFn func(ctx context.Context, jobID string) (*domain.DeliveryRecord, error)
	upsertFn     func(ctx context.Context, record *domain.DeliveryRecord) error
}

func (f *fakeDeliveryRepo) GetByJobID(ctx context.Context, jobID string) (*domain.DeliveryRecord, error) {
	if f.getByJobIDFn != nil {
		return f.getByJobIDFn(ctx, jobID)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeDeliveryRepo) Upsert(ctx context.Context, record *domain.DeliveryRecord) error {
	if f.upsertFn != nil {
		return f.upsertFn(ctx, record)
	}
	return nil
}

type fakeTemplateRepo struct {
	lookupFn func(ctx context.Context, code, locale string, channel domain.Channel) (*domain.Template, error)
	createFn func(ctx context.Context, template *domain.Template) error
	listFn   func(ctx context.Context) ([]domain.Template, error)
}

func (f *fakeTemplateRepo) Lookup(ctx context.Context, code, locale string, channel domain.Channel) (*domain.Template, error) {
	if f.lookupFn != nil {
		return f.lookupFn(ctx, code, locale, channel)
	}
	return nil, domain.ErrNotFound
}

func (f *fakeTemplateRepo) Create(ctx context.Context, template *domain.Template) error {
	if f.createFn != nil {
		return f.createFn(ctx, template)
	}
	return nil
}

func (f *fakeTemplateRepo) List(ctx context.Context) ([]domain.Template, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}
	return nil, nil
}

type fakeAttemptRepo struct {
	appendFn func(ctx context.Context, attempt *domain.DeliveryAttempt) error
}

func (f *fakeAttemptRepo) Append(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	if f.appendFn != nil {
		return f.appendFn(ctx, attempt)
	}
	return nil
}

func (f *fakeAttemptRepo) GetByJobID(_ context.Context, _ string) ([]domain.DeliveryAttempt, error) {
	return nil, nil
}

type fakeCampaignRepo struct {
	listActiveFn    func(ctx context.Context) ([]domain.Campaign, error)
	markTriggeredFn func(ctx context.Context, campaignID string, triggeredAt time.Time) error
}

func (f *fakeCampaignRepo) ListActive(ctx context.Context) ([]domain.Campaign, error) {
	if f.listActiveFn != nil {
		return f.listActiveFn(ctx)
	}
	return nil, nil
}

func (f *fakeCampaignRepo) MarkTriggered(ctx context.Context, campaignID string, triggeredAt time.Time) error {
	if f.markTriggeredFn != nil {
		return f.markTriggeredFn(ctx, campaignID, triggeredAt)
	}
	return nil
}

type fakeResolver struct {
	resolveFn func(ctx context.Context, userID string) (domain.UserContacts, error)
}

func (f *fakeResolver) Resolve(ctx context.Context, userID string) (domain.UserContacts, error) {
	if f.resolveFn != nil {
		return f.resolveFn(ctx, userID)
	}
	return domain.UserContacts{
		UserID:      userID,
		Email:       "user-" + userID + "@example.com",
		PushToken:   "push-" + userID,
		WSSessionID: "ws-" + userID,
	}, nil
}

type fakeRateLimiter struct {
	waitFn func(ctx context.Context, channel domain.Channel) error
}

func (f *fakeRateLimiter) Allow(_ context.Context, _ domain.Channel) (bool, error) {
	return true, nil
}

func (f *fakeRateLimiter) Wait(ctx context.Context, channel domain.Channel) error {
	if f.waitFn != nil {
		return f.waitFn(ctx, channel)
	}
	return nil
}

type deadLetterCall struct {
	job    domain.NotificationJob
	reason string
}

type fakeDeadLetter struct {
	calls []deadLetterCall
}

func (f *fakeDeadLetter) Publish(_ context.Context, job domain.NotificationJob, reason string) {
	f.calls = append(f.calls, deadLetterCall{job: job, reason: reason})
}

type fakeEnqueuer struct {
	publishJobFn func(ctx context.Context, msg queue.JobMessage) error
	published    []queue.JobMessage
}

func (f *fakeEnqueuer) PublishJob(ctx context.Context, msg queue.JobMessage) error {
	if f.publishJobFn != nil {
		if err := f.publishJobFn(ctx, msg); err != nil {
			return err
		}
	}
	f.published = append(f.published, msg)
	return nil
}

type fakeConsumer struct {
	consumeFn func(ctx context.Context, queueName string, handler queue.MessageHandler) error
}

func (f *fakeConsumer) Consume(ctx context.Context, queueName string, handler queue.MessageHandler) error {
	if f.consumeFn != nil {
		return f.consumeFn(ctx, queueName, handler)
	}
	<-ctx.Done()
	return nil
}

func (f *fakeConsumer) Close() error {
	return nil
}

type fakeEventHandler struct {
	handleFn func(ctx context.Context, event Event) ([]domain.NotificationJob, error)
	events   []Event
}

func (f *fakeEventHandler) HandleEvent(ctx context.Context, event Event) ([]domain.NotificationJob, error) {
	f.events = append(f.events, event)
	if f.handleFn != nil {
		return f.handleFn(ctx, event)
	}
	return nil, nil
}

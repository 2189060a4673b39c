package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vmelnikov/notiflow/internal/domain"
	"github.com/vmelnikov/notiflow/internal/sender"
)

type orchestratorFixture struct {
	orchestrator *Orchestrator
	deliveries   *fakeDeliveryRepo
	templates    *fakeTemplateRepo
	dlq          *fakeDeadLetter
	upserts      []domain.DeliveryRecord
	slept        []time.Duration
}

func newOrchestratorFixture(t *testing.T, maxAttempts int) *orchestratorFixture {
	t.Helper()

	fx := &orchestratorFixture{
		dlq: &fakeDeadLetter{},
	}

	fx.deliveries = &fakeDeliveryRepo{
		upsertFn: func(_ context.Context, record *domain.DeliveryRecord) error {
			fx.upserts = append(fx.upserts, *record)
			return nil
		},
	}

	subject := "Hi {name}"
	fx.templates = &fakeTemplateRepo{
		lookupFn: func(_ context.Context, _, _ string, _ domain.Channel) (*domain.Template, error) {
			return &domain.Template{
				ID:      "t1",
				Code:    "welcome_email",
				Locale:  "en",
				Channel: domain.ChannelEmail,
				Subject: &subject,
				Body:    "Hello {name}!",
			}, nil
		},
	}

	registry, err := sender.NewRegistry(zap.NewNop())
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	ledger, err := NewLedgerWriter(fx.deliveries, zap.NewNop())
	if err != nil {
		t.Fatalf("NewLedgerWriter() error = %v", err)
	}

	engine, err := NewRetryEngine(&fakeAttemptRepo{}, fx.dlq, ledger, maxAttempts, []time.Duration{time.Second, 3 * time.Second, 10 * time.Second}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRetryEngine() error = %v", err)
	}
	engine.sleep = func(_ context.Context, d time.Duration) error {
		fx.slept = append(fx.slept, d)
		return nil
	}

	orchestrator, err := NewOrchestrator(
		fx.deliveries,
		fx.templates,
		&fakeResolver{},
		registry,
		&fakeRateLimiter{},
		engine,
		ledger,
		maxAttempts,
		5*time.Minute,
		zap.NewNop(),
	)
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}

	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	orchestrator.now = func() time.Time { return now }
	ledger.now = orchestrator.now
	engine.now = orchestrator.now
	orchestrator.sleep = func(_ context.Context, d time.Duration) error {
		fx.slept = append(fx.slept, d)
		return nil
	}

	fx.orchestrator = orchestrator
	return fx
}

func deliveryJob() domain.NotificationJob {
	data := map[string]any{"name": "Ada"}
	return domain.NotificationJob{
		JobID:        "job-1",
		UserID:       "u1",
		Channel:      domain.ChannelEmail,
		TemplateCode: "welcome_email",
		Locale:       "en",
		Data:         data,
	}
}

func TestOrchestratorDeliversAndMarksSent(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, 3)

	if err := fx.orchestrator.Handle(context.Background(), deliveryJob()); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(fx.upserts) != 1 {
		t.Fatalf("ledger writes = %d, want 1", len(fx.upserts))
	}

	record := fx.upserts[0]
	if record.Status != domain.StatusSent {
		t.Errorf("status = %s, want SENT", record.Status)
	}
	if record.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", record.Attempts)
	}
	if record.SentAt == nil {
		t.Error("sent at should be set")
	}
	if len(fx.dlq.calls) != 0 {
		t.Errorf("dead letter calls = %d, want 0", len(fx.dlq.calls))
	}
}

func TestOrchestratorDiscardsDuplicateSent(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, 3)
	fx.deliveries.getByJobIDFn = func(_ context.Context, _ string) (*domain.DeliveryRecord, error) {
		return &domain.DeliveryRecord{
			JobID:    "job-1",
			Status:   domain.StatusSent,
			Attempts: 1,
		}, nil
	}

	lookups := 0
	fx.templates.lookupFn = func(_ context.Context, _, _ string, _ domain.Channel) (*domain.Template, error) {
		lookups++
		return nil, domain.ErrNotFound
	}

	if err := fx.orchestrator.Handle(context.Background(), deliveryJob()); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if lookups != 0 {
		t.Error("duplicate job should not attempt delivery")
	}
	if len(fx.upserts) != 0 {
		t.Errorf("ledger writes = %d, want 0", len(fx.upserts))
	}
}

func TestOrchestratorDiscardsFailedWithExhaustedBudget(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, 3)
	fx.deliveries.getByJobIDFn = func(_ context.Context, _ string) (*domain.DeliveryRecord, error) {
		return &domain.DeliveryRecord{
			JobID:    "job-1",
			Status:   domain.StatusFailed,
			Attempts: 3,
		}, nil
	}

	if err := fx.orchestrator.Handle(context.Background(), deliveryJob()); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(fx.upserts) != 0 {
		t.Errorf("ledger writes = %d, want 0", len(fx.upserts))
	}
	if len(fx.dlq.calls) != 0 {
		t.Errorf("dead letter calls = %d, want 0", len(fx.dlq.calls))
	}
}

func TestOrchestratorDiscardsRetryingWithExhaustedBudget(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, 3)
	fx.deliveries.getByJobIDFn = func(_ context.Context, _ string) (*domain.DeliveryRecord, error) {
		return &domain.DeliveryRecord{
			JobID:    "job-1",
			Status:   domain.StatusRetrying,
			Attempts: 3,
		}, nil
	}

	lookups := 0
	fx.templates.lookupFn = func(_ context.Context, _, _ string, _ domain.Channel) (*domain.Template, error) {
		lookups++
		return nil, domain.ErrNotFound
	}

	if err := fx.orchestrator.Handle(context.Background(), deliveryJob()); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if lookups != 0 {
		t.Error("exhausted job should not attempt delivery")
	}
	if len(fx.upserts) != 0 {
		t.Errorf("ledger writes = %d, want 0", len(fx.upserts))
	}
	if len(fx.dlq.calls) != 0 {
		t.Errorf("dead letter calls = %d, want 0 for an already dead-lettered job", len(fx.dlq.calls))
	}
}

func TestOrchestratorResumesRetryingJob(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, 3)
	fx.deliveries.getByJobIDFn = func(_ context.Context, _ string) (*domain.DeliveryRecord, error) {
		return &domain.DeliveryRecord{
			JobID:    "job-1",
			Status:   domain.StatusRetrying,
			Attempts: 2,
		}, nil
	}

	if err := fx.orchestrator.Handle(context.Background(), deliveryJob()); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(fx.upserts) != 1 {
		t.Fatalf("ledger writes = %d, want 1", len(fx.upserts))
	}
	if fx.upserts[0].Status != domain.StatusSent {
		t.Errorf("status = %s, want SENT", fx.upserts[0].Status)
	}
	if fx.upserts[0].Attempts != 3 {
		t.Errorf("attempts = %d, want 3", fx.upserts[0].Attempts)
	}
}

func TestOrchestratorExpiresJobBeforeDelivery(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, 3)

	job := deliveryJob()
	expires := time.Date(2026, time.March, 1, 11, 0, 0, 0, time.UTC)
	job.ExpiresAt = &expires

	lookups := 0
	fx.templates.lookupFn = func(_ context.Context, _, _ string, _ domain.Channel) (*domain.Template, error) {
		lookups++
		return nil, domain.ErrNotFound
	}

	if err := fx.orchestrator.Handle(context.Background(), job); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if lookups != 0 {
		t.Error("expired job should not attempt delivery")
	}
	if len(fx.upserts) != 1 {
		t.Fatalf("ledger writes = %d, want 1", len(fx.upserts))
	}
	if fx.upserts[0].Status != domain.StatusExpired {
		t.Errorf("status = %s, want EXPIRED", fx.upserts[0].Status)
	}
	if fx.upserts[0].ErrorCode == nil || *fx.upserts[0].ErrorCode != "expired" {
		t.Errorf("error code = %v, want expired", fx.upserts[0].ErrorCode)
	}
}

func TestOrchestratorExpirationBeatsSendDelay(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, 3)

	job := deliveryJob()
	expires := time.Date(2026, time.March, 1, 11, 0, 0, 0, time.UTC)
	sendAfter := time.Date(2026, time.March, 1, 13, 0, 0, 0, time.UTC)
	job.ExpiresAt = &expires
	job.SendAfter = &sendAfter

	if err := fx.orchestrator.Handle(context.Background(), job); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(fx.slept) != 0 {
		t.Errorf("slept %v, expired job should not wait for its window", fx.slept)
	}
	if len(fx.upserts) != 1 || fx.upserts[0].Status != domain.StatusExpired {
		t.Fatalf("ledger writes = %+v, want one EXPIRED", fx.upserts)
	}
}

func TestOrchestratorWaitsForSendWindow(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, 3)

	job := deliveryJob()
	sendAfter := time.Date(2026, time.March, 1, 12, 0, 10, 0, time.UTC)
	job.SendAfter = &sendAfter

	if err := fx.orchestrator.Handle(context.Background(), job); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(fx.slept) != 1 || fx.slept[0] != 10*time.Second {
		t.Errorf("slept %v, want [10s]", fx.slept)
	}
	if len(fx.upserts) != 1 || fx.upserts[0].Status != domain.StatusSent {
		t.Fatalf("ledger writes = %+v, want one SENT", fx.upserts)
	}
}

func TestOrchestratorCapsSendDelay(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, 3)

	job := deliveryJob()
	sendAfter := time.Date(2026, time.March, 1, 14, 0, 0, 0, time.UTC)
	job.SendAfter = &sendAfter

	if err := fx.orchestrator.Handle(context.Background(), job); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(fx.slept) != 1 || fx.slept[0] != 5*time.Minute {
		t.Errorf("slept %v, want [5m]", fx.slept)
	}
}

func TestOrchestratorMissingTemplateExhaustsAndFails(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, 3)

	lookups := 0
	fx.templates.lookupFn = func(_ context.Context, _, _ string, _ domain.Channel) (*domain.Template, error) {
		lookups++
		return nil, domain.ErrNotFound
	}

	if err := fx.orchestrator.Handle(context.Background(), deliveryJob()); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if lookups != 3 {
		t.Errorf("lookups = %d, want 3", lookups)
	}
	if len(fx.upserts) != 3 {
		t.Fatalf("ledger writes = %d, want 3", len(fx.upserts))
	}

	for i, record := range fx.upserts[:2] {
		if record.Status != domain.StatusRetrying {
			t.Errorf("ledger write %d status = %s, want RETRYING", i, record.Status)
		}
		if record.Attempts != i+1 {
			t.Errorf("ledger write %d attempts = %d, want %d", i, record.Attempts, i+1)
		}
	}

	record := fx.upserts[2]
	if record.Status != domain.StatusFailed {
		t.Errorf("status = %s, want FAILED", record.Status)
	}
	if record.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", record.Attempts)
	}
	if record.ErrorMessage == nil {
		t.Error("error message should be set")
	}

	if len(fx.dlq.calls) != 1 {
		t.Errorf("dead letter calls = %d, want exactly 1", len(fx.dlq.calls))
	}
}

func TestOrchestratorRenderFailureCountsAsAttempt(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, 3)

	job := deliveryJob()
	job.Data = map[string]any{}

	if err := fx.orchestrator.Handle(context.Background(), job); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	if len(fx.upserts) != 3 {
		t.Fatalf("ledger writes = %d, want 3", len(fx.upserts))
	}
	last := fx.upserts[len(fx.upserts)-1]
	if last.Status != domain.StatusFailed {
		t.Errorf("status = %s, want FAILED", last.Status)
	}
	if last.Attempts != 3 {
		t.Errorf("attempts = %d, want 3", last.Attempts)
	}
}

func TestOrchestratorAbandonsOnContextCancel(t *testing.T) {
	t.Parallel()

	fx := newOrchestratorFixture(t, 3)

	ctx, cancel := context.WithCancel(context.Background())
	fx.templates.lookupFn = func(_ context.Context, _, _ string, _ domain.Channel) (*domain.Template, error) {
		cancel()
		return nil, errors.New("interrupted")
	}

	err := fx.orchestrator.Handle(ctx, deliveryJob())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Handle() error = %v, want context.Canceled", err)
	}

	if len(fx.upserts) != 0 {
		t.Errorf("ledger writes = %d, want 0 on abandon", len(fx.upserts))
	}
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/vmelnikov/notiflow/internal/domain"
)

func newTestRetryEngine(t *testing.T, maxAttempts int, delays []time.Duration, dlq *fakeDeadLetter, attempts *fakeAttemptRepo, deliveries *fakeDeliveryRepo) *RetryEngine {
	t.Helper()

	if dlq == nil {
		dlq = &fakeDeadLetter{}
	}
	if attempts == nil {
		attempts = &fakeAttemptRepo{}
	}
	if deliveries == nil {
		deliveries = &fakeDeliveryRepo{}
	}

	ledger, err := NewLedgerWriter(deliveries, zap.NewNop())
	if err != nil {
		t.Fatalf("NewLedgerWriter() error = %v", err)
	}
	ledger.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	engine, err := NewRetryEngine(attempts, dlq, ledger, maxAttempts, delays, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRetryEngine() error = %v", err)
	}
	engine.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	return engine
}

func testJob() domain.NotificationJob {
	return domain.NotificationJob{
		JobID:        "job-1",
		UserID:       "u1",
		Channel:      domain.ChannelEmail,
		TemplateCode: "welcome_email",
		Locale:       "en",
	}
}

func TestRetryEngineSucceedsFirstAttempt(t *testing.T) {
	t.Parallel()

	dlq := &fakeDeadLetter{}
	var recorded []domain.DeliveryAttempt
	attemptRepo := &fakeAttemptRepo{
		appendFn: func(_ context.Context, a *domain.DeliveryAttempt) error {
			recorded = append(recorded, *a)
			return nil
		},
	}

	var upserts []domain.DeliveryRecord
	deliveries := &fakeDeliveryRepo{
		upsertFn: func(_ context.Context, record *domain.DeliveryRecord) error {
			upserts = append(upserts, *record)
			return nil
		},
	}

	engine := newTestRetryEngine(t, 3, []time.Duration{time.Second}, dlq, attemptRepo, deliveries)
	var slept []time.Duration
	engine.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	attempts, err := engine.Run(context.Background(), testJob(), 0, func(_ context.Context, _ int) error {
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
	if len(slept) != 0 {
		t.Errorf("slept %v, want no sleeps", slept)
	}
	if len(dlq.calls) != 0 {
		t.Errorf("dead letter calls = %d, want 0", len(dlq.calls))
	}
	if len(recorded) != 1 || recorded[0].AttemptNumber != 1 || recorded[0].Error != nil {
		t.Errorf("recorded attempts = %+v", recorded)
	}
	if len(upserts) != 0 {
		t.Errorf("ledger writes = %+v, want none on first-attempt success", upserts)
	}
}

func TestRetryEngineRetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	dlq := &fakeDeadLetter{}
	var upserts []domain.DeliveryRecord
	deliveries := &fakeDeliveryRepo{
		upsertFn: func(_ context.Context, record *domain.DeliveryRecord) error {
			upserts = append(upserts, *record)
			return nil
		},
	}
	engine := newTestRetryEngine(t, 3, []time.Duration{time.Second, 3 * time.Second, 10 * time.Second}, dlq, nil, deliveries)

	var slept []time.Duration
	engine.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	calls := 0
	attempts, err := engine.Run(context.Background(), testJob(), 0, func(_ context.Context, n int) error {
		calls++
		if n != calls {
			t.Errorf("attempt number = %d, want %d", n, calls)
		}
		if calls < 2 {
			return errors.New("transient failure")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
	if len(slept) != 1 || slept[0] != time.Second {
		t.Errorf("slept %v, want [1s]", slept)
	}
	if len(dlq.calls) != 0 {
		t.Errorf("dead letter calls = %d, want 0", len(dlq.calls))
	}

	if len(upserts) != 1 {
		t.Fatalf("ledger writes = %d, want 1 after the failed attempt", len(upserts))
	}
	if upserts[0].Status != domain.StatusRetrying || upserts[0].Attempts != 1 {
		t.Errorf("ledger write = %s/%d, want RETRYING/1", upserts[0].Status, upserts[0].Attempts)
	}
	if upserts[0].ErrorMessage == nil || *upserts[0].ErrorMessage != "transient failure" {
		t.Errorf("ledger error message = %v", upserts[0].ErrorMessage)
	}
}

func TestRetryEngineExhaustionDeadLetters(t *testing.T) {
	t.Parallel()

	dlq := &fakeDeadLetter{}
	var recorded []domain.DeliveryAttempt
	attemptRepo := &fakeAttemptRepo{
		appendFn: func(_ context.Context, a *domain.DeliveryAttempt) error {
			recorded = append(recorded, *a)
			return nil
		},
	}

	var upserts []domain.DeliveryRecord
	deliveries := &fakeDeliveryRepo{
		upsertFn: func(_ context.Context, record *domain.DeliveryRecord) error {
			upserts = append(upserts, *record)
			return nil
		},
	}

	engine := newTestRetryEngine(t, 3, []time.Duration{time.Second, 3 * time.Second, 10 * time.Second}, dlq, attemptRepo, deliveries)

	var total time.Duration
	var slept []time.Duration
	engine.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		total += d
		return nil
	}

	wantErr := errors.New("provider down")
	attempts, err := engine.Run(context.Background(), testJob(), 0, func(_ context.Context, _ int) error {
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("Run() error = %v, want %v", err, wantErr)
	}

	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}

	// No sleep follows the final attempt, so only the first two delays apply.
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 3*time.Second {
		t.Errorf("slept %v, want [1s 3s]", slept)
	}
	if total != 4*time.Second {
		t.Errorf("total backoff = %v, want 4s", total)
	}

	if len(dlq.calls) != 1 {
		t.Fatalf("dead letter calls = %d, want 1", len(dlq.calls))
	}
	if dlq.calls[0].job.JobID != "job-1" {
		t.Errorf("dead letter job id = %q", dlq.calls[0].job.JobID)
	}
	if dlq.calls[0].reason != "provider down" {
		t.Errorf("dead letter reason = %q", dlq.calls[0].reason)
	}

	if len(recorded) != 3 {
		t.Fatalf("recorded attempts = %d, want 3", len(recorded))
	}
	for i, a := range recorded {
		if a.AttemptNumber != i+1 {
			t.Errorf("attempt %d number = %d", i, a.AttemptNumber)
		}
		if a.Error == nil || *a.Error != "provider down" {
			t.Errorf("attempt %d error = %v", i, a.Error)
		}
	}

	// The final attempt gets a terminal write from the caller, so only the
	// first two failures leave RETRYING rows.
	if len(upserts) != 2 {
		t.Fatalf("ledger writes = %d, want 2", len(upserts))
	}
	for i, record := range upserts {
		if record.Status != domain.StatusRetrying {
			t.Errorf("ledger write %d status = %s, want RETRYING", i, record.Status)
		}
		if record.Attempts != i+1 {
			t.Errorf("ledger write %d attempts = %d, want %d", i, record.Attempts, i+1)
		}
	}
}

func TestRetryEngineRepeatsLastDelay(t *testing.T) {
	t.Parallel()

	engine := newTestRetryEngine(t, 5, []time.Duration{time.Second, 3 * time.Second}, nil, nil, nil)

	var slept []time.Duration
	engine.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	_, err := engine.Run(context.Background(), testJob(), 0, func(_ context.Context, _ int) error {
		return errors.New("still failing")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	want := []time.Duration{time.Second, 3 * time.Second, 3 * time.Second, 3 * time.Second}
	if len(slept) != len(want) {
		t.Fatalf("slept %v, want %v", slept, want)
	}
	for i := range want {
		if slept[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, slept[i], want[i])
		}
	}
}

func TestRetryEngineResumesAfterExistingAttempts(t *testing.T) {
	t.Parallel()

	dlq := &fakeDeadLetter{}
	engine := newTestRetryEngine(t, 3, []time.Duration{time.Second}, dlq, nil, nil)

	var slept []time.Duration
	engine.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}

	var numbers []int
	attempts, err := engine.Run(context.Background(), testJob(), 2, func(_ context.Context, n int) error {
		numbers = append(numbers, n)
		return errors.New("nope")
	})
	if err == nil {
		t.Fatal("expected error")
	}

	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if len(numbers) != 1 || numbers[0] != 3 {
		t.Errorf("attempt numbers = %v, want [3]", numbers)
	}
	if len(slept) != 0 {
		t.Errorf("slept %v, want no sleeps after the final attempt", slept)
	}
	if len(dlq.calls) != 1 {
		t.Errorf("dead letter calls = %d, want 1", len(dlq.calls))
	}
}

func TestRetryEngineExhaustedBudgetDeadLettersImmediately(t *testing.T) {
	t.Parallel()

	dlq := &fakeDeadLetter{}
	engine := newTestRetryEngine(t, 3, []time.Duration{time.Second}, dlq, nil, nil)

	called := false
	attempts, err := engine.Run(context.Background(), testJob(), 3, func(_ context.Context, _ int) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("expected error")
	}

	if called {
		t.Error("attempt should not run with an exhausted budget")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if len(dlq.calls) != 1 {
		t.Errorf("dead letter calls = %d, want 1", len(dlq.calls))
	}
}

func TestRetryEngineAbandonsOnContextCancel(t *testing.T) {
	t.Parallel()

	dlq := &fakeDeadLetter{}
	engine := newTestRetryEngine(t, 3, []time.Duration{time.Second}, dlq, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())

	_, err := engine.Run(ctx, testJob(), 0, func(_ context.Context, _ int) error {
		cancel()
		return errors.New("interrupted")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}

	if len(dlq.calls) != 0 {
		t.Errorf("dead letter calls = %d, want 0 on abandon", len(dlq.calls))
	}
}

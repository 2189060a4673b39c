package domain

import (
	"testing"
	"time"
)

func TestNormalizeChannel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		raw    string
		want   Channel
		wantOK bool
	}{
		{name: "email", raw: "email", want: ChannelEmail, wantOK: true},
		{name: "push upper", raw: "PUSH", want: ChannelPush, wantOK: true},
		{name: "websocket", raw: "websocket", want: ChannelWebSocket, wantOK: true},
		{name: "ws alias", raw: "ws", want: ChannelWebSocket, wantOK: true},
		{name: "sms reserved", raw: "sms", want: ChannelSMS, wantOK: true},
		{name: "padded", raw: "  email  ", want: ChannelEmail, wantOK: true},
		{name: "unknown falls back to email", raw: "carrier-pigeon", want: ChannelEmail, wantOK: false},
		{name: "empty falls back to email", raw: "", want: ChannelEmail, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := NormalizeChannel(tt.raw)
			if got != tt.want || ok != tt.wantOK {
				t.Fatalf("NormalizeChannel(%q) = (%s, %v), want (%s, %v)", tt.raw, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestNormalizePriority(t *testing.T) {
	t.Parallel()

	if got := NormalizePriority("HIGH"); got != PriorityHigh {
		t.Fatalf("NormalizePriority(HIGH) = %s, want high", got)
	}
	if got := NormalizePriority("bogus"); got != PriorityNormal {
		t.Fatalf("NormalizePriority(bogus) = %s, want normal", got)
	}
	if got := NormalizePriority(""); got != PriorityNormal {
		t.Fatalf("NormalizePriority(empty) = %s, want normal", got)
	}
}

func TestNotificationJobValidate(t *testing.T) {
	t.Parallel()

	valid := NotificationJob{
		JobID:        "6f1c7f76-73f5-4a3b-97f4-9a3b8f1c0001",
		UserID:       "6f1c7f76-73f5-4a3b-97f4-9a3b8f1c0002",
		Channel:      ChannelEmail,
		TemplateCode: "welcome_email",
		Locale:       "en",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}

	missingJobID := valid
	missingJobID.JobID = ""
	if err := missingJobID.Validate(); err == nil {
		t.Fatal("expected error for missing job_id")
	}

	badChannel := valid
	badChannel.Channel = Channel("fax")
	if err := badChannel.Validate(); err == nil {
		t.Fatal("expected error for invalid channel")
	}
}

func TestNotificationJobExpired(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0).UTC()

	job := NotificationJob{}
	if job.Expired(now) {
		t.Fatal("job without expires_at must not be expired")
	}

	past := now.Add(-time.Minute)
	job.ExpiresAt = &past
	if !job.Expired(now) {
		t.Fatal("job with past expires_at must be expired")
	}

	future := now.Add(time.Minute)
	job.ExpiresAt = &future
	if job.Expired(now) {
		t.Fatal("job with future expires_at must not be expired")
	}
}

func TestStatusTerminality(t *testing.T) {
	t.Parallel()

	if StatusRetrying.IsTerminal() {
		t.Fatal("RETRYING must not be terminal")
	}
	for _, s := range []Status{StatusSent, StatusFailed, StatusExpired} {
		if !s.IsTerminal() {
			t.Fatalf("%s must be terminal", s)
		}
	}
}

func TestParseStatusFromString(t *testing.T) {
	t.Parallel()

	st, err := ParseStatusFromString("sent")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st != StatusSent {
		t.Fatalf("status = %s, want SENT", st)
	}

	if _, err := ParseStatusFromString("delivering"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}

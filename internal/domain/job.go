package domain

import (
	"fmt"
	"strings"
	"time"
)

// Channel represents the delivery channel of a notification job.
type Channel string

const (
	ChannelEmail     Channel = "email"
	ChannelPush      Channel = "push"
	ChannelWebSocket Channel = "websocket"
	// ChannelSMS is reserved; no sender implementation exists yet.
	ChannelSMS Channel = "sms"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelPush, ChannelWebSocket, ChannelSMS:
		return true
	}
	return false
}

// NormalizeChannel maps a raw channel value coming off the wire to a canonical
// Channel. Unknown or empty values fall back to email; the second return value
// reports whether the input was valid so callers can log the anomaly.
func NormalizeChannel(raw string) (Channel, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "ws" {
		normalized = string(ChannelWebSocket)
	}

	ch := Channel(normalized)
	if ch.IsValid() {
		return ch, true
	}
	return ChannelEmail, false
}

// Priority represents the message priority level.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
)

func (p Priority) String() string { return string(p) }

func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityNormal:
		return true
	}
	return false
}

// NormalizePriority maps a raw priority value to a canonical Priority,
// defaulting to normal.
func NormalizePriority(raw string) Priority {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if p.IsValid() {
		return p
	}
	return PriorityNormal
}

// JobMeta carries originating-event metadata attached to a job.
type JobMeta struct {
	EventType  string
	EventID    string
	CampaignID *string
	Priority   Priority
}

// NotificationJob is one unit of work: deliver this notification to this user
// over this channel. Jobs are immutable once consumed from the queue.
type NotificationJob struct {
	JobID        string
	UserID       string
	Channel      Channel
	TemplateCode string
	Locale       string
	Data         map[string]any
	Meta         JobMeta
	CreatedAt    *time.Time
	SendAfter    *time.Time
	ExpiresAt    *time.Time
}

func (j NotificationJob) Validate() error {
	if strings.TrimSpace(j.JobID) == "" {
		return fmt.Errorf("%w: job_id is required", ErrValidation)
	}
	if strings.TrimSpace(j.UserID) == "" {
		return fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	if strings.TrimSpace(j.TemplateCode) == "" {
		return fmt.Errorf("%w: template_code is required", ErrValidation)
	}
	if !j.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, j.Channel)
	}
	return nil
}

// Expired reports whether the job's expires_at deadline has passed.
func (j NotificationJob) Expired(now time.Time) bool {
	if j.ExpiresAt == nil {
		return false
	}
	return now.After(*j.ExpiresAt)
}

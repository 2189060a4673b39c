package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/vmelnikov/notiflow/internal/domain"
)

// JobMessage is the broker payload for one notification job. Timestamps are
// ISO-8601 with timezone; unknown fields are ignored on decode.
type JobMessage struct {
	JobID        string         `json:"job_id"`
	UserID       string         `json:"user_id"`
	Channel      string         `json:"channel"`
	TemplateCode string         `json:"template_code"`
	Locale       string         `json:"locale"`
	Data         map[string]any `json:"data,omitempty"`
	Meta         MessageMeta    `json:"meta,omitempty"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
	SendAfter    *time.Time     `json:"send_after,omitempty"`
	ExpiresAt    *time.Time     `json:"expires_at,omitempty"`
}

// MessageMeta carries originating-event metadata.
type MessageMeta struct {
	EventType  string  `json:"event_type,omitempty"`
	EventID    string  `json:"event_id,omitempty"`
	CampaignID *string `json:"campaign_id,omitempty"`
	Priority   string  `json:"priority,omitempty"`
}

func (m JobMessage) Validate() error {
	if strings.TrimSpace(m.JobID) == "" {
		return fmt.Errorf("job_id is required")
	}
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("user_id is required")
	}
	if strings.TrimSpace(m.TemplateCode) == "" {
		return fmt.Errorf("template_code is required")
	}
	return nil
}

// ToJob converts the wire payload to a domain job, normalizing the channel at
// the boundary. The second return value is false when the channel was missing
// or unknown and the email fallback was applied.
func (m JobMessage) ToJob() (domain.NotificationJob, bool) {
	channel, channelOK := domain.NormalizeChannel(m.Channel)

	locale := strings.TrimSpace(m.Locale)
	if locale == "" {
		locale = "en"
	}

	return domain.NotificationJob{
		JobID:        m.JobID,
		UserID:       m.UserID,
		Channel:      channel,
		TemplateCode: m.TemplateCode,
		Locale:       locale,
		Data:         m.Data,
		Meta: domain.JobMeta{
			EventType:  m.Meta.EventType,
			EventID:    m.Meta.EventID,
			CampaignID: m.Meta.CampaignID,
			Priority:   domain.NormalizePriority(m.Meta.Priority),
		},
		CreatedAt: m.CreatedAt,
		SendAfter: m.SendAfter,
		ExpiresAt: m.ExpiresAt,
	}, channelOK
}

// FromJob builds the wire payload for a domain job.
func FromJob(job domain.NotificationJob) JobMessage {
	return JobMessage{
		JobID:        job.JobID,
		UserID:       job.UserID,
		Channel:      job.Channel.String(),
		TemplateCode: job.TemplateCode,
		Locale:       job.Locale,
		Data:         job.Data,
		Meta: MessageMeta{
			EventType:  job.Meta.EventType,
			EventID:    job.Meta.EventID,
			CampaignID: job.Meta.CampaignID,
			Priority:   job.Meta.Priority.String(),
		},
		CreatedAt: job.CreatedAt,
		SendAfter: job.SendAfter,
		ExpiresAt: job.ExpiresAt,
	}
}

// DeadLetterMessage is the original job payload plus the failure reason,
// published for offline inspection and replay.
type DeadLetterMessage struct {
	JobMessage
	FailureReason string `json:"failure_reason"`
}

package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vmelnikov/notiflow/internal/domain"
	"github.com/vmelnikov/notiflow/internal/observability"
	"github.com/vmelnikov/notiflow/internal/queue"
)

const (
	EventUserRegistered    = "user_registered"
	EventNewFilmReleased   = "new_film_released"
	EventCampaignTriggered = "campaign_triggered"

	welcomeTemplateCode = "welcome_email"
	defaultLocale       = "en"
)

// Event is a domain occurrence that may fan out into notification jobs.
type Event struct {
	Type       string
	EventID    string
	UserID     string
	CampaignID string
	Locale     string
	Data       map[string]any
}

// JobEnqueuer accepts jobs for asynchronous delivery.
type JobEnqueuer interface {
	PublishJob(ctx context.Context, msg queue.JobMessage) error
}

// EventService turns incoming events into notification jobs and enqueues
// them. The fan-out per event type is fixed: user_registered produces a
// welcome email, the other known events produce no jobs yet.
type EventService struct {
	enqueuer JobEnqueuer
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

func NewEventService(enqueuer JobEnqueuer, logger *zap.Logger) (*EventService, error) {
	if enqueuer == nil {
		return nil, fmt.Errorf("job enqueuer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &EventService{
		enqueuer: enqueuer,
		logger:   logger,
		now:      time.Now,
	}, nil
}

func (s *EventService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// HandleEvent maps an event to its notification jobs and enqueues them.
// It returns the enqueued jobs.
func (s *EventService) HandleEvent(ctx context.Context, event Event) ([]domain.NotificationJob, error) {
	if event.Type == "" {
		return nil, fmt.Errorf("event type is required: %w", domain.ErrValidation)
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}

	jobs, err := s.jobsForEvent(event)
	if err != nil {
		return nil, err
	}

	for i := range jobs {
		msg := queue.FromJob(jobs[i])
		if err := s.enqueuer.PublishJob(ctx, msg); err != nil {
			return jobs[:i], fmt.Errorf("failed to enqueue job %s: %w", jobs[i].JobID, err)
		}

		if s.metrics != nil {
			s.metrics.IncJobEnqueued(jobs[i].Channel.String())
		}

		s.logger.Info("notification job enqueued",
			zap.String("jobId", jobs[i].JobID),
			zap.String("eventType", event.Type),
			zap.String("channel", jobs[i].Channel.String()),
		)
	}

	return jobs, nil
}

func (s *EventService) jobsForEvent(event Event) ([]domain.NotificationJob, error) {
	switch event.Type {
	case EventUserRegistered:
		if event.UserID == "" {
			return nil, fmt.Errorf("user id is required for %s: %w", event.Type, domain.ErrValidation)
		}
		return []domain.NotificationJob{s.welcomeEmailJob(event)}, nil
	case EventNewFilmReleased, EventCampaignTriggered:
		// Segment fan-out is not wired yet. The events are accepted so
		// producers keep a stable contract.
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown event type %q: %w", event.Type, domain.ErrValidation)
	}
}

func (s *EventService) welcomeEmailJob(event Event) domain.NotificationJob {
	locale := event.Locale
	if locale == "" {
		locale = defaultLocale
	}

	data := event.Data
	if data == nil {
		data = map[string]any{}
	}

	createdAt := s.now().UTC()

	var campaignID *string
	if event.CampaignID != "" {
		campaignID = &event.CampaignID
	}

	return domain.NotificationJob{
		JobID:        uuid.NewString(),
		UserID:       event.UserID,
		Channel:      domain.ChannelEmail,
		TemplateCode: welcomeTemplateCode,
		Locale:       locale,
		Data:         data,
		Meta: domain.JobMeta{
			EventType:  event.Type,
			EventID:    event.EventID,
			CampaignID: campaignID,
			Priority:   domain.PriorityNormal,
		},
		CreatedAt: &createdAt,
	}
}

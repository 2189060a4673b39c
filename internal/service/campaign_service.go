package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vmelnikov/notiflow/internal/domain"
	"github.com/vmelnikov/notiflow/internal/observability"
	"github.com/vmelnikov/notiflow/internal/repository"
)

const defaultCampaignScanInterval = 30 * time.Second

// EventHandler accepts events for fan-out into notification jobs.
type EventHandler interface {
	HandleEvent(ctx context.Context, event Event) ([]domain.NotificationJob, error)
}

// CampaignScheduler periodically evaluates active campaigns against their
// cron schedules and triggers the due ones.
type CampaignScheduler struct {
	campaigns repository.CampaignRepository
	events    EventHandler
	interval  time.Duration
	logger    *zap.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

func NewCampaignScheduler(
	campaigns repository.CampaignRepository,
	events EventHandler,
	interval time.Duration,
	logger *zap.Logger,
) (*CampaignScheduler, error) {
	if campaigns == nil {
		return nil, fmt.Errorf("campaign repository is required")
	}
	if events == nil {
		return nil, fmt.Errorf("event handler is required")
	}
	if interval <= 0 {
		interval = defaultCampaignScanInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &CampaignScheduler{
		campaigns: campaigns,
		events:    events,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}, nil
}

func (s *CampaignScheduler) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *CampaignScheduler) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.scanDue(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("campaign initial scan failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.scanDue(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("campaign scan failed", zap.Error(err))
			}
		}
	}
}

func (s *CampaignScheduler) scanDue(ctx context.Context) error {
	campaigns, err := s.campaigns.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active campaigns: %w", err)
	}

	now := s.now().UTC()
	for i := range campaigns {
		campaign := campaigns[i]

		due, err := campaign.IsDue(now)
		if err != nil {
			s.logger.Error("campaign has invalid schedule, skipping",
				zap.String("campaignId", campaign.ID),
				zap.String("schedule", campaign.ScheduleCron),
				zap.Error(err),
			)
			continue
		}
		if !due {
			continue
		}

		if err := s.triggerCampaign(ctx, campaign, now); err != nil {
			s.logger.Error("failed to trigger campaign",
				zap.String("campaignId", campaign.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// triggerCampaign marks the run before emitting the event, so a crash
// between the two loses at most one emission instead of double-firing.
func (s *CampaignScheduler) triggerCampaign(ctx context.Context, campaign domain.Campaign, now time.Time) error {
	if err := s.campaigns.MarkTriggered(ctx, campaign.ID, now); err != nil {
		return fmt.Errorf("failed to mark campaign triggered: %w", err)
	}

	event := Event{
		Type:       EventCampaignTriggered,
		EventID:    uuid.NewString(),
		CampaignID: campaign.ID,
		Data: map[string]any{
			"campaign_name": campaign.Name,
			"template_code": campaign.TemplateCode,
			"segment_id":    campaign.SegmentID,
		},
	}

	if _, err := s.events.HandleEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to emit campaign event: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncCampaignTriggered()
	}

	s.logger.Info("campaign triggered",
		zap.String("campaignId", campaign.ID),
		zap.String("name", campaign.Name),
		zap.Int("runsCount", campaign.RunsCount+1),
	)

	return nil
}

package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/vmelnikov/notiflow/internal/domain"
)

type CampaignRepository interface {
	ListActive(ctx context.Context) ([]domain.Campaign, error)
	MarkTriggered(ctx context.Context, campaignID string, triggeredAt time.Time) error
}

type GormCampaignRepo struct {
	db *gorm.DB
}

func NewGormCampaignRepo(db *gorm.DB) *GormCampaignRepo {
	return &GormCampaignRepo{db: db}
}

func (r *GormCampaignRepo) ListActive(ctx context.Context) ([]domain.Campaign, error) {
	var models []CampaignModel
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.CampaignStatusActive).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	campaigns := make([]domain.Campaign, 0, len(models))
	for i := range models {
		campaigns = append(campaigns, *campaignModelToDomain(&models[i]))
	}

	return campaigns, nil
}

// MarkTriggered records a run in one statement: bumps the run counter, stamps
// last_triggered_at, and deactivates the campaign when the bumped counter
// reaches max_runs.
func (r *GormCampaignRepo) MarkTriggered(ctx context.Context, campaignID string, triggeredAt time.Time) error {
	result := r.db.WithContext(ctx).Exec(`
		UPDATE campaigns
		SET last_triggered_at = ?,
		    runs_count = runs_count + 1,
		    updated_at = ?,
		    status = CASE
		        WHEN max_runs IS NOT NULL AND runs_count + 1 >= max_runs THEN 'INACTIVE'
		        ELSE status
		    END
		WHERE id = ?`,
		triggeredAt, triggeredAt, campaignID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

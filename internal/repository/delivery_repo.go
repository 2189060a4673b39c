package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/vmelnikov/notiflow/internal/domain"
)

type DeliveryRepository interface {
	GetByJobID(ctx context.Context, jobID string) (*domain.DeliveryRecord, error)
	Upsert(ctx context.Context, record *domain.DeliveryRecord) error
}

type GormDeliveryRepo struct {
	db *gorm.DB
}

func NewGormDeliveryRepo(db *gorm.DB) *GormDeliveryRepo {
	return &GormDeliveryRepo{db: db}
}

func (r *GormDeliveryRepo) GetByJobID(ctx context.Context, jobID string) (*domain.DeliveryRecord, error) {
	var model DeliveryModel
	err := r.db.WithContext(ctx).First(&model, "job_id = ?", jobID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return deliveryModelToDomain(&model), nil
}

// Upsert writes the ledger row for a job, replacing any previous row with
// the same job_id. Last write wins.
func (r *GormDeliveryRepo) Upsert(ctx context.Context, record *domain.DeliveryRecord) error {
	if record == nil {
		return domain.ErrValidation
	}

	model := deliveryModelFromDomain(record)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

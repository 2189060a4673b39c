package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/vmelnikov/notiflow/internal/domain"
)

type AttemptRepository interface {
	Append(ctx context.Context, attempt *domain.DeliveryAttempt) error
	GetByJobID(ctx context.Context, jobID string) ([]domain.DeliveryAttempt, error)
}

type GormAttemptRepo struct {
	db *gorm.DB
}

func NewGormAttemptRepo(db *gorm.DB) *GormAttemptRepo {
	return &GormAttemptRepo{db: db}
}

func (r *GormAttemptRepo) Append(ctx context.Context, attempt *domain.DeliveryAttempt) error {
	model := attemptModelFromDomain(attempt)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if attempt != nil {
		*attempt = *attemptModelToDomain(model)
	}
	return nil
}

func (r *GormAttemptRepo) GetByJobID(ctx context.Context, jobID string) ([]domain.DeliveryAttempt, error) {
	var models []DeliveryAttemptModel
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("attempt_number ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	attempts := make([]domain.DeliveryAttempt, 0, len(models))
	for i := range models {
		attempts = append(attempts, *attemptModelToDomain(&models[i]))
	}

	return attempts, nil
}

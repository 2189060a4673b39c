package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/vmelnikov/notiflow/internal/domain"
)

type TemplateRepository interface {
	Lookup(ctx context.Context, code, locale string, channel domain.Channel) (*domain.Template, error)
	Create(ctx context.Context, template *domain.Template) error
	List(ctx context.Context) ([]domain.Template, error)
}

type GormTemplateRepo struct {
	db *gorm.DB
}

func NewGormTemplateRepo(db *gorm.DB) *GormTemplateRepo {
	return &GormTemplateRepo{db: db}
}

// Lookup fetches the template for an exact (code, locale, channel) triple.
// Missing templates are domain.ErrNotFound; the caller decides whether that
// is retryable.
func (r *GormTemplateRepo) Lookup(ctx context.Context, code, locale string, channel domain.Channel) (*domain.Template, error) {
	var model TemplateModel
	err := r.db.WithContext(ctx).
		First(&model, "template_code = ? AND locale = ? AND channel = ?", code, locale, channel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return templateModelToDomain(&model), nil
}

func (r *GormTemplateRepo) Create(ctx context.Context, template *domain.Template) error {
	model := templateModelFromDomain(template)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrConflict
		}
		return err
	}
	if template != nil {
		*template = *templateModelToDomain(model)
	}
	return nil
}

func (r *GormTemplateRepo) List(ctx context.Context) ([]domain.Template, error) {
	var models []TemplateModel
	err := r.db.WithContext(ctx).Order("template_code ASC, locale ASC").Find(&models).Error
	if err != nil {
		return nil, err
	}

	templates := make([]domain.Template, 0, len(models))
	for i := range models {
		templates = append(templates, *templateModelToDomain(&models[i]))
	}

	return templates, nil
}

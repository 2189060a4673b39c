package repository

import (
	"time"

	"github.com/vmelnikov/notiflow/internal/domain"
)

// DeliveryModel is the persistence model for the notification_delivery table.
// job_id is the primary key; idempotency of the ledger hinges on it.
type DeliveryModel struct {
	JobID        string         `gorm:"type:uuid;primaryKey;column:job_id"`
	UserID       string         `gorm:"type:uuid;not null;index"`
	Channel      domain.Channel `gorm:"type:varchar(20);not null"`
	Status       domain.Status  `gorm:"type:varchar(20);not null"`
	Attempts     int            `gorm:"not null;default:0"`
	ErrorCode    *string        `gorm:"type:varchar(100)"`
	ErrorMessage *string        `gorm:"type:text"`
	SentAt       *time.Time     `gorm:"type:timestamptz"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (DeliveryModel) TableName() string {
	return "notification_delivery"
}

// TemplateModel is the persistence model for the templates table.
type TemplateModel struct {
	ID        string         `gorm:"type:uuid;primaryKey"`
	Code      string         `gorm:"type:varchar(100);not null;column:template_code"`
	Locale    string         `gorm:"type:varchar(10);not null"`
	Channel   domain.Channel `gorm:"type:varchar(20);not null"`
	Subject   *string        `gorm:"type:varchar(255)"`
	Body      string         `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (TemplateModel) TableName() string {
	return "templates"
}

// CampaignModel is the persistence model for the campaigns table.
type CampaignModel struct {
	ID              string                `gorm:"type:uuid;primaryKey"`
	Name            string                `gorm:"type:varchar(255);not null"`
	TemplateCode    string                `gorm:"type:varchar(100);not null"`
	SegmentID       string                `gorm:"type:varchar(255);not null"`
	ScheduleCron    string                `gorm:"type:varchar(100);not null"`
	Status          domain.CampaignStatus `gorm:"type:varchar(20);not null"`
	LastTriggeredAt *time.Time            `gorm:"type:timestamptz"`
	RunsCount       int                   `gorm:"not null;default:0"`
	MaxRuns         *int                  `gorm:"type:int"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (CampaignModel) TableName() string {
	return "campaigns"
}

// DeliveryAttemptModel is the persistence model for delivery_attempts audit rows.
type DeliveryAttemptModel struct {
	ID            string  `gorm:"type:uuid;primaryKey"`
	JobID         string  `gorm:"type:uuid;not null;index"`
	AttemptNumber int     `gorm:"not null"`
	Error         *string `gorm:"type:text"`
	CreatedAt     time.Time
}

func (DeliveryAttemptModel) TableName() string {
	return "delivery_attempts"
}

func deliveryModelFromDomain(r *domain.DeliveryRecord) *DeliveryModel {
	if r == nil {
		return nil
	}

	return &DeliveryModel{
		JobID:        r.JobID,
		UserID:       r.UserID,
		Channel:      r.Channel,
		Status:       r.Status,
		Attempts:     r.Attempts,
		ErrorCode:    r.ErrorCode,
		ErrorMessage: r.ErrorMessage,
		SentAt:       r.SentAt,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func deliveryModelToDomain(m *DeliveryModel) *domain.DeliveryRecord {
	if m == nil {
		return nil
	}

	return &domain.DeliveryRecord{
		JobID:        m.JobID,
		UserID:       m.UserID,
		Channel:      m.Channel,
		Status:       m.Status,
		Attempts:     m.Attempts,
		ErrorCode:    m.ErrorCode,
		ErrorMessage: m.ErrorMessage,
		SentAt:       m.SentAt,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func templateModelFromDomain(t *domain.Template) *TemplateModel {
	if t == nil {
		return nil
	}

	return &TemplateModel{
		ID:        t.ID,
		Code:      t.Code,
		Locale:    t.Locale,
		Channel:   t.Channel,
		Subject:   t.Subject,
		Body:      t.Body,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

func templateModelToDomain(m *TemplateModel) *domain.Template {
	if m == nil {
		return nil
	}

	return &domain.Template{
		ID:        m.ID,
		Code:      m.Code,
		Locale:    m.Locale,
		Channel:   m.Channel,
		Subject:   m.Subject,
		Body:      m.Body,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func campaignModelToDomain(m *CampaignModel) *domain.Campaign {
	if m == nil {
		return nil
	}

	return &domain.Campaign{
		ID:              m.ID,
		Name:            m.Name,
		TemplateCode:    m.TemplateCode,
		SegmentID:       m.SegmentID,
		ScheduleCron:    m.ScheduleCron,
		Status:          m.Status,
		LastTriggeredAt: m.LastTriggeredAt,
		RunsCount:       m.RunsCount,
		MaxRuns:         m.MaxRuns,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func attemptModelFromDomain(a *domain.DeliveryAttempt) *DeliveryAttemptModel {
	if a == nil {
		return nil
	}

	return &DeliveryAttemptModel{
		ID:            a.ID,
		JobID:         a.JobID,
		AttemptNumber: a.AttemptNumber,
		Error:         a.Error,
		CreatedAt:     a.CreatedAt,
	}
}

func attemptModelToDomain(m *DeliveryAttemptModel) *domain.DeliveryAttempt {
	if m == nil {
		return nil
	}

	return &domain.DeliveryAttempt{
		ID:            m.ID,
		JobID:         m.JobID,
		AttemptNumber: m.AttemptNumber,
		Error:         m.Error,
		CreatedAt:     m.CreatedAt,
	}
}

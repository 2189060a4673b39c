package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/vmelnikov/notiflow/internal/repository"
)

func createNotificationDeliveryTable() *gormigrate.Migration {
	return &gormigrate.Migration{
		ID: "000002_create_notification_delivery",
		Migrate: func(tx *gorm.DB) error {
			if err := tx.AutoMigrate(&repository.DeliveryModel{}); err != nil {
				return err
			}
			return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_notification_delivery_status_updated ON notification_delivery (status, updated_at)`).Error
		},
		Rollback: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(&repository.DeliveryModel{})
		},
	}
}

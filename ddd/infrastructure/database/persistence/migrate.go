package persistence

import (
	"gorm.io/gorm"

	"distribution-service/ddd/infrastructure/database/po"
	"distribution-service/pkg/logger"
)

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&po.UploadSession{},
		&po.Video{},
		&po.VideoVariant{},
		&po.PlatformPublication{},
		&po.PlatformCredential{},
	); err != nil {
		logger.Errorf("auto migrate failed: %v", err)
		return err
	}
	logger.Info("database schema migrated")
	return nil
}

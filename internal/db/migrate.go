package db

import (
	"fmt"

	"github.com/porsino-app/porsino-server/internal/models"
	"gorm.io/gorm"
)

// Migrate runs AutoMigrate for all persisted models.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}
	return conn.AutoMigrate(
		&models.User{},
		&models.Flashcard{},
		&models.MistakeLog{},
		&models.ActivityProgress{},
		&models.ChapterProgress{},
		&models.VerificationCode{},
		&models.Plan{},
		&models.DiscountCode{},
		&models.Transaction{},
		&models.Chat{},
		&models.Message{},
		&models.TokenUsage{},
		&models.Setting{},
	)
}

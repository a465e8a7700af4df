package repository

import (
	"fmt"

	"gorm.io/gorm"

	"paperbrain/internal/model"
)

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.User{},
		&model.Document{},
		&model.ChatSession{},
		&model.Message{},
	); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}
	return nil
}

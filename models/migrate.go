package models

import (
	"log"

	"grantlink/config"
)

// Migrate 自动迁移
func Migrate() {
	err := config.DB.AutoMigrate(
		&User{},
		&Conversation{},
		&Message{},
	)
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
}

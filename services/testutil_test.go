package services

import (
	"testing"
	"time"

	"grantlink/config"
	"grantlink/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB points config.DB at a fresh in-memory sqlite database. A single
// pooled connection keeps every goroutine on the same memory store.
func setupTestDB(t *testing.T) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Conversation{}, &models.Message{}))

	config.DB = db
	t.Cleanup(func() {
		config.DB = nil
		sqlDB.Close()
	})
}

func createTestUser(t *testing.T, role, firstName, lastName string) *models.User {
	t.Helper()
	user := &models.User{
		ID:        uuid.New().String(),
		Email:     uuid.New().String() + "@example.edu",
		Password:  "hashed",
		Role:      role,
		FirstName: firstName,
		LastName:  lastName,
	}
	require.NoError(t, config.DB.Create(user).Error)
	return user
}

func createTestConversation(t *testing.T, a, b *models.User) *models.Conversation {
	t.Helper()
	conv := &models.Conversation{
		ID:             uuid.New().String(),
		Participant1ID: a.ID,
		Participant2ID: b.ID,
		PairKey:        PairKey(a.ID, b.ID),
	}
	require.NoError(t, config.DB.Create(conv).Error)
	return conv
}

func createTestMessage(t *testing.T, conv *models.Conversation, senderID string, content string, at time.Time) *models.Message {
	t.Helper()
	msg := &models.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		ReceiverID:     conv.OtherParticipant(senderID),
		Content:        content,
		MessageType:    "text",
		CreatedAt:      at,
	}
	require.NoError(t, config.DB.Create(msg).Error)
	return msg
}

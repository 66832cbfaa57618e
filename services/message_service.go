package services

import (
	"fmt"
	"log"
	"strings"
	"time"

	"grantlink/config"
	"grantlink/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PreviewLimit 会话预览最大长度（按字符数）
const PreviewLimit = 120

// FileMeta 文件消息元数据
type FileMeta struct {
	URL  string
	Name string
	Type string
	Size int64
}

func truncatePreview(content string) string {
	runes := []rune(content)
	if len(runes) <= PreviewLimit {
		return content
	}
	return string(runes[:PreviewLimit])
}

// SendMessage validates the sender's membership, persists the message and
// refreshes the parent conversation's preview cache.
//
// The two writes are ordered message-first, preview-second: a message without
// an updated preview only makes list views stale, while a preview pointing at
// a message that does not exist must never happen. Preview failure is
// therefore logged and swallowed; message failure aborts the send.
func SendMessage(senderID, conversationID, content, messageType string, file *FileMeta) (*models.Message, error) {
	if senderID == "" {
		return nil, ErrUnauthenticated
	}

	conversation, err := getConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(senderID) {
		return nil, ErrUnauthorized
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrInvalidContent
	}
	if messageType == "" {
		messageType = "text"
	}

	message := models.Message{
		ID:             uuid.New().String(),
		ConversationID: conversation.ID,
		SenderID:       senderID,
		ReceiverID:     conversation.OtherParticipant(senderID),
		Content:        content,
		MessageType:    messageType,
		CreatedAt:      time.Now(),
	}
	if file != nil {
		message.FileURL = file.URL
		message.FileName = file.Name
		message.FileType = file.Type
		message.FileSize = file.Size
	}

	if err := config.DB.Create(&message).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	// 更新会话预览与排序时间
	preview := truncatePreview(content)
	at := message.CreatedAt
	err = config.DB.Model(&models.Conversation{}).
		Where("id = ?", conversation.ID).
		Updates(map[string]interface{}{"last_message_preview": preview, "last_message_at": at}).Error
	if err != nil {
		log.Println("Failed to update conversation preview:", err)
	} else {
		conversation.LastMessagePreview = preview
		conversation.LastMessageAt = &at
	}

	// ws推送消息
	Feed.PublishMessageInsert(&message)
	Feed.PublishConversationUpdate(conversation)

	if !UserOnline(message.ReceiverID) {
		NotifyNewMessage(&message)
	}

	return &message, nil
}

// FetchMessages returns the conversation's full history in chronological
// order and, read-on-view, marks everything addressed to the caller as read.
// Callers that only want a preview must not use this operation, or they will
// produce read receipts for messages the user never saw.
func FetchMessages(conversationID, callerID string) ([]models.Message, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}

	conversation, err := getConversation(conversationID)
	if err != nil {
		return nil, err
	}
	if !conversation.HasParticipant(callerID) {
		return nil, ErrUnauthorized
	}

	var messages []models.Message
	err = config.DB.
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC"). // 按时间排序（最早的在前），同时间按 ID
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	// A read-state failure only delays the sender's read ticks, so it is
	// logged and swallowed rather than failing the fetch.
	if _, err := MarkConversationRead(conversationID, callerID); err != nil {
		log.Println("Failed to mark conversation read:", err)
	}

	return messages, nil
}

// MarkConversationRead flips every unread message addressed to readerID in
// the conversation to read in one batch UPDATE and returns the number of rows
// changed. Repeated calls are no-ops returning 0; read_at never changes once
// set.
//
// The SELECT and UPDATE share a transaction, with the UPDATE keyed to the
// selected ids: a message appended mid-call stays unread instead of being
// flipped without a read event reaching its sender.
func MarkConversationRead(conversationID, readerID string) (int64, error) {
	var unread []models.Message
	var affected int64
	now := time.Now()

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		err := tx.
			Where("conversation_id = ? AND receiver_id = ? AND is_read = ?", conversationID, readerID, false).
			Find(&unread).Error
		if err != nil {
			return err
		}
		if len(unread) == 0 {
			return nil
		}

		ids := make([]string, len(unread))
		for i := range unread {
			ids[i] = unread[i].ID
		}
		result := tx.Model(&models.Message{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{"is_read": true, "read_at": now})
		if result.Error != nil {
			return result.Error
		}
		affected = result.RowsAffected
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	// Read updates go to the original sender so their client can turn the
	// single tick into a double one.
	for i := range unread {
		unread[i].IsRead = true
		unread[i].ReadAt = &now
		Feed.PublishMessageRead(&unread[i])
	}

	return affected, nil
}

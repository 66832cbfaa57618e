package services

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"grantlink/config"
	"grantlink/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConversationScope 会话来源（申请/岗位），仅在首次创建时记录
type ConversationScope struct {
	ApplicationID string
	GrantID       string
}

// PairKey 生成无序参与者对的规范键，避免重复会话
func PairKey(userID1, userID2 string) string {
	ids := []string{userID1, userID2}
	sort.Strings(ids)
	return fmt.Sprintf("%s_%s", ids[0], ids[1])
}

// GetOrCreateConversation resolves the unordered pair (callerID, otherID) to a
// single conversation id, creating the row on first contact.
//
// A plain find-then-create here is a real race: both participants opening a
// brand-new chat at the same time would each miss the other's row and insert a
// duplicate. The unique index on pair_key plus OnConflict DoNothing turns the
// create into an atomic insert-if-absent; whoever loses the race re-reads the
// winner's row.
func GetOrCreateConversation(callerID, otherID string, scope *ConversationScope) (string, error) {
	if callerID == "" {
		return "", ErrUnauthenticated
	}
	if otherID == "" || callerID == otherID {
		return "", ErrInvalidParticipants
	}

	key := PairKey(callerID, otherID)

	var existing models.Conversation
	err := config.DB.Where("pair_key = ?", key).First(&existing).Error
	if err == nil {
		return existing.ID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	conversation := models.Conversation{
		ID:             uuid.New().String(),
		Participant1ID: callerID,
		Participant2ID: otherID,
		PairKey:        key,
	}
	if scope != nil {
		conversation.ApplicationID = scope.ApplicationID
		conversation.GrantID = scope.GrantID
	}

	result := config.DB.
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "pair_key"}}, DoNothing: true}).
		Create(&conversation)
	if result.Error != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, result.Error)
	}
	if result.RowsAffected == 0 {
		// Lost the race, the other participant's insert won.
		if err := config.DB.Where("pair_key = ?", key).First(&existing).Error; err != nil {
			return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		return existing.ID, nil
	}

	return conversation.ID, nil
}

// ConversationEntry 会话列表项（含对方信息与未读数）
type ConversationEntry struct {
	ID            string     `json:"id"`
	OtherUserID   string     `json:"other_user_id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	AvatarURL     string     `json:"avatar_url"`
	Role          string     `json:"role"`
	LastMessage   string     `json:"last_message"`
	LastMessageAt *time.Time `json:"last_message_at"`
	UnreadCount   int64      `json:"unread_count"`
	Online        bool       `json:"online"`
	ApplicationID string     `json:"application_id,omitempty"`
	GrantID       string     `json:"grant_id,omitempty"`
}

// ListConversations returns every conversation the user participates in,
// newest activity first, with per-conversation unread counts.
func ListConversations(userID string) ([]ConversationEntry, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	var conversations []models.Conversation
	err := config.DB.
		Preload("Participant1User").
		Preload("Participant2User").
		Where("participant1_id = ? OR participant2_id = ?", userID, userID).
		Order("last_message_at IS NULL, last_message_at DESC").
		Find(&conversations).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	// One grouped query for all unread counts instead of N count queries.
	type unreadRow struct {
		ConversationID string
		Total          int64
	}
	var unread []unreadRow
	err = config.DB.Model(&models.Message{}).
		Select("conversation_id, count(*) as total").
		Where("receiver_id = ? AND is_read = ?", userID, false).
		Group("conversation_id").
		Scan(&unread).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	unreadByID := make(map[string]int64, len(unread))
	for _, row := range unread {
		unreadByID[row.ConversationID] = row.Total
	}

	entries := make([]ConversationEntry, 0, len(conversations))
	for _, conv := range conversations {
		other := &conv.Participant1User
		if conv.Participant1ID == userID {
			other = &conv.Participant2User
		}
		entries = append(entries, ConversationEntry{
			ID:            conv.ID,
			OtherUserID:   other.ID,
			Name:          other.DisplayName(),
			Email:         other.Email,
			AvatarURL:     other.AvatarURL,
			Role:          other.Role,
			LastMessage:   conv.LastMessagePreview,
			LastMessageAt: conv.LastMessageAt,
			UnreadCount:   unreadByID[conv.ID],
			Online:        UserOnline(other.ID),
			ApplicationID: conv.ApplicationID,
			GrantID:       conv.GrantID,
		})
	}
	return entries, nil
}

// getConversation loads a conversation or maps the miss to ErrNotFound.
func getConversation(conversationID string) (*models.Conversation, error) {
	var conversation models.Conversation
	err := config.DB.Where("id = ?", conversationID).First(&conversation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return &conversation, nil
}

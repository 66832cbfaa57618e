package models

import "time"

// Conversation is the single channel between two participants. PairKey is the
// sorted "low_high" join of the two participant IDs; the unique index on it is
// what makes the resolver's insert-if-absent safe under concurrent callers.
type Conversation struct {
	ID             string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Participant1ID string `gorm:"type:varchar(36);index" json:"participant1_id"`
	Participant2ID string `gorm:"type:varchar(36);index" json:"participant2_id"`
	PairKey        string `gorm:"type:varchar(80);uniqueIndex" json:"-"`
	// 申请/岗位来源，仅记录，不参与唯一性
	ApplicationID string `gorm:"type:varchar(36)" json:"application_id,omitempty"`
	GrantID       string `gorm:"type:varchar(36)" json:"grant_id,omitempty"`
	// Denormalized cache of the latest message, maintained by the delivery
	// service only. Never written by clients.
	LastMessagePreview string     `gorm:"type:varchar(160)" json:"last_message_preview"`
	LastMessageAt      *time.Time `json:"last_message_at"`
	CreatedAt          time.Time  `gorm:"autoCreateTime" json:"created_at"`
	// 关联用户1和用户2
	Participant1User User `gorm:"foreignKey:Participant1ID;references:ID" json:"-"`
	Participant2User User `gorm:"foreignKey:Participant2ID;references:ID" json:"-"`
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.Participant1ID == userID || c.Participant2ID == userID
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.Participant1ID == userID {
		return c.Participant2ID
	}
	return c.Participant1ID
}

package models

import "time"

type Message struct {
	ID             string `json:"id" gorm:"primaryKey;type:varchar(36)"`
	ConversationID string `json:"conversation_id" gorm:"type:varchar(36);index:idx_conversation_created,priority:1"`
	SenderID       string `json:"sender_id" gorm:"type:varchar(36)"`
	ReceiverID     string `json:"receiver_id" gorm:"type:varchar(36);index:idx_receiver_unread,priority:1"`
	Content        string `json:"content" gorm:"type:text"`
	MessageType    string `json:"message_type" gorm:"type:varchar(16)"` // "text" or "file"
	// 文件元数据，仅 message_type = "file" 时使用
	FileURL  string `json:"file_url,omitempty" gorm:"type:varchar(512)"`
	FileName string `json:"file_name,omitempty" gorm:"type:varchar(256)"`
	FileType string `json:"file_type,omitempty" gorm:"type:varchar(64)"`
	FileSize int64  `json:"file_size,omitempty"`
	// Read state only ever transitions false -> true; ReadAt is set with the
	// flip and never changes afterwards.
	IsRead    bool       `json:"is_read" gorm:"default:false;index:idx_receiver_unread,priority:2"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at" gorm:"index:idx_conversation_created,priority:2"`
}

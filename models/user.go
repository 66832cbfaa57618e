package models

import (
	"time"

	"gorm.io/gorm"
)

// User 用户模型
type User struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Email     string         `json:"email" gorm:"unique;not null"`
	Password  string         `json:"-" gorm:"not null"`
	Role      string         `json:"role" gorm:"type:varchar(16);default:'student'"` // "student" or "professor"
	FirstName string         `json:"first_name"`
	LastName  string         `json:"last_name"`
	AvatarURL string         `json:"avatar_url"`
	LastLogin *time.Time     `json:"last_login" gorm:"default:NULL"` // 允许 NULL
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// DisplayName falls back to the email when the profile has no name yet.
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session records an issued token so logout can revoke it before expiry.
type Session struct {
	ID           string    `gorm:"type:char(36);primaryKey" json:"id"`
	UserID       string    `gorm:"type:char(36);index;not null" json:"user_id"`
	SessionToken string    `gorm:"type:varchar(1024);index" json:"session_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	ClientIP     string    `gorm:"type:varchar(45)" json:"client_ip"`
	Browser      string    `gorm:"type:varchar(512)" json:"browser"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

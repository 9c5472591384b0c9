package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RegisteredService is a tenant-owned application instance that submits
// logs authenticated by its API key.
type RegisteredService struct {
	ID          string `gorm:"type:char(36);primaryKey" json:"id"`
	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Version     string `gorm:"type:varchar(64)" json:"version"`
	ServiceType string `gorm:"type:varchar(64)" json:"service_type"`
	APIKey      string `gorm:"type:varchar(128);uniqueIndex" json:"api_key"`

	ClientID   string `gorm:"type:char(36);index;not null" json:"client_id"`
	ClientName string `gorm:"type:varchar(255)" json:"client_name"`

	Environment              string `gorm:"type:varchar(64)" json:"environment"`
	ReportingIntervalMinutes int    `gorm:"default:60" json:"reporting_interval_minutes"`

	IsActive          bool       `gorm:"default:true" json:"is_active"`
	IsOnline          bool       `json:"is_online"`
	LastLogReceivedAt *time.Time `json:"last_log_received_at"`

	AlertsEnabled        bool                       `gorm:"default:true" json:"alerts_enabled"`
	AlertThreshold       LogLevel                   `gorm:"default:4" json:"alert_threshold"`
	AlertEmailRecipients datatypes.JSONSlice[string] `json:"alert_email_recipients"`
	WebhookURL           string                     `gorm:"type:varchar(512)" json:"webhook_url"`

	Metadata       datatypes.JSONMap `json:"metadata"`
	SourceCodePath string            `gorm:"type:varchar(512)" json:"source_code_path"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *RegisteredService) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Client is a tenant owning zero or more registered services.
type Client struct {
	ID           string `gorm:"type:char(36);primaryKey" json:"id"`
	Name         string `gorm:"type:varchar(255);not null" json:"name"`
	ClientNumber string `gorm:"type:varchar(64);uniqueIndex" json:"client_number"`
	Description  string `gorm:"type:text" json:"description"`
	Email        string `gorm:"type:varchar(255)" json:"email"`
	Phone        string `gorm:"type:varchar(32)" json:"phone"`
	Address      string `gorm:"type:varchar(512)" json:"address"`
	IsActive     bool   `gorm:"default:true" json:"is_active"`

	Contacts             []ContactPerson      `gorm:"foreignKey:ClientID" json:"contacts"`
	NotificationSettings NotificationSettings `gorm:"embedded;embeddedPrefix:notify_" json:"notification_settings"`
	Metadata             datatypes.JSONMap    `json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *Client) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// ContactPerson is someone reachable at a client, optionally on the alert
// recipient list.
type ContactPerson struct {
	ID            string `gorm:"type:char(36);primaryKey" json:"id"`
	ClientID      string `gorm:"type:char(36);index;not null" json:"client_id"`
	Name          string `gorm:"type:varchar(255);not null" json:"name"`
	Role          string `gorm:"type:varchar(128)" json:"role"`
	Email         string `gorm:"type:varchar(255)" json:"email"`
	Phone         string `gorm:"type:varchar(32)" json:"phone"`
	ReceiveAlerts bool   `json:"receive_alerts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p *ContactPerson) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// NotificationSettings is a client's channel configuration, embedded on the
// client row.
type NotificationSettings struct {
	EmailEnabled   bool     `gorm:"default:true" json:"email_enabled"`
	SMSEnabled     bool     `json:"sms_enabled"`
	WebhookEnabled bool     `json:"webhook_enabled"`
	WebhookURL     string   `gorm:"type:varchar(512)" json:"webhook_url"`
	Threshold      LogLevel `gorm:"default:4" json:"threshold"`
}

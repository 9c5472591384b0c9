package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// LogEntry is a single log record submitted by a registered service.
// Entries are immutable after ingestion except for the AI analysis fields,
// which are written once when an analysis completes.
type LogEntry struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	Timestamp time.Time `gorm:"index" json:"timestamp"`
	Level     LogLevel  `gorm:"index" json:"level"`
	Message   string    `gorm:"type:text" json:"message"`

	// Service and client identity are denormalized onto the entry so
	// searches do not need joins.
	ServiceID      string `gorm:"type:char(36);index" json:"service_id"`
	ServiceName    string `gorm:"type:varchar(255)" json:"service_name"`
	ServiceVersion string `gorm:"type:varchar(64)" json:"service_version"`
	Environment    string `gorm:"type:varchar(64)" json:"environment"`
	ClientID       string `gorm:"type:char(36);index" json:"client_id"`
	ClientName     string `gorm:"type:varchar(255)" json:"client_name"`

	Category              string `gorm:"type:varchar(255)" json:"category"`
	CorrelationID         string `gorm:"type:varchar(128);index" json:"correlation_id"`
	ContextData           string `gorm:"type:text" json:"context_data"`
	ExceptionDetails      string `gorm:"type:text" json:"exception_details"`
	StackTrace            string `gorm:"type:text" json:"stack_trace"`
	ContainsSensitiveData bool   `json:"contains_sensitive_data"`
	IPAddress             string `gorm:"type:varchar(45)" json:"ip_address"`

	AnalyzedByAI     bool   `json:"analyzed_by_ai"`
	AIAnalysisResult string `gorm:"type:text" json:"ai_analysis_result"`

	ReceivedAt time.Time         `gorm:"index" json:"received_at"`
	Metadata   datatypes.JSONMap `json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (e *LogEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}

package util

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/logcentral/platform/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SecurityEventType represents different types of security events
type SecurityEventType string

const (
	EventLoginSuccess       SecurityEventType = "LOGIN_SUCCESS"
	EventLoginFailure       SecurityEventType = "LOGIN_FAILURE"
	EventLogout             SecurityEventType = "LOGOUT"
	EventAccountLocked      SecurityEventType = "ACCOUNT_LOCKED"
	EventPasswordChanged    SecurityEventType = "PASSWORD_CHANGED"
	EventUnauthorizedAccess SecurityEventType = "UNAUTHORIZED_ACCESS"
	EventAPIKeyRejected     SecurityEventType = "API_KEY_REJECTED"
	EventAPIKeyRegenerated  SecurityEventType = "API_KEY_REGENERATED"
	EventRateLimitExceeded  SecurityEventType = "RATE_LIMIT_EXCEEDED"
	EventSuspiciousActivity SecurityEventType = "SUSPICIOUS_ACTIVITY"
	EventEndpointCall       SecurityEventType = "ENDPOINT_CALL"
)

// SecurityEvent represents a security event to be logged
type SecurityEvent struct {
	EventType SecurityEventType
	UserID    string
	Email     string
	IP        string
	UserAgent string
	Message   string
	Details   map[string]interface{}
}

var securityLogger *log.Logger
var securityDB *gorm.DB

// SetSecurityLoggerDB sets a gorm DB instance used by the security logger.
// Call this during application startup after DB initialization.
func SetSecurityLoggerDB(db *gorm.DB) {
	securityDB = db
}

func init() {
	securityLogger = log.New(os.Stdout, "[SECURITY] ", log.LstdFlags|log.Lmsgprefix)
}

// sanitizeLogValue removes newlines and other characters that could break log parsing
func sanitizeLogValue(value string) string {
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.ReplaceAll(value, "\t", " ")
	// Truncate very long values to prevent log flooding
	if len(value) > 200 {
		value = value[:200] + "..."
	}
	return value
}

// LogSecurityEvent logs a security event
func LogSecurityEvent(event SecurityEvent) {
	// Sanitize all string fields to prevent log injection
	msg := fmt.Sprintf("Event=%s UserID=%s Email=%s IP=%s UserAgent=%s Message=%s",
		sanitizeLogValue(string(event.EventType)),
		sanitizeLogValue(event.UserID),
		sanitizeLogValue(event.Email),
		sanitizeLogValue(event.IP),
		sanitizeLogValue(event.UserAgent),
		sanitizeLogValue(event.Message),
	)

	if len(event.Details) > 0 {
		// Don't log the Details map directly to avoid injection
		msg = fmt.Sprintf("%s DetailsCount=%d", msg, len(event.Details))
	}

	securityLogger.Println(msg)

	// Persist to DB if available (best-effort, do not fail operation)
	if securityDB != nil {
		var details datatypes.JSON
		if event.Details != nil {
			if b, err := json.Marshal(event.Details); err == nil {
				details = datatypes.JSON(b)
			}
		}
		record := model.SecurityLog{
			EventType: string(event.EventType),
			UserID:    event.UserID,
			Email:     event.Email,
			IP:        event.IP,
			UserAgent: event.UserAgent,
			Message:   event.Message,
			Details:   details,
		}
		if err := securityDB.Create(&record).Error; err != nil {
			securityLogger.Printf("failed to persist security event: %v", err)
		}
	}
}

// LogLoginFailure records a failed login attempt.
func LogLoginFailure(email, ip, userAgent, reason string) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventLoginFailure,
		Email:     email,
		IP:        ip,
		UserAgent: userAgent,
		Message:   reason,
	})
}

// LogLoginSuccess records a successful login.
func LogLoginSuccess(userID, email, ip, userAgent string) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventLoginSuccess,
		UserID:    userID,
		Email:     email,
		IP:        ip,
		UserAgent: userAgent,
		Message:   "login successful",
	})
}

// LogLogout records a session logout.
func LogLogout(userID, email, ip, userAgent string) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventLogout,
		UserID:    userID,
		Email:     email,
		IP:        ip,
		UserAgent: userAgent,
		Message:   "logout",
	})
}

// LogAccountLocked records an account lockout.
func LogAccountLocked(userID, email, ip, reason string) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventAccountLocked,
		UserID:    userID,
		Email:     email,
		IP:        ip,
		Message:   reason,
	})
}

// LogAPIKeyRejected records an ingestion attempt with a bad API key.
func LogAPIKeyRejected(ip, userAgent string) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventAPIKeyRejected,
		IP:        ip,
		UserAgent: userAgent,
		Message:   "invalid or revoked API key",
	})
}

// LogAPIKeyRegenerated records a credential rotation for a service.
func LogAPIKeyRegenerated(email, serviceID, ip string) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventAPIKeyRegenerated,
		Email:     email,
		IP:        ip,
		Message:   "service API key regenerated",
		Details:   map[string]interface{}{"service_id": serviceID},
	})
}

// LogRateLimitExceeded records a request rejected by the rate limiter.
func LogRateLimitExceeded(userID, ip, endpoint string) {
	LogSecurityEvent(SecurityEvent{
		EventType: EventRateLimitExceeded,
		UserID:    userID,
		IP:        ip,
		Message:   fmt.Sprintf("rate limit exceeded on %s", endpoint),
	})
}

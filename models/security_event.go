package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SecurityEventType represents the kind of security signal being recorded
type SecurityEventType string

const (
	SecurityEventRateLimited      SecurityEventType = "rate_limit_exceeded"
	SecurityEventPayloadTooLarge  SecurityEventType = "payload_too_large"
	SecurityEventHeaderAnomaly    SecurityEventType = "suspicious_headers"
	SecurityEventAuthFailed       SecurityEventType = "authentication_failed"
	SecurityEventChannelDenied    SecurityEventType = "channel_join_denied"
	SecurityEventMessageDenied    SecurityEventType = "message_denied"
	SecurityEventUnexpectedFields SecurityEventType = "unexpected_fields"
)

// SecurityEvent is a write-only record of a rejection or anomaly
type SecurityEvent struct {
	ID        uuid.UUID         `json:"id" db:"id"`
	Type      SecurityEventType `json:"type" db:"type"`
	IP        string            `json:"ip" db:"ip_address"`
	UserAgent string            `json:"userAgent" db:"user_agent"`
	Path      string            `json:"path" db:"path"`
	Method    string            `json:"method" db:"method"`
	RequestID string            `json:"requestId,omitempty" db:"request_id"`
	Timestamp time.Time         `json:"timestamp" db:"timestamp"`
	Details   json.RawMessage   `json:"details,omitempty" db:"details"`
}

// TableName returns the table name for the SecurityEvent model
func (SecurityEvent) TableName() string {
	return "security_events"
}

// NewSecurityEvent creates a new SecurityEvent instance
func NewSecurityEvent(eventType SecurityEventType) *SecurityEvent {
	return &SecurityEvent{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// WithRequest sets request metadata
func (e *SecurityEvent) WithRequest(ip, userAgent, method, path, requestID string) *SecurityEvent {
	e.IP = ip
	e.UserAgent = userAgent
	e.Method = method
	e.Path = path
	e.RequestID = requestID
	return e
}

// WithDetails sets the details
func (e *SecurityEvent) WithDetails(details interface{}) *SecurityEvent {
	if data, err := json.Marshal(details); err == nil {
		e.Details = data
	}
	return e
}

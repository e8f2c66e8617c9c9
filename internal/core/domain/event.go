package domain

import "time"

// Event is one entry in the persistent error log.
type Event struct {
	ID        string         `json:"id"        db:"id"`
	EventType EventType      `json:"type"      db:"event_type"`
	Detector  Domain         `json:"detector"  db:"detector"`
	Level     string         `json:"level"     db:"level"`
	Message   string         `json:"message"   db:"message"`
	Data      map[string]any `json:"data"      db:"-"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
}

type EventType string

const (
	EventTypeErrorDetected       EventType = "error_detected"
	EventTypeRecoverySucceeded   EventType = "recovery_succeeded"
	EventTypeRecoveryFailed      EventType = "recovery_failed"
	EventTypeDegraded            EventType = "degraded"
	EventTypeRestored            EventType = "restored"
	EventTypeCriticalSystemError EventType = "critical_system_error"
)

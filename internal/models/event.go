package models

import "time"

// SecurityEventType identifies a lifecycle transition recorded in the events log.
type SecurityEventType string

const (
	EventAlertRaised       SecurityEventType = "alert_raised"
	EventAlertResolved     SecurityEventType = "alert_resolved"
	EventAlertAcknowledged SecurityEventType = "alert_acknowledged"
	EventAlarmStateChanged SecurityEventType = "alarm_state_changed"
	EventArmedStateChanged SecurityEventType = "armed_state_changed"
)

// ParseSecurityEventType converts a string to a SecurityEventType.
func ParseSecurityEventType(s string) (SecurityEventType, bool) {
	switch SecurityEventType(s) {
	case EventAlertRaised, EventAlertResolved, EventAlertAcknowledged,
		EventAlarmStateChanged, EventArmedStateChanged:
		return SecurityEventType(s), true
	default:
		return "", false
	}
}

// SecurityEvent is an append-only record of a lifecycle transition.
// Rows are immutable once written.
type SecurityEvent struct {
	ID             string            `json:"id"`
	Timestamp      time.Time         `json:"timestamp"`
	Type           SecurityEventType `json:"type"`
	Severity       *Severity         `json:"severity,omitempty"`
	AlertID        string            `json:"alert_id,omitempty"`
	AlertType      AlertType         `json:"alert_type,omitempty"`
	SourceDeviceID string            `json:"source_device_id,omitempty"`
	// Payload carries transition details, e.g. {"from": ..., "to": ...}.
	Payload map[string]any `json:"payload,omitempty"`
}

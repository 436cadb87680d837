package models

import "time"

// AlertAcknowledgment is the persisted acknowledgment state for one alert id.
// A newer occurrence of the same alert flips Acknowledged back to false.
type AlertAcknowledgment struct {
	AlertID        string     `json:"alert_id"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	// LastEventAt is the alert occurrence time this acknowledgment applies to.
	LastEventAt    *time.Time `json:"last_event_at,omitempty"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

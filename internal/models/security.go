package models

import (
	"fmt"
	"time"
)

// Severity represents the severity of an alert or status.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rank returns the total order used for max-reduction: info < warning < critical.
func (s Severity) Rank() int {
	switch s {
	case SeverityWarning:
		return 1
	case SeverityCritical:
		return 2
	default:
		return 0
	}
}

// ParseSeverity converts a string to a Severity.
func ParseSeverity(s string) (Severity, bool) {
	switch Severity(s) {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return Severity(s), true
	default:
		return "", false
	}
}

// MaxSeverity returns the more severe of a and b.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ArmedState is the arming mode of the security system.
type ArmedState string

const (
	ArmedStateDisarmed   ArmedState = "disarmed"
	ArmedStateArmedHome  ArmedState = "armed_home"
	ArmedStateArmedAway  ArmedState = "armed_away"
	ArmedStateArmedNight ArmedState = "armed_night"
)

// ParseArmedState converts a raw property value to an ArmedState.
// Unrecognized values are not an error; callers treat them as unknown.
func ParseArmedState(s string) (ArmedState, bool) {
	switch s {
	case "disarmed":
		return ArmedStateDisarmed, true
	case "armed_home", "home":
		return ArmedStateArmedHome, true
	case "armed_away", "away":
		return ArmedStateArmedAway, true
	case "armed_night", "night":
		return ArmedStateArmedNight, true
	default:
		return "", false
	}
}

// AlarmState is the alarm lifecycle state of a panel.
type AlarmState string

const (
	AlarmStateIdle      AlarmState = "idle"
	AlarmStatePending   AlarmState = "pending"
	AlarmStateTriggered AlarmState = "triggered"
	AlarmStateSilenced  AlarmState = "silenced"
)

// Urgency ranks alarm states: idle < silenced < pending < triggered.
func (a AlarmState) Urgency() int {
	switch a {
	case AlarmStateSilenced:
		return 1
	case AlarmStatePending:
		return 2
	case AlarmStateTriggered:
		return 3
	default:
		return 0
	}
}

// ParseAlarmState converts a raw property value to an AlarmState.
func ParseAlarmState(s string) (AlarmState, bool) {
	switch AlarmState(s) {
	case AlarmStateIdle, AlarmStatePending, AlarmStateTriggered, AlarmStateSilenced:
		return AlarmState(s), true
	default:
		return "", false
	}
}

// AlertType identifies the kind of exceptional condition an alert reports.
type AlertType string

const (
	AlertTypeIntrusion     AlertType = "intrusion"
	AlertTypeEntryOpen     AlertType = "entry_open"
	AlertTypeSmoke         AlertType = "smoke"
	AlertTypeCO            AlertType = "co"
	AlertTypeWaterLeak     AlertType = "water_leak"
	AlertTypeGas           AlertType = "gas"
	AlertTypeTamper        AlertType = "tamper"
	AlertTypeFault         AlertType = "fault"
	AlertTypeDeviceOffline AlertType = "device_offline"
)

// ParseAlertType converts a string to an AlertType.
func ParseAlertType(s string) (AlertType, bool) {
	switch AlertType(s) {
	case AlertTypeIntrusion, AlertTypeEntryOpen, AlertTypeSmoke, AlertTypeCO,
		AlertTypeWaterLeak, AlertTypeGas, AlertTypeTamper, AlertTypeFault,
		AlertTypeDeviceOffline:
		return AlertType(s), true
	default:
		return "", false
	}
}

// IsIntrusionClass reports whether the type is downgraded while disarmed.
// Life-safety types (smoke, co, leak, gas) are never downgraded.
func (t AlertType) IsIntrusionClass() bool {
	return t == AlertTypeIntrusion || t == AlertTypeEntryOpen
}

// AlertID builds the deterministic alert identifier for a condition.
// The id is stable across recomputations for the same condition.
func AlertID(providerKey, deviceID string, t AlertType) string {
	return fmt.Sprintf("%s:%s:%s", providerKey, deviceID, t)
}

// SecurityAlert is a specific active exceptional condition.
type SecurityAlert struct {
	ID             string    `json:"id"`
	Type           AlertType `json:"type"`
	Severity       Severity  `json:"severity"`
	SourceDeviceID string    `json:"source_device_id"`
	Timestamp      time.Time `json:"timestamp"`
	// Acknowledged is computed per status snapshot, never persisted on the alert.
	Acknowledged bool `json:"acknowledged"`
}

// LastEvent describes the most recent security-relevant occurrence.
type LastEvent struct {
	Type           string    `json:"type"`
	Timestamp      time.Time `json:"timestamp"`
	SourceDeviceID string    `json:"source_device_id,omitempty"`
	Severity       *Severity `json:"severity,omitempty"`
}

// SecuritySignal is one provider's partial contribution to overall status.
// All fields are optional; a provider may report nothing.
type SecuritySignal struct {
	ArmedState        *ArmedState
	AlarmState        *AlarmState
	HighestSeverity   *Severity
	ActiveAlertsCount *int
	HasCriticalAlert  *bool
	ActiveAlerts      []SecurityAlert
	LastEvent         *LastEvent
}

// SecurityStatus is the merged, authoritative security state at a point in time.
// Immutable once returned by the aggregator.
type SecurityStatus struct {
	ArmedState        *ArmedState     `json:"armed_state"`
	AlarmState        *AlarmState     `json:"alarm_state"`
	HighestSeverity   Severity        `json:"highest_severity"`
	ActiveAlertsCount int             `json:"active_alerts_count"`
	HasCriticalAlert  bool            `json:"has_critical_alert"`
	ActiveAlerts      []SecurityAlert `json:"active_alerts"`
	LastEvent         *LastEvent      `json:"last_event,omitempty"`
}

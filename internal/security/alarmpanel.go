package security

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/good-yellow-bee/homewatch/internal/models"
	"github.com/good-yellow-bee/homewatch/internal/registry"
)

// AlarmPanelProvider derives a security signal from devices in the "alarm"
// category: arming mode, alarm lifecycle state, tamper/fault conditions, and
// an optional JSON-encoded last event.
type AlarmPanelProvider struct {
	devices registry.Lister
}

// NewAlarmPanelProvider constructs the alarm-panel provider.
func NewAlarmPanelProvider(devices registry.Lister) *AlarmPanelProvider {
	return &AlarmPanelProvider{devices: devices}
}

// Key returns the provider identity.
func (p *AlarmPanelProvider) Key() string {
	return "alarm"
}

// panelState is the resolved per-device view of one alarm panel.
type panelState struct {
	deviceID    string
	armed       *models.ArmedState
	alarm       models.AlarmState
	alarmAt     time.Time
	tampered    bool
	tamperedAt  time.Time
	activeFalse bool
	fault       float64
	faultAt     time.Time
	lastEvent   *models.LastEvent
}

// Signals resolves every alarm device and merges them deterministically.
func (p *AlarmPanelProvider) Signals(ctx context.Context, sc *SignalContext) (models.SecuritySignal, error) {
	devices := sc.Devices
	if devices == nil {
		var err error
		devices, err = p.devices.ListDevices(ctx)
		if err != nil {
			return models.SecuritySignal{}, fmt.Errorf("alarm provider: list devices: %w", err)
		}
	}

	var panels []panelState
	for i := range devices {
		device := &devices[i]
		if device.Category != models.DeviceCategoryAlarm {
			continue
		}
		channel, ok := device.Channel(models.ChannelCategoryAlarm)
		if !ok {
			continue
		}
		panels = append(panels, resolvePanel(device.ID, channel))
	}
	if len(panels) == 0 {
		return models.SecuritySignal{}, nil
	}

	// Stable multi-panel merge: armed state comes from the first panel by
	// sorted device id (an arbitrary but deterministic tie-break).
	sort.Slice(panels, func(i, j int) bool { return panels[i].deviceID < panels[j].deviceID })

	signal := models.SecuritySignal{ArmedState: panels[0].armed}

	alarm := panels[0].alarm
	severity := models.SeverityInfo
	count := 0
	var alerts []models.SecurityAlert
	var lastEvent *models.LastEvent

	for _, panel := range panels {
		if panel.alarm.Urgency() > alarm.Urgency() {
			alarm = panel.alarm
		}

		deviceSeverity := models.SeverityInfo
		switch {
		case panel.alarm == models.AlarmStateTriggered || panel.tampered:
			deviceSeverity = models.SeverityCritical
		case panel.activeFalse || panel.fault > 0:
			deviceSeverity = models.SeverityWarning
		}
		severity = models.MaxSeverity(severity, deviceSeverity)
		if deviceSeverity != models.SeverityInfo {
			count++
		}

		if panel.alarm == models.AlarmStateTriggered {
			alerts = append(alerts, models.SecurityAlert{
				ID:             models.AlertID(p.Key(), panel.deviceID, models.AlertTypeIntrusion),
				Type:           models.AlertTypeIntrusion,
				Severity:       models.SeverityCritical,
				SourceDeviceID: panel.deviceID,
				Timestamp:      panel.alarmAt,
			})
		}
		if panel.tampered {
			alerts = append(alerts, models.SecurityAlert{
				ID:             models.AlertID(p.Key(), panel.deviceID, models.AlertTypeTamper),
				Type:           models.AlertTypeTamper,
				Severity:       models.SeverityCritical,
				SourceDeviceID: panel.deviceID,
				Timestamp:      panel.tamperedAt,
			})
		}
		if panel.fault > 0 || panel.activeFalse {
			alerts = append(alerts, models.SecurityAlert{
				ID:             models.AlertID(p.Key(), panel.deviceID, models.AlertTypeFault),
				Type:           models.AlertTypeFault,
				Severity:       models.SeverityWarning,
				SourceDeviceID: panel.deviceID,
				Timestamp:      panel.faultAt,
			})
		}

		lastEvent = pickNewestEvent(lastEvent, panel.lastEvent)
	}

	critical := severity == models.SeverityCritical
	signal.AlarmState = &alarm
	signal.HighestSeverity = &severity
	signal.ActiveAlertsCount = &count
	signal.HasCriticalAlert = &critical
	signal.ActiveAlerts = alerts
	signal.LastEvent = lastEvent
	return signal, nil
}

// resolvePanel extracts the security-relevant state from one alarm channel.
func resolvePanel(deviceID string, channel *models.Channel) panelState {
	panel := panelState{deviceID: deviceID, alarm: models.AlarmStateIdle}

	if prop, ok := channel.Property(models.PropertyCategoryState); ok {
		if armed, ok := models.ParseArmedState(stringify(prop.Value)); ok {
			panel.armed = &armed
		}
	}

	triggered := false
	var triggeredAt time.Time
	if prop, ok := channel.Property(models.PropertyCategoryTriggered); ok {
		if b, ok := asBool(prop.Value); ok && b {
			triggered = true
			triggeredAt = prop.UpdatedAt
		}
	}

	// Prefer an explicit alarm_state property; fall back to the triggered
	// flag, then default to idle.
	panel.alarmAt = triggeredAt
	if prop, ok := channel.Property(models.PropertyCategoryAlarmState); ok {
		if state, ok := models.ParseAlarmState(stringify(prop.Value)); ok {
			panel.alarm = state
			panel.alarmAt = prop.UpdatedAt
		} else if triggered {
			panel.alarm = models.AlarmStateTriggered
		}
	} else if triggered {
		panel.alarm = models.AlarmStateTriggered
	}

	if prop, ok := channel.Property(models.PropertyCategoryTampered); ok {
		if b, ok := asBool(prop.Value); ok && b {
			panel.tampered = true
			panel.tamperedAt = prop.UpdatedAt
		}
	}

	if prop, ok := channel.Property(models.PropertyCategoryActive); ok {
		if b, ok := asBool(prop.Value); ok && !b {
			panel.activeFalse = true
			panel.faultAt = prop.UpdatedAt
		}
	}

	if prop, ok := channel.Property(models.PropertyCategoryFault); ok {
		if f, ok := toFloat64(prop.Value); ok && f > 0 {
			panel.fault = f
			if panel.faultAt.IsZero() {
				panel.faultAt = prop.UpdatedAt
			}
		}
	}

	if prop, ok := channel.Property(models.PropertyCategoryLastEvent); ok {
		panel.lastEvent = parseLastEvent(deviceID, prop.Value)
	}

	return panel
}

// parseLastEvent decodes a JSON-encoded last event. The payload must carry at
// least a type and a timestamp; anything invalid is discarded, not an error.
func parseLastEvent(deviceID string, value any) *models.LastEvent {
	var raw map[string]any
	switch v := value.(type) {
	case string:
		if err := json.Unmarshal([]byte(v), &raw); err != nil {
			log.Printf("warning: alarm provider: device %s has invalid last_event JSON: %v", deviceID, err)
			return nil
		}
	case map[string]any:
		raw = v
	default:
		return nil
	}

	eventType, _ := raw["type"].(string)
	if eventType == "" {
		return nil
	}
	timestamp, ok := parseTimestamp(raw["timestamp"])
	if !ok {
		return nil
	}

	event := &models.LastEvent{
		Type:           eventType,
		Timestamp:      timestamp,
		SourceDeviceID: deviceID,
	}
	if source, ok := raw["sourceDeviceId"].(string); ok && source != "" {
		event.SourceDeviceID = source
	}
	if raw["severity"] != nil {
		if severity, ok := models.ParseSeverity(stringify(raw["severity"])); ok {
			event.Severity = &severity
		}
	}
	return event
}

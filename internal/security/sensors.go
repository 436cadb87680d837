package security

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/good-yellow-bee/homewatch/internal/models"
	"github.com/good-yellow-bee/homewatch/internal/registry"
	"github.com/good-yellow-bee/homewatch/internal/rules"
)

// SensorProvider evaluates life-safety and intrusion sensor channels against
// the loaded detection rules.
type SensorProvider struct {
	devices registry.Lister

	mu    sync.RWMutex
	rules rules.Set
}

// NewSensorProvider constructs the sensor provider with an initial rule set.
func NewSensorProvider(devices registry.Lister, set rules.Set) *SensorProvider {
	return &SensorProvider{devices: devices, rules: set}
}

// Key returns the provider identity.
func (p *SensorProvider) Key() string {
	return "sensor"
}

// SetRules atomically replaces the rule set, e.g. after a hot reload.
func (p *SensorProvider) SetRules(set rules.Set) {
	p.mu.Lock()
	p.rules = set
	p.mu.Unlock()
}

// Signals iterates every channel of every device, fires the matching rule if
// any of its checks matches, and derives the signal from the alert list.
func (p *SensorProvider) Signals(ctx context.Context, sc *SignalContext) (models.SecuritySignal, error) {
	devices := sc.Devices
	if devices == nil {
		var err error
		devices, err = p.devices.ListDevices(ctx)
		if err != nil {
			return models.SecuritySignal{}, fmt.Errorf("sensor provider: list devices: %w", err)
		}
	}

	p.mu.RLock()
	ruleSet := p.rules
	p.mu.RUnlock()

	var alerts []models.SecurityAlert
	for i := range devices {
		device := &devices[i]
		for j := range device.Channels {
			channel := &device.Channels[j]
			rule, ok := ruleSet.Lookup(channel.Category)
			if !ok {
				continue
			}
			firedAt, ok := evaluateRule(rule, channel)
			if !ok {
				continue
			}

			severity := rule.Severity
			// While explicitly disarmed, intrusion-class alerts are
			// informational. An unknown armed state gets no downgrade:
			// treat as potentially armed rather than under-report.
			if sc.ArmedState != nil && *sc.ArmedState == models.ArmedStateDisarmed &&
				rule.AlertType.IsIntrusionClass() {
				severity = models.SeverityInfo
			}

			alerts = append(alerts, models.SecurityAlert{
				ID:             models.AlertID(p.Key(), device.ID, rule.AlertType),
				Type:           rule.AlertType,
				Severity:       severity,
				SourceDeviceID: device.ID,
				Timestamp:      firedAt,
			})
		}
	}
	if len(alerts) == 0 {
		return models.SecuritySignal{}, nil
	}

	// Deterministic ordering: severity rank descending, then alert id.
	sort.Slice(alerts, func(i, j int) bool {
		if alerts[i].Severity.Rank() != alerts[j].Severity.Rank() {
			return alerts[i].Severity.Rank() > alerts[j].Severity.Rank()
		}
		return alerts[i].ID < alerts[j].ID
	})

	severity := models.SeverityInfo
	for _, alert := range alerts {
		severity = models.MaxSeverity(severity, alert.Severity)
	}
	count := len(alerts)
	critical := severity == models.SeverityCritical

	top := alerts[0]
	topSeverity := top.Severity
	return models.SecuritySignal{
		HighestSeverity:   &severity,
		ActiveAlertsCount: &count,
		HasCriticalAlert:  &critical,
		ActiveAlerts:      alerts,
		LastEvent: &models.LastEvent{
			Type:           string(top.Type),
			Timestamp:      top.Timestamp,
			SourceDeviceID: top.SourceDeviceID,
			Severity:       &topSeverity,
		},
	}, nil
}

// evaluateRule fires if any one of the rule's property checks matches.
// The first matching check supplies the alert timestamp.
func evaluateRule(rule rules.Rule, channel *models.Channel) (time.Time, bool) {
	for _, check := range rule.Checks {
		prop, ok := channel.Property(check.Property)
		if !ok {
			continue
		}
		if evaluateCheck(check, prop.Value) {
			return prop.UpdatedAt, true
		}
	}
	return time.Time{}, false
}

func evaluateCheck(check rules.Check, actual any) bool {
	switch check.Operator {
	case rules.OperatorEq:
		if expected, ok := check.Value.(bool); ok {
			return truthy(actual) == expected
		}
		return actual == check.Value || stringify(actual) == stringify(check.Value)
	case rules.OperatorGt:
		actualNum, ok := toFloat64(actual)
		if !ok {
			return false
		}
		expectedNum, ok := toFloat64(check.Value)
		if !ok {
			return false
		}
		return actualNum > expectedNum
	case rules.OperatorGte:
		actualNum, ok := toFloat64(actual)
		if !ok {
			return false
		}
		expectedNum, ok := toFloat64(check.Value)
		if !ok {
			return false
		}
		return actualNum >= expectedNum
	case rules.OperatorIn:
		list, ok := check.Value.([]any)
		if !ok {
			return false
		}
		actualStr := stringify(actual)
		for _, candidate := range list {
			if stringify(candidate) == actualStr {
				return true
			}
		}
		return false
	default:
		return false
	}
}

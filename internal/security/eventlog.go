package security

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/homewatch/internal/metrics"
	"github.com/good-yellow-bee/homewatch/internal/models"
	"github.com/good-yellow-bee/homewatch/internal/storage"
)

// EventRetentionCap is the maximum number of persisted security events.
// Oldest rows are evicted first.
const EventRetentionCap = 200

// Default and maximum limits for recent-event queries.
const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = EventRetentionCap
)

// EventLog diffs successive status snapshots into lifecycle events and
// persists them with retention enforcement.
//
// The diff baseline lives only in memory: the first call after process start
// seeds it without emitting events, so pre-existing alerts are not spuriously
// re-raised at startup.
type EventLog struct {
	repo storage.SecurityEventRepository

	// Baseline state. RecordTransitions is only ever called from the
	// listener's serialized recomputation, so no lock is needed.
	seeded     bool
	lastAlerts map[string]models.SecurityAlert
	lastArmed  *models.ArmedState
	lastAlarm  *models.AlarmState
}

// NewEventLog constructs an event log over the given repository.
func NewEventLog(repo storage.SecurityEventRepository) *EventLog {
	return &EventLog{repo: repo, lastAlerts: make(map[string]models.SecurityAlert)}
}

// RecordTransitions diffs the given snapshot against the previous one and
// persists the resulting lifecycle events as a single batch. The in-memory
// baseline advances only after a successful write so a persistence failure
// does not desynchronize the diff from what was actually recorded.
func (l *EventLog) RecordTransitions(ctx context.Context, activeAlerts []models.SecurityAlert, armed *models.ArmedState, alarm *models.AlarmState) error {
	current := make(map[string]models.SecurityAlert, len(activeAlerts))
	for _, alert := range activeAlerts {
		current[alert.ID] = alert
	}

	if !l.seeded {
		l.seeded = true
		l.lastAlerts = current
		l.lastArmed = armed
		l.lastAlarm = alarm
		return nil
	}

	now := time.Now()
	var events []*models.SecurityEvent

	for id, alert := range current {
		if _, ok := l.lastAlerts[id]; ok {
			continue
		}
		severity := alert.Severity
		events = append(events, &models.SecurityEvent{
			ID:             uuid.New().String(),
			Timestamp:      now,
			Type:           models.EventAlertRaised,
			Severity:       &severity,
			AlertID:        id,
			AlertType:      alert.Type,
			SourceDeviceID: alert.SourceDeviceID,
		})
	}
	for id, alert := range l.lastAlerts {
		if _, ok := current[id]; ok {
			continue
		}
		events = append(events, &models.SecurityEvent{
			ID:             uuid.New().String(),
			Timestamp:      now,
			Type:           models.EventAlertResolved,
			AlertID:        id,
			AlertType:      alert.Type,
			SourceDeviceID: alert.SourceDeviceID,
		})
	}

	if !armedStatesEqual(l.lastArmed, armed) {
		events = append(events, &models.SecurityEvent{
			ID:        uuid.New().String(),
			Timestamp: now,
			Type:      models.EventArmedStateChanged,
			Payload:   transitionPayload(armedStateValue(l.lastArmed), armedStateValue(armed)),
		})
	}
	if !alarmStatesEqual(l.lastAlarm, alarm) {
		event := &models.SecurityEvent{
			ID:        uuid.New().String(),
			Timestamp: now,
			Type:      models.EventAlarmStateChanged,
			Payload:   transitionPayload(alarmStateValue(l.lastAlarm), alarmStateValue(alarm)),
		}
		if alarm != nil && *alarm == models.AlarmStateTriggered {
			severity := models.SeverityCritical
			event.Severity = &severity
		}
		events = append(events, event)
	}

	if len(events) > 0 {
		if err := l.repo.InsertBatch(ctx, events); err != nil {
			return fmt.Errorf("record alert transitions: %w", err)
		}
		for _, event := range events {
			metrics.EventsRecordedTotal.WithLabelValues(string(event.Type)).Inc()
		}
		if err := l.repo.EnforceRetention(ctx, EventRetentionCap); err != nil {
			return fmt.Errorf("enforce event retention: %w", err)
		}
	}

	l.lastAlerts = current
	l.lastArmed = armed
	l.lastAlarm = alarm
	return nil
}

// RecordAcknowledgement writes a single acknowledgment event, independent of
// the diff mechanism.
func (l *EventLog) RecordAcknowledgement(ctx context.Context, alertID string, alertType models.AlertType, sourceDeviceID string, severity *models.Severity) error {
	event := &models.SecurityEvent{
		ID:             uuid.New().String(),
		Timestamp:      time.Now(),
		Type:           models.EventAlertAcknowledged,
		Severity:       severity,
		AlertID:        alertID,
		AlertType:      alertType,
		SourceDeviceID: sourceDeviceID,
	}
	if err := l.repo.Insert(ctx, event); err != nil {
		return fmt.Errorf("record acknowledgment event: %w", err)
	}
	metrics.EventsRecordedTotal.WithLabelValues(string(event.Type)).Inc()
	if err := l.repo.EnforceRetention(ctx, EventRetentionCap); err != nil {
		return fmt.Errorf("enforce event retention: %w", err)
	}
	return nil
}

// RecentQuery narrows a recent-events query. Filters are conjunctive.
type RecentQuery struct {
	Limit    int
	Since    *time.Time
	Severity *models.Severity
	Type     *models.SecurityEventType
}

// Recent returns matching events newest-first. The limit is clamped to
// [1, MaxRecentLimit] and defaults to DefaultRecentLimit when unset.
func (l *EventLog) Recent(ctx context.Context, q RecentQuery) ([]*models.SecurityEvent, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	if limit > MaxRecentLimit {
		limit = MaxRecentLimit
	}
	return l.repo.List(ctx, storage.EventFilter{
		Limit:    limit,
		Since:    q.Since,
		Severity: q.Severity,
		Type:     q.Type,
	})
}

func armedStatesEqual(a, b *models.ArmedState) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func alarmStatesEqual(a, b *models.AlarmState) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func armedStateValue(s *models.ArmedState) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

func alarmStateValue(s *models.AlarmState) any {
	if s == nil {
		return nil
	}
	return string(*s)
}

func transitionPayload(from, to any) map[string]any {
	return map[string]any{"from": from, "to": to}
}

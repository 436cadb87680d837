package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/homewatch/internal/models"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")

	store := NewSQLiteStorage(dbPath)
	if err := store.Open(); err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate database: %v", err)
	}

	return store
}

func TestSQLiteStorage_Migrate(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	tables := []string{"alert_acknowledgments", "security_events", "schema_migrations"}
	for _, table := range tables {
		var count int
		err := store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&count)
		if err != nil {
			t.Errorf("table %s should exist: %v", table, err)
		}
	}
}

func TestAckRepository_GetMissing(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	ack, err := store.Acknowledgments().Get(ctx, "alarm:panel-1:intrusion")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ack != nil {
		t.Fatalf("expected nil for missing record, got %+v", ack)
	}
}

func TestAckRepository_Acknowledge(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	occurredAt := time.Now().Truncate(time.Second)
	ack, err := store.Acknowledgments().Acknowledge(ctx, "alarm:panel-1:intrusion", &occurredAt, "alice")
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if !ack.Acknowledged {
		t.Error("record should be acknowledged")
	}
	if ack.AcknowledgedBy != "alice" {
		t.Errorf("acknowledged_by = %q, want alice", ack.AcknowledgedBy)
	}

	got, err := store.Acknowledgments().Get(ctx, "alarm:panel-1:intrusion")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("record should exist")
	}
	if !got.Acknowledged {
		t.Error("persisted record should be acknowledged")
	}
	if got.LastEventAt == nil || !got.LastEventAt.Equal(occurredAt.UTC()) {
		t.Errorf("last_event_at = %v, want %v", got.LastEventAt, occurredAt.UTC())
	}

	// Acknowledging again keeps the record acknowledged and updates the actor.
	ack, err = store.Acknowledgments().Acknowledge(ctx, "alarm:panel-1:intrusion", nil, "bob")
	if err != nil {
		t.Fatalf("re-acknowledge: %v", err)
	}
	if ack.AcknowledgedBy != "bob" {
		t.Errorf("acknowledged_by = %q, want bob", ack.AcknowledgedBy)
	}
}

func TestAckRepository_FindByIDs(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	// Empty input short-circuits without querying.
	acks, err := store.Acknowledgments().FindByIDs(ctx, nil)
	if err != nil {
		t.Fatalf("find empty: %v", err)
	}
	if len(acks) != 0 {
		t.Fatalf("expected no records, got %d", len(acks))
	}

	for _, id := range []string{"a:1:intrusion", "a:2:tamper", "a:3:fault"} {
		if _, err := store.Acknowledgments().Acknowledge(ctx, id, nil, ""); err != nil {
			t.Fatalf("acknowledge %s: %v", id, err)
		}
	}

	acks, err = store.Acknowledgments().FindByIDs(ctx, []string{"a:1:intrusion", "a:3:fault", "a:9:missing"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(acks) != 2 {
		t.Fatalf("expected 2 records, got %d", len(acks))
	}
}

func TestAckRepository_ResetOnNewer(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		occurred time.Time
		wantAck  bool
	}{
		{"older occurrence keeps ack", base.Add(-time.Minute), true},
		{"same second keeps ack", base.Add(500 * time.Millisecond), true},
		{"newer second resets ack", base.Add(2 * time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := "sensor:" + uuid.New().String() + ":smoke"
			if _, err := store.Acknowledgments().Acknowledge(ctx, id, &base, "alice"); err != nil {
				t.Fatalf("acknowledge: %v", err)
			}

			if err := store.Acknowledgments().ResetOnNewer(ctx, id, tt.occurred); err != nil {
				t.Fatalf("reset: %v", err)
			}

			got, err := store.Acknowledgments().Get(ctx, id)
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Acknowledged != tt.wantAck {
				t.Errorf("acknowledged = %v, want %v", got.Acknowledged, tt.wantAck)
			}
		})
	}
}

func TestAckRepository_ResetOnNewerCreatesRecord(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	occurred := time.Now()
	if err := store.Acknowledgments().ResetOnNewer(ctx, "sensor:door:entry_open", occurred); err != nil {
		t.Fatalf("reset: %v", err)
	}

	got, err := store.Acknowledgments().Get(ctx, "sensor:door:entry_open")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil {
		t.Fatal("record should have been created")
	}
	if got.Acknowledged {
		t.Error("created record should be unacknowledged")
	}
}

func TestAckRepository_CleanupStale(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	for _, id := range []string{"a:1:intrusion", "a:2:tamper", "a:3:fault"} {
		if _, err := store.Acknowledgments().Acknowledge(ctx, id, nil, ""); err != nil {
			t.Fatalf("acknowledge %s: %v", id, err)
		}
	}

	if err := store.Acknowledgments().CleanupStale(ctx, []string{"a:2:tamper"}); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	count, err := store.Acknowledgments().Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	// Empty active set clears the whole table.
	if err := store.Acknowledgments().CleanupStale(ctx, nil); err != nil {
		t.Fatalf("cleanup all: %v", err)
	}
	count, err = store.Acknowledgments().Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("count = %d, want 0", count)
	}
}

func makeEvent(eventType models.SecurityEventType, ts time.Time, severity *models.Severity) *models.SecurityEvent {
	return &models.SecurityEvent{
		ID:        uuid.New().String(),
		Timestamp: ts,
		Type:      eventType,
		Severity:  severity,
		AlertID:   "alarm:panel-1:intrusion",
		AlertType: models.AlertTypeIntrusion,
	}
}

func TestEventRepository_InsertAndList(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	critical := models.SeverityCritical
	warning := models.SeverityWarning
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	events := []*models.SecurityEvent{
		makeEvent(models.EventAlertRaised, base, &warning),
		makeEvent(models.EventAlertRaised, base.Add(time.Minute), &critical),
		makeEvent(models.EventAlertResolved, base.Add(2*time.Minute), nil),
	}
	if err := store.Events().InsertBatch(ctx, events); err != nil {
		t.Fatalf("insert batch: %v", err)
	}

	// Newest first, no filter.
	got, err := store.Events().List(ctx, EventFilter{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Type != models.EventAlertResolved {
		t.Errorf("first event = %s, want alert_resolved (newest first)", got[0].Type)
	}

	// Severity filter.
	got, err = store.Events().List(ctx, EventFilter{Limit: 10, Severity: &critical})
	if err != nil {
		t.Fatalf("list by severity: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}

	// Type filter.
	raised := models.EventAlertRaised
	got, err = store.Events().List(ctx, EventFilter{Limit: 10, Type: &raised})
	if err != nil {
		t.Fatalf("list by type: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}

	// Since filter.
	since := base.Add(90 * time.Second)
	got, err = store.Events().List(ctx, EventFilter{Limit: 10, Since: &since})
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
}

func TestEventRepository_PayloadRoundTrip(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	event := &models.SecurityEvent{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Type:      models.EventArmedStateChanged,
		Payload:   map[string]any{"from": "disarmed", "to": "armed_away"},
	}
	if err := store.Events().Insert(ctx, event); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.Events().List(ctx, EventFilter{Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if got[0].Payload["to"] != "armed_away" {
		t.Errorf("payload to = %v, want armed_away", got[0].Payload["to"])
	}
}

func TestEventRepository_EnforceRetention(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var events []*models.SecurityEvent
	for i := 0; i < 250; i++ {
		event := makeEvent(models.EventAlertRaised, base.Add(time.Duration(i)*time.Second), nil)
		event.AlertID = fmt.Sprintf("sensor:dev-%03d:smoke", i)
		events = append(events, event)
	}
	if err := store.Events().InsertBatch(ctx, events); err != nil {
		t.Fatalf("insert batch: %v", err)
	}

	if err := store.Events().EnforceRetention(ctx, 200); err != nil {
		t.Fatalf("enforce retention: %v", err)
	}

	count, err := store.Events().Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 200 {
		t.Fatalf("count = %d, want 200", count)
	}

	// The survivors are the newest rows.
	got, err := store.Events().List(ctx, EventFilter{Limit: 200})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	oldest := got[len(got)-1]
	if oldest.AlertID != "sensor:dev-050:smoke" {
		t.Errorf("oldest survivor = %s, want sensor:dev-050:smoke", oldest.AlertID)
	}
	if got[0].AlertID != "sensor:dev-249:smoke" {
		t.Errorf("newest survivor = %s, want sensor:dev-249:smoke", got[0].AlertID)
	}

	// A second enforcement over an already-trimmed table deletes nothing.
	if err := store.Events().EnforceRetention(ctx, 200); err != nil {
		t.Fatalf("enforce retention again: %v", err)
	}
	count, err = store.Events().Count(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 200 {
		t.Fatalf("count after repeat = %d, want 200", count)
	}
}

package security

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/good-yellow-bee/homewatch/internal/eventbus"
	"github.com/good-yellow-bee/homewatch/internal/models"
)

// statusRecorder collects published status snapshots.
type statusRecorder struct {
	mu       sync.Mutex
	statuses []models.SecurityStatus
}

func (r *statusRecorder) subscribe(bus *eventbus.Bus) {
	bus.SubscribeStatusUpdated(func(_ context.Context, status models.SecurityStatus) {
		r.mu.Lock()
		r.statuses = append(r.statuses, status)
		r.mu.Unlock()
	})
}

func (r *statusRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.statuses)
}

func (r *statusRecorder) last() (models.SecurityStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.statuses) == 0 {
		return models.SecurityStatus{}, false
	}
	return r.statuses[len(r.statuses)-1], true
}

// waitForCount polls until the recorder has seen at least n statuses.
func (r *statusRecorder) waitForCount(t *testing.T, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if r.count() >= n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d status updates, saw %d", n, r.count())
}

type listenerFixture struct {
	listener *Listener
	bus      *eventbus.Bus
	events   *memEventRepo
	acks     *memAckRepo
	recorder *statusRecorder
}

func newListenerFixture(t *testing.T, providers ...Provider) *listenerFixture {
	t.Helper()

	bus := eventbus.New()
	events := &memEventRepo{}
	acks := newMemAckRepo()
	aggregator := NewAggregator(&fakeLister{}, providers...)
	listener := NewListener(aggregator, NewEventLog(events), acks, bus, 10*time.Millisecond)

	recorder := &statusRecorder{}
	recorder.subscribe(bus)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	listener.Start(ctx)

	return &listenerFixture{
		listener: listener,
		bus:      bus,
		events:   events,
		acks:     acks,
		recorder: recorder,
	}
}

func TestListenerSeedsOnStart(t *testing.T) {
	f := newListenerFixture(t, NewDefaultProvider())
	f.recorder.waitForCount(t, 1)

	status, _ := f.recorder.last()
	if status.HighestSeverity != models.SeverityInfo {
		t.Errorf("seed status severity = %s, want info baseline", status.HighestSeverity)
	}
	if status.ActiveAlertsCount != 0 {
		t.Errorf("seed status alert count = %d, want 0", status.ActiveAlertsCount)
	}
}

func TestListenerFiltersIrrelevantNotifications(t *testing.T) {
	f := newListenerFixture(t, NewDefaultProvider())
	f.recorder.waitForCount(t, 1)
	ctx := context.Background()

	// Irrelevant channel category.
	f.bus.PublishPropertyChanged(ctx, models.PropertyChange{
		Kind:            models.ChangeValueSet,
		DeviceID:        "bulb-1",
		ChannelCategory: models.ChannelCategory("light"),
		Property:        models.Property{Category: models.PropertyCategoryState},
	})
	// Relevant channel but irrelevant property category.
	f.bus.PublishPropertyChanged(ctx, models.PropertyChange{
		Kind:            models.ChangeValueSet,
		DeviceID:        "pir-1",
		ChannelCategory: models.ChannelCategoryMotion,
		Property:        models.Property{Category: models.PropertyCategory("battery")},
	})
	f.bus.PublishChannelChanged(ctx, models.ChannelChange{
		Kind:     models.ChangeCreated,
		DeviceID: "bulb-1",
		Channel:  models.Channel{Category: models.ChannelCategory("light")},
	})
	f.bus.PublishDeviceDeleted(ctx, models.DeviceDelete{
		DeviceID:          "bulb-1",
		ChannelCategories: []models.ChannelCategory{"light", "switch"},
	})

	time.Sleep(60 * time.Millisecond)
	if got := f.recorder.count(); got != 1 {
		t.Fatalf("irrelevant notifications triggered %d recomputations beyond the seed", got-1)
	}

	// Relevant property change does trigger one.
	f.bus.PublishPropertyChanged(ctx, models.PropertyChange{
		Kind:            models.ChangeValueSet,
		DeviceID:        "pir-1",
		ChannelCategory: models.ChannelCategoryMotion,
		Property:        models.Property{Category: models.PropertyCategoryDetected},
	})
	f.recorder.waitForCount(t, 2)
}

func TestListenerDeviceDeleteRelevance(t *testing.T) {
	f := newListenerFixture(t, NewDefaultProvider())
	f.recorder.waitForCount(t, 1)

	f.bus.PublishDeviceDeleted(context.Background(), models.DeviceDelete{
		DeviceID:          "det-1",
		ChannelCategories: []models.ChannelCategory{"light", models.ChannelCategorySmoke},
	})
	f.recorder.waitForCount(t, 2)
}

func TestListenerDebounceCoalescesBursts(t *testing.T) {
	f := newListenerFixture(t, NewDefaultProvider())
	f.recorder.waitForCount(t, 1)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		f.bus.PublishChannelChanged(ctx, models.ChannelChange{
			Kind:     models.ChangeCreated,
			DeviceID: "pir-1",
			Channel:  models.Channel{Category: models.ChannelCategoryMotion},
		})
	}

	f.recorder.waitForCount(t, 2)
	time.Sleep(60 * time.Millisecond)
	if got := f.recorder.count(); got != 2 {
		t.Fatalf("burst of 20 notifications produced %d recomputations, want 1", got-1)
	}
}

func TestListenerRefreshTriggersRecomputation(t *testing.T) {
	f := newListenerFixture(t, NewDefaultProvider())
	f.recorder.waitForCount(t, 1)

	f.listener.Refresh()
	f.recorder.waitForCount(t, 2)
}

func TestListenerSyncsAcknowledgments(t *testing.T) {
	alert := models.SecurityAlert{
		ID:             "sensor:det-1:smoke",
		Type:           models.AlertTypeSmoke,
		Severity:       models.SeverityCritical,
		SourceDeviceID: "det-1",
		Timestamp:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	count := 1
	provider := &stubProvider{key: "stub", signal: models.SecuritySignal{
		ActiveAlerts:      []models.SecurityAlert{alert},
		ActiveAlertsCount: &count,
	}}

	f := newListenerFixture(t, NewDefaultProvider(), provider)
	f.recorder.waitForCount(t, 1)
	ctx := context.Background()

	// The recomputation created an unacknowledged tracking record and dropped
	// nothing else, and the published snapshot carries the annotation.
	record, err := f.acks.Get(ctx, alert.ID)
	if err != nil || record == nil {
		t.Fatalf("tracking record not created: %v", err)
	}
	if record.Acknowledged {
		t.Error("fresh tracking record should be unacknowledged")
	}

	// Acknowledge, then recompute with the same occurrence time: the flag
	// survives and shows up in the published status.
	occurred := alert.Timestamp
	if _, err := f.acks.Acknowledge(ctx, alert.ID, &occurred, "alice"); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	f.listener.Refresh()
	f.recorder.waitForCount(t, 2)

	status, _ := f.recorder.last()
	if len(status.ActiveAlerts) != 1 || !status.ActiveAlerts[0].Acknowledged {
		t.Fatalf("published status not annotated: %+v", status.ActiveAlerts)
	}
}

func TestListenerAckSyncGatedOnProviderFailure(t *testing.T) {
	failing := &stubProvider{key: "flaky", err: errors.New("bridge offline")}
	f := newListenerFixture(t, NewDefaultProvider(), failing)
	f.recorder.waitForCount(t, 1)
	ctx := context.Background()

	// Plant an acknowledgment for an alert the failing provider would own.
	occurred := time.Now()
	if _, err := f.acks.Acknowledge(ctx, "sensor:det-1:smoke", &occurred, "alice"); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	f.listener.Refresh()
	f.recorder.waitForCount(t, 2)

	// The empty snapshot came from a failing provider, so cleanup was skipped
	// and the record survives the outage.
	record, err := f.acks.Get(ctx, "sensor:det-1:smoke")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record == nil || !record.Acknowledged {
		t.Fatal("acknowledgment record wiped during provider outage")
	}
}

func TestListenerCleansStaleAcknowledgments(t *testing.T) {
	f := newListenerFixture(t, NewDefaultProvider())
	f.recorder.waitForCount(t, 1)
	ctx := context.Background()

	occurred := time.Now()
	if _, err := f.acks.Acknowledge(ctx, "sensor:gone:smoke", &occurred, "alice"); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	f.listener.Refresh()
	f.recorder.waitForCount(t, 2)

	record, err := f.acks.Get(ctx, "sensor:gone:smoke")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if record != nil {
		t.Fatal("acknowledgment for inactive alert should be cleaned up")
	}
}

func TestListenerRecordsTransitions(t *testing.T) {
	alert := models.SecurityAlert{
		ID:       "sensor:det-1:smoke",
		Type:     models.AlertTypeSmoke,
		Severity: models.SeverityCritical,
	}
	count := 1
	provider := &stubProvider{key: "stub", signal: models.SecuritySignal{
		ActiveAlerts:      []models.SecurityAlert{alert},
		ActiveAlertsCount: &count,
	}}

	f := newListenerFixture(t, NewDefaultProvider(), provider)
	f.recorder.waitForCount(t, 1)

	// The seed snapshot establishes the diff baseline without events; only
	// the next recomputation could emit, and nothing changed.
	f.listener.Refresh()
	f.recorder.waitForCount(t, 2)

	if raised := f.events.byType(models.EventAlertRaised); len(raised) != 0 {
		t.Fatalf("unchanged state emitted %d raised events", len(raised))
	}
}

package security

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/good-yellow-bee/homewatch/internal/models"
	"github.com/good-yellow-bee/homewatch/internal/rules"
	"github.com/good-yellow-bee/homewatch/internal/storage"
)

// testRules is the builtin rule set, which is embedded and deterministic.
func testRules() rules.Set {
	return rules.Load("")
}

// fakeLister serves a fixed device fleet.
type fakeLister struct {
	devices []models.Device
	err     error
}

func (f *fakeLister) ListDevices(ctx context.Context) ([]models.Device, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.devices, nil
}

// stubProvider returns a canned signal or error.
type stubProvider struct {
	key    string
	signal models.SecuritySignal
	err    error
	calls  int
}

func (p *stubProvider) Key() string { return p.key }

func (p *stubProvider) Signals(ctx context.Context, sc *SignalContext) (models.SecuritySignal, error) {
	p.calls++
	if p.err != nil {
		return models.SecuritySignal{}, p.err
	}
	return p.signal, nil
}

// memEventRepo is an in-memory SecurityEventRepository.
type memEventRepo struct {
	mu        sync.Mutex
	events    []*models.SecurityEvent
	insertErr error
}

func (r *memEventRepo) Insert(ctx context.Context, event *models.SecurityEvent) error {
	return r.InsertBatch(ctx, []*models.SecurityEvent{event})
}

func (r *memEventRepo) InsertBatch(ctx context.Context, events []*models.SecurityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	r.events = append(r.events, events...)
	return nil
}

func (r *memEventRepo) List(ctx context.Context, filter storage.EventFilter) ([]*models.SecurityEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.SecurityEvent
	for _, event := range r.events {
		if filter.Since != nil && event.Timestamp.Before(*filter.Since) {
			continue
		}
		if filter.Severity != nil && (event.Severity == nil || *event.Severity != *filter.Severity) {
			continue
		}
		if filter.Type != nil && event.Type != *filter.Type {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *memEventRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.events)), nil
}

func (r *memEventRepo) EnforceRetention(ctx context.Context, maxRows int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) > maxRows {
		sort.Slice(r.events, func(i, j int) bool { return r.events[i].Timestamp.Before(r.events[j].Timestamp) })
		r.events = r.events[len(r.events)-maxRows:]
	}
	return nil
}

func (r *memEventRepo) byType(eventType models.SecurityEventType) []*models.SecurityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.SecurityEvent
	for _, event := range r.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

// memAckRepo is an in-memory AcknowledgmentRepository mirroring the sqlite
// repository's semantics, including second-truncated timestamp comparison.
type memAckRepo struct {
	mu   sync.Mutex
	acks map[string]*models.AlertAcknowledgment
}

func newMemAckRepo() *memAckRepo {
	return &memAckRepo{acks: make(map[string]*models.AlertAcknowledgment)}
}

func (r *memAckRepo) Get(ctx context.Context, alertID string) (*models.AlertAcknowledgment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ack, ok := r.acks[alertID]
	if !ok {
		return nil, nil
	}
	copied := *ack
	return &copied, nil
}

func (r *memAckRepo) FindByIDs(ctx context.Context, alertIDs []string) ([]*models.AlertAcknowledgment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AlertAcknowledgment
	for _, id := range alertIDs {
		if ack, ok := r.acks[id]; ok {
			copied := *ack
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memAckRepo) Acknowledge(ctx context.Context, alertID string, occurredAt *time.Time, actor string) (*models.AlertAcknowledgment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	ack, ok := r.acks[alertID]
	if !ok {
		ack = &models.AlertAcknowledgment{AlertID: alertID}
		r.acks[alertID] = ack
	}
	ack.Acknowledged = true
	ack.AcknowledgedAt = &now
	ack.UpdatedAt = now
	if actor != "" {
		ack.AcknowledgedBy = actor
	}
	if occurredAt != nil {
		t := *occurredAt
		ack.LastEventAt = &t
	}
	copied := *ack
	return &copied, nil
}

func (r *memAckRepo) AcknowledgeAll(ctx context.Context, items []storage.AckItem, actor string) ([]*models.AlertAcknowledgment, error) {
	var out []*models.AlertAcknowledgment
	for _, item := range items {
		ack, err := r.Acknowledge(ctx, item.AlertID, item.OccurredAt, actor)
		if err != nil {
			return nil, err
		}
		out = append(out, ack)
	}
	return out, nil
}

func (r *memAckRepo) ResetOnNewer(ctx context.Context, alertID string, occurredAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ack, ok := r.acks[alertID]
	if !ok {
		t := occurredAt
		r.acks[alertID] = &models.AlertAcknowledgment{
			AlertID:     alertID,
			LastEventAt: &t,
			UpdatedAt:   time.Now(),
		}
		return nil
	}
	if ack.LastEventAt != nil &&
		!occurredAt.Truncate(time.Second).After(ack.LastEventAt.Truncate(time.Second)) {
		return nil
	}
	t := occurredAt
	ack.Acknowledged = false
	ack.LastEventAt = &t
	ack.UpdatedAt = time.Now()
	return nil
}

func (r *memAckRepo) CleanupStale(ctx context.Context, activeIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	active := make(map[string]bool, len(activeIDs))
	for _, id := range activeIDs {
		active[id] = true
	}
	for id := range r.acks {
		if !active[id] {
			delete(r.acks, id)
		}
	}
	return nil
}

func (r *memAckRepo) Count(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.acks)), nil
}

// Device construction helpers.

func sensorDevice(id string, channelCat models.ChannelCategory, props ...models.Property) models.Device {
	return models.Device{
		ID:       id,
		Category: models.DeviceCategorySensor,
		Channels: []models.Channel{{
			ID:         id + ":" + string(channelCat),
			Category:   channelCat,
			Properties: props,
		}},
	}
}

func alarmDevice(id string, props ...models.Property) models.Device {
	return models.Device{
		ID:       id,
		Category: models.DeviceCategoryAlarm,
		Channels: []models.Channel{{
			ID:         id + ":alarm",
			Category:   models.ChannelCategoryAlarm,
			Properties: props,
		}},
	}
}

func prop(cat models.PropertyCategory, value any, at time.Time) models.Property {
	return models.Property{
		ID:        "p:" + string(cat),
		Category:  cat,
		Value:     value,
		UpdatedAt: at,
	}
}

package security

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/good-yellow-bee/homewatch/internal/eventbus"
	"github.com/good-yellow-bee/homewatch/internal/metrics"
	"github.com/good-yellow-bee/homewatch/internal/models"
	"github.com/good-yellow-bee/homewatch/internal/storage"
)

// DefaultDebounce is the delay the listener waits after the last relevant
// registry notification before recomputing, coalescing bursts into one cycle.
const DefaultDebounce = 150 * time.Millisecond

// relevantPropertyCategories is the allow-list of property categories that can
// influence security state.
var relevantPropertyCategories = map[models.PropertyCategory]bool{
	models.PropertyCategoryState:         true,
	models.PropertyCategoryAlarmState:    true,
	models.PropertyCategoryTriggered:     true,
	models.PropertyCategoryTampered:      true,
	models.PropertyCategoryActive:        true,
	models.PropertyCategoryFault:         true,
	models.PropertyCategoryLastEvent:     true,
	models.PropertyCategoryDetected:      true,
	models.PropertyCategoryConcentration: true,
	models.PropertyCategoryStatus:        true,
}

// relevantChannelCategories is the allow-list of channel categories that can
// influence security state.
var relevantChannelCategories = map[models.ChannelCategory]bool{
	models.ChannelCategoryAlarm:          true,
	models.ChannelCategorySmoke:          true,
	models.ChannelCategoryCarbonMonoxide: true,
	models.ChannelCategoryLeak:           true,
	models.ChannelCategoryGas:            true,
	models.ChannelCategoryMotion:         true,
	models.ChannelCategoryOccupancy:      true,
	models.ChannelCategoryContact:        true,
}

// Listener subscribes to device-registry notifications, filters relevance,
// debounces bursts with a single global timer, and serializes recomputation
// so status snapshots are never published out of order.
type Listener struct {
	aggregator *Aggregator
	events     *EventLog
	acks       storage.AcknowledgmentRepository
	bus        *eventbus.Bus
	debounce   time.Duration

	mu    sync.Mutex
	timer *time.Timer

	// requests is the FIFO serialization queue: a single consumer drains it,
	// so at most one recomputation runs at a time and in enqueue order. One
	// pending request covers any number of coalesced debounce fires.
	requests chan struct{}
}

// NewListener constructs a listener. A non-positive debounce falls back to
// DefaultDebounce.
func NewListener(aggregator *Aggregator, events *EventLog, acks storage.AcknowledgmentRepository, bus *eventbus.Bus, debounce time.Duration) *Listener {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Listener{
		aggregator: aggregator,
		events:     events,
		acks:       acks,
		bus:        bus,
		debounce:   debounce,
		requests:   make(chan struct{}, 1),
	}
}

// Start subscribes to registry notifications, launches the serialized
// recomputation consumer, and enqueues an immediate seed recomputation so
// state is available before the first external event.
func (l *Listener) Start(ctx context.Context) {
	l.bus.SubscribePropertyChanged(func(_ context.Context, n models.PropertyChange) {
		l.onPropertyChanged(n)
	})
	l.bus.SubscribeChannelChanged(func(_ context.Context, n models.ChannelChange) {
		l.onChannelChanged(n)
	})
	l.bus.SubscribeDeviceDeleted(func(_ context.Context, n models.DeviceDelete) {
		l.onDeviceDeleted(n)
	})

	go l.run(ctx)
	l.enqueue()
}

// onPropertyChanged handles all property notification kinds identically.
func (l *Listener) onPropertyChanged(n models.PropertyChange) {
	if !relevantPropertyCategories[n.Property.Category] {
		return
	}
	if !relevantChannelCategories[n.ChannelCategory] {
		return
	}
	l.signal()
}

func (l *Listener) onChannelChanged(n models.ChannelChange) {
	if !relevantChannelCategories[n.Channel.Category] {
		return
	}
	l.signal()
}

func (l *Listener) onDeviceDeleted(n models.DeviceDelete) {
	for _, cat := range n.ChannelCategories {
		if relevantChannelCategories[cat] {
			l.signal()
			return
		}
	}
}

// signal (re)arms the single global debounce timer. Only the timer's final
// firing enqueues a recomputation, so a burst collapses to one cycle.
func (l *Listener) signal() {
	metrics.DebounceSignalsTotal.Inc()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.timer == nil {
		l.timer = time.AfterFunc(l.debounce, l.enqueue)
		return
	}
	l.timer.Reset(l.debounce)
}

// Refresh requests a debounced recomputation, for callers outside the
// registry notification path such as a rules reload.
func (l *Listener) Refresh() {
	l.signal()
}

// enqueue places a recomputation request in the FIFO queue. A full queue
// means a request is already pending, which covers this one too.
func (l *Listener) enqueue() {
	select {
	case l.requests <- struct{}{}:
	default:
	}
}

// run is the single consumer draining the serialization queue.
func (l *Listener) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.requests:
			l.recompute(ctx)
		}
	}
}

// recompute executes one full cycle: aggregate, record transitions, sync
// acknowledgment state, annotate, publish. Persistence failures are logged
// and swallowed; status publication always proceeds.
func (l *Listener) recompute(ctx context.Context) {
	start := time.Now()

	status, providerErrors := l.aggregator.Aggregate(ctx)

	if err := l.events.RecordTransitions(ctx, status.ActiveAlerts, status.ArmedState, status.AlarmState); err != nil {
		log.Printf("warning: security listener: %v", err)
	}

	// Sync acknowledgment records only when providers were healthy or there
	// is at least one active alert: an empty result from failing providers
	// must not wipe acknowledgment history for a transient outage.
	if providerErrors == 0 || len(status.ActiveAlerts) > 0 {
		activeIDs := make([]string, 0, len(status.ActiveAlerts))
		for _, alert := range status.ActiveAlerts {
			activeIDs = append(activeIDs, alert.ID)
			if err := l.acks.ResetOnNewer(ctx, alert.ID, alert.Timestamp); err != nil {
				log.Printf("warning: security listener: sync acknowledgment %s: %v", alert.ID, err)
			}
		}
		if err := l.acks.CleanupStale(ctx, activeIDs); err != nil {
			log.Printf("warning: security listener: cleanup stale acknowledgments: %v", err)
		}
	}

	if len(status.ActiveAlerts) > 0 {
		if err := annotateAcknowledgments(ctx, l.acks, &status); err != nil {
			log.Printf("warning: security listener: %v", err)
		}
	}

	metrics.RecomputationsTotal.Inc()
	metrics.RecomputationDuration.Observe(time.Since(start).Seconds())
	metrics.ActiveAlerts.Set(float64(status.ActiveAlertsCount))

	l.bus.PublishStatusUpdated(ctx, status)
}

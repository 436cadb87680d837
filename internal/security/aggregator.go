package security

import (
	"context"
	"log"

	"github.com/good-yellow-bee/homewatch/internal/metrics"
	"github.com/good-yellow-bee/homewatch/internal/models"
	"github.com/good-yellow-bee/homewatch/internal/registry"
)

// Aggregator merges the signals of all registered providers into one
// authoritative status snapshot. Providers run in registration order and the
// reducers are commutative, so the merged result is order-independent; the
// pipeline order only determines which in-flight context later providers see.
type Aggregator struct {
	devices   registry.Lister
	providers []Provider
}

// NewAggregator constructs an aggregator over the given providers.
func NewAggregator(devices registry.Lister, providers ...Provider) *Aggregator {
	return &Aggregator{devices: devices, providers: providers}
}

// Aggregate invokes every provider and merges the surviving signals.
// It returns the snapshot and the number of providers that errored; an
// erroring provider is logged and excluded from the merge, never fatal.
// With zero providers or all-empty signals the result is the safe baseline.
func (a *Aggregator) Aggregate(ctx context.Context) (models.SecurityStatus, int) {
	status := models.SecurityStatus{HighestSeverity: models.SeverityInfo}

	sc := &SignalContext{}
	if a.devices != nil {
		devices, err := a.devices.ListDevices(ctx)
		if err != nil {
			log.Printf("warning: aggregator: prefetch devices: %v", err)
		} else {
			sc.Devices = devices
		}
	}

	errored := 0
	for _, provider := range a.providers {
		signal, err := provider.Signals(ctx, sc)
		if err != nil {
			log.Printf("warning: security provider %q failed: %v", provider.Key(), err)
			metrics.ProviderErrorsTotal.WithLabelValues(provider.Key()).Inc()
			errored++
			continue
		}
		mergeSignal(&status, signal)
		sc.ArmedState = status.ArmedState
	}

	// Derived invariant, not just an OR of inputs.
	if status.HighestSeverity == models.SeverityCritical {
		status.HasCriticalAlert = true
	}
	return status, errored
}

// mergeSignal folds one provider signal into the running status.
func mergeSignal(status *models.SecurityStatus, signal models.SecuritySignal) {
	if status.ArmedState == nil && signal.ArmedState != nil {
		status.ArmedState = signal.ArmedState
	}
	if status.AlarmState == nil && signal.AlarmState != nil {
		status.AlarmState = signal.AlarmState
	}
	if signal.HighestSeverity != nil {
		status.HighestSeverity = models.MaxSeverity(status.HighestSeverity, *signal.HighestSeverity)
	}
	if signal.ActiveAlertsCount != nil {
		status.ActiveAlertsCount += *signal.ActiveAlertsCount
	}
	if signal.HasCriticalAlert != nil && *signal.HasCriticalAlert {
		status.HasCriticalAlert = true
	}
	status.ActiveAlerts = append(status.ActiveAlerts, signal.ActiveAlerts...)
	status.LastEvent = pickNewestEvent(status.LastEvent, signal.LastEvent)
}

// pickNewestEvent returns whichever event has the later valid timestamp.
// An event without a valid timestamp is ignored entirely: it never replaces
// anything, and it is itself replaced by any validly-timestamped candidate.
func pickNewestEvent(current, candidate *models.LastEvent) *models.LastEvent {
	if candidate == nil || candidate.Timestamp.IsZero() {
		return current
	}
	if current == nil || current.Timestamp.IsZero() {
		return candidate
	}
	if candidate.Timestamp.After(current.Timestamp) {
		return candidate
	}
	return current
}

// Package security implements the security state aggregation and alerting
// engine: signal providers, the status aggregator, the events log, the
// acknowledgment flow, and the recomputation listener.
package security

import (
	"context"

	"github.com/good-yellow-bee/homewatch/internal/models"
)

// SignalContext carries shared state through one aggregation pass so providers
// invoked in a pipeline avoid redundant registry queries.
type SignalContext struct {
	// ArmedState is the armed state resolved so far in the pipeline, nil if
	// no earlier provider reported one.
	ArmedState *models.ArmedState
	// Devices is the pre-fetched device list, nil if the fetch failed.
	Devices []models.Device
}

// Provider produces one partial security signal per aggregation pass.
// Implementations degrade internally where they can; a returned error means
// the provider is excluded from the merge for this pass.
type Provider interface {
	// Key returns the provider's stable identity, used for logging and as
	// the prefix of the deterministic alert ids it emits.
	Key() string
	// Signals produces the provider's contribution for this pass.
	Signals(ctx context.Context, sc *SignalContext) (models.SecuritySignal, error)
}

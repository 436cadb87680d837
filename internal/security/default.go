package security

import (
	"context"

	"github.com/good-yellow-bee/homewatch/internal/models"
)

// DefaultProvider reports a constant "no threat" baseline so the merged
// status is a well-formed safe snapshot even when no real integration is
// configured.
type DefaultProvider struct{}

// NewDefaultProvider constructs the baseline provider.
func NewDefaultProvider() *DefaultProvider {
	return &DefaultProvider{}
}

// Key returns the provider identity.
func (p *DefaultProvider) Key() string {
	return "default"
}

// Signals returns the constant baseline signal.
func (p *DefaultProvider) Signals(ctx context.Context, sc *SignalContext) (models.SecuritySignal, error) {
	severity := models.SeverityInfo
	count := 0
	critical := false
	return models.SecuritySignal{
		HighestSeverity:   &severity,
		ActiveAlertsCount: &count,
		HasCriticalAlert:  &critical,
	}, nil
}

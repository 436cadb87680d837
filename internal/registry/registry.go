// Package registry defines the boundary to the device registry that owns
// device, channel, and property entities. The security engine only consumes
// the read query and the change notifications published on the bus.
package registry

import (
	"context"

	"github.com/good-yellow-bee/homewatch/internal/models"
)

// Lister is the read-only device query the engine depends on.
type Lister interface {
	// ListDevices returns all devices with their channels and properties.
	ListDevices(ctx context.Context) ([]models.Device, error)
}

package registry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/good-yellow-bee/homewatch/internal/eventbus"
	"github.com/good-yellow-bee/homewatch/internal/models"
)

// Memory is an in-memory device registry. Integrations mutate it and it
// publishes change notifications on the process bus; it also serves the
// read query for the security providers.
type Memory struct {
	mu      sync.RWMutex
	bus     *eventbus.Bus
	devices map[string]*models.Device
}

// NewMemory constructs an empty in-memory registry.
func NewMemory(bus *eventbus.Bus) *Memory {
	return &Memory{
		bus:     bus,
		devices: make(map[string]*models.Device),
	}
}

// ListDevices returns a deep copy of all devices.
func (m *Memory) ListDevices(ctx context.Context) ([]models.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	devices := make([]models.Device, 0, len(m.devices))
	for _, d := range m.devices {
		devices = append(devices, copyDevice(d))
	}
	return devices, nil
}

// AddDevice registers a device, replacing any existing one with the same id.
func (m *Memory) AddDevice(ctx context.Context, device models.Device) {
	m.mu.Lock()
	d := copyDevice(&device)
	m.devices[device.ID] = &d
	m.mu.Unlock()

	for _, ch := range device.Channels {
		m.bus.PublishChannelChanged(ctx, models.ChannelChange{
			Kind:     models.ChangeCreated,
			DeviceID: device.ID,
			Channel:  ch,
		})
	}
}

// RemoveDevice deletes a device and notifies subscribers with the channel
// categories the device had.
func (m *Memory) RemoveDevice(ctx context.Context, deviceID string) {
	m.mu.Lock()
	device, ok := m.devices[deviceID]
	var categories []models.ChannelCategory
	if ok {
		for _, ch := range device.Channels {
			categories = append(categories, ch.Category)
		}
		delete(m.devices, deviceID)
	}
	m.mu.Unlock()

	if !ok {
		return
	}
	m.bus.PublishDeviceDeleted(ctx, models.DeviceDelete{
		DeviceID:          deviceID,
		ChannelCategories: categories,
	})
}

// SetProperty updates (or creates) a property value on a device channel and
// publishes a property notification.
func (m *Memory) SetProperty(ctx context.Context, deviceID string, channelCat models.ChannelCategory, propertyCat models.PropertyCategory, value any) error {
	now := time.Now()

	m.mu.Lock()
	device, ok := m.devices[deviceID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("set property: unknown device %q", deviceID)
	}
	channel, ok := device.Channel(channelCat)
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("set property: device %q has no %s channel", deviceID, channelCat)
	}

	kind := models.ChangeValueSet
	prop, ok := channel.Property(propertyCat)
	if ok {
		prop.Value = value
		prop.UpdatedAt = now
	} else {
		kind = models.ChangeCreated
		channel.Properties = append(channel.Properties, models.Property{
			ID:        fmt.Sprintf("%s:%s:%s", deviceID, channelCat, propertyCat),
			Category:  propertyCat,
			Value:     value,
			UpdatedAt: now,
		})
		prop = &channel.Properties[len(channel.Properties)-1]
	}
	notified := *prop
	channelID := channel.ID
	m.mu.Unlock()

	m.bus.PublishPropertyChanged(ctx, models.PropertyChange{
		Kind:            kind,
		DeviceID:        deviceID,
		ChannelID:       channelID,
		ChannelCategory: channelCat,
		Property:        notified,
	})
	return nil
}

// RemoveChannel deletes a channel from a device and notifies subscribers.
func (m *Memory) RemoveChannel(ctx context.Context, deviceID string, channelCat models.ChannelCategory) {
	m.mu.Lock()
	device, ok := m.devices[deviceID]
	var removed *models.Channel
	if ok {
		for i := range device.Channels {
			if device.Channels[i].Category == channelCat {
				ch := device.Channels[i]
				device.Channels = append(device.Channels[:i], device.Channels[i+1:]...)
				removed = &ch
				break
			}
		}
	}
	m.mu.Unlock()

	if removed == nil {
		return
	}
	m.bus.PublishChannelChanged(ctx, models.ChannelChange{
		Kind:     models.ChangeDeleted,
		DeviceID: deviceID,
		Channel:  *removed,
	})
}

func copyDevice(d *models.Device) models.Device {
	out := models.Device{
		ID:       d.ID,
		Name:     d.Name,
		Category: d.Category,
	}
	out.Channels = make([]models.Channel, len(d.Channels))
	for i, ch := range d.Channels {
		out.Channels[i] = models.Channel{
			ID:         ch.ID,
			Category:   ch.Category,
			Properties: append([]models.Property(nil), ch.Properties...),
		}
	}
	return out
}

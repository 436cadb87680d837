// Package eventbus provides the process-wide in-memory event bus.
package eventbus

import (
	"context"
	"sync"

	"github.com/good-yellow-bee/homewatch/internal/models"
)

// Bus is a lightweight in-process pub/sub for registry notifications and
// security status updates. Handlers run synchronously in subscribe order.
type Bus struct {
	mu sync.RWMutex

	propertyHandlers []func(context.Context, models.PropertyChange)
	channelHandlers  []func(context.Context, models.ChannelChange)
	deviceHandlers   []func(context.Context, models.DeviceDelete)
	statusHandlers   []func(context.Context, models.SecurityStatus)
}

// New constructs a new bus.
func New() *Bus {
	return &Bus{}
}

// SubscribePropertyChanged registers a handler for property notifications.
func (b *Bus) SubscribePropertyChanged(handler func(context.Context, models.PropertyChange)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.propertyHandlers = append(b.propertyHandlers, handler)
}

// PublishPropertyChanged delivers a property notification to all subscribers.
func (b *Bus) PublishPropertyChanged(ctx context.Context, n models.PropertyChange) {
	b.mu.RLock()
	handlers := append([]func(context.Context, models.PropertyChange){}, b.propertyHandlers...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		handler(ctx, n)
	}
}

// SubscribeChannelChanged registers a handler for channel notifications.
func (b *Bus) SubscribeChannelChanged(handler func(context.Context, models.ChannelChange)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channelHandlers = append(b.channelHandlers, handler)
}

// PublishChannelChanged delivers a channel notification to all subscribers.
func (b *Bus) PublishChannelChanged(ctx context.Context, n models.ChannelChange) {
	b.mu.RLock()
	handlers := append([]func(context.Context, models.ChannelChange){}, b.channelHandlers...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		handler(ctx, n)
	}
}

// SubscribeDeviceDeleted registers a handler for device deletions.
func (b *Bus) SubscribeDeviceDeleted(handler func(context.Context, models.DeviceDelete)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deviceHandlers = append(b.deviceHandlers, handler)
}

// PublishDeviceDeleted delivers a device deletion to all subscribers.
func (b *Bus) PublishDeviceDeleted(ctx context.Context, n models.DeviceDelete) {
	b.mu.RLock()
	handlers := append([]func(context.Context, models.DeviceDelete){}, b.deviceHandlers...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		handler(ctx, n)
	}
}

// SubscribeStatusUpdated registers a handler for security status updates.
func (b *Bus) SubscribeStatusUpdated(handler func(context.Context, models.SecurityStatus)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusHandlers = append(b.statusHandlers, handler)
}

// PublishStatusUpdated delivers the latest security status to all subscribers.
func (b *Bus) PublishStatusUpdated(ctx context.Context, status models.SecurityStatus) {
	b.mu.RLock()
	handlers := append([]func(context.Context, models.SecurityStatus){}, b.statusHandlers...)
	b.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		handler(ctx, status)
	}
}

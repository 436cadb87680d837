// Package models defines domain models for HomeWatch.
package models

import "time"

// DeviceCategory classifies a device in the registry.
type DeviceCategory string

const (
	DeviceCategoryAlarm   DeviceCategory = "alarm"
	DeviceCategorySensor  DeviceCategory = "sensor"
	DeviceCategoryGeneric DeviceCategory = "generic"
)

// ChannelCategory classifies a channel on a device.
type ChannelCategory string

const (
	ChannelCategoryAlarm          ChannelCategory = "alarm"
	ChannelCategorySmoke          ChannelCategory = "smoke"
	ChannelCategoryCarbonMonoxide ChannelCategory = "carbon_monoxide"
	ChannelCategoryLeak           ChannelCategory = "leak"
	ChannelCategoryGas            ChannelCategory = "gas"
	ChannelCategoryMotion         ChannelCategory = "motion"
	ChannelCategoryOccupancy      ChannelCategory = "occupancy"
	ChannelCategoryContact        ChannelCategory = "contact"
)

// ParseChannelCategory converts a string to a ChannelCategory.
func ParseChannelCategory(s string) (ChannelCategory, bool) {
	switch ChannelCategory(s) {
	case ChannelCategoryAlarm, ChannelCategorySmoke, ChannelCategoryCarbonMonoxide,
		ChannelCategoryLeak, ChannelCategoryGas, ChannelCategoryMotion,
		ChannelCategoryOccupancy, ChannelCategoryContact:
		return ChannelCategory(s), true
	default:
		return "", false
	}
}

// PropertyCategory classifies a property on a channel.
type PropertyCategory string

const (
	PropertyCategoryState         PropertyCategory = "state"
	PropertyCategoryAlarmState    PropertyCategory = "alarm_state"
	PropertyCategoryTriggered     PropertyCategory = "triggered"
	PropertyCategoryTampered      PropertyCategory = "tampered"
	PropertyCategoryActive        PropertyCategory = "active"
	PropertyCategoryFault         PropertyCategory = "fault"
	PropertyCategoryLastEvent     PropertyCategory = "last_event"
	PropertyCategoryDetected      PropertyCategory = "detected"
	PropertyCategoryConcentration PropertyCategory = "concentration"
	PropertyCategoryStatus        PropertyCategory = "status"
)

// ParsePropertyCategory converts a string to a PropertyCategory.
func ParsePropertyCategory(s string) (PropertyCategory, bool) {
	switch PropertyCategory(s) {
	case PropertyCategoryState, PropertyCategoryAlarmState, PropertyCategoryTriggered,
		PropertyCategoryTampered, PropertyCategoryActive, PropertyCategoryFault,
		PropertyCategoryLastEvent, PropertyCategoryDetected,
		PropertyCategoryConcentration, PropertyCategoryStatus:
		return PropertyCategory(s), true
	default:
		return "", false
	}
}

// Property is a single value on a channel, owned by the device registry.
type Property struct {
	ID        string           `json:"id"`
	Category  PropertyCategory `json:"category"`
	Value     any              `json:"value"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Channel groups related properties on a device.
type Channel struct {
	ID         string          `json:"id"`
	Category   ChannelCategory `json:"category"`
	Properties []Property      `json:"properties,omitempty"`
}

// Property returns the channel's property with the given category.
func (c *Channel) Property(cat PropertyCategory) (*Property, bool) {
	for i := range c.Properties {
		if c.Properties[i].Category == cat {
			return &c.Properties[i], true
		}
	}
	return nil, false
}

// Device is a registry device with its channels and properties.
type Device struct {
	ID       string         `json:"id"`
	Name     string         `json:"name,omitempty"`
	Category DeviceCategory `json:"category"`
	Channels []Channel      `json:"channels,omitempty"`
}

// Channel returns the device's first channel with the given category.
func (d *Device) Channel(cat ChannelCategory) (*Channel, bool) {
	for i := range d.Channels {
		if d.Channels[i].Category == cat {
			return &d.Channels[i], true
		}
	}
	return nil, false
}

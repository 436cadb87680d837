package models

// ChangeKind distinguishes registry notification variants. The engine treats
// created, value-set, updated, and deleted property notifications identically.
type ChangeKind string

const (
	ChangeCreated  ChangeKind = "created"
	ChangeValueSet ChangeKind = "value_set"
	ChangeUpdated  ChangeKind = "updated"
	ChangeDeleted  ChangeKind = "deleted"
)

// PropertyChange notifies about a property lifecycle event in the registry.
type PropertyChange struct {
	Kind            ChangeKind
	DeviceID        string
	ChannelID       string
	ChannelCategory ChannelCategory
	Property        Property
}

// ChannelChange notifies about a channel being created or deleted.
type ChannelChange struct {
	Kind     ChangeKind
	DeviceID string
	Channel  Channel
}

// DeviceDelete notifies about a device being removed, carrying the channel
// categories it had so consumers can decide relevance.
type DeviceDelete struct {
	DeviceID          string
	ChannelCategories []ChannelCategory
}

// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"time"

	"github.com/good-yellow-bee/homewatch/internal/models"
)

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error

	// Repository accessors
	Acknowledgments() AcknowledgmentRepository
	Events() SecurityEventRepository
}

// AckItem pairs an alert id with its optional occurrence timestamp for bulk
// acknowledgment.
type AckItem struct {
	AlertID    string
	OccurredAt *time.Time
}

// AcknowledgmentRepository defines operations for per-alert acknowledgment state.
type AcknowledgmentRepository interface {
	// Get returns the record for an alert id, or nil if none exists.
	Get(ctx context.Context, alertID string) (*models.AlertAcknowledgment, error)
	// FindByIDs returns records for the given ids. An empty input
	// short-circuits to an empty result without querying.
	FindByIDs(ctx context.Context, alertIDs []string) ([]*models.AlertAcknowledgment, error)
	// Acknowledge creates or updates the record, setting acknowledged=true
	// and acknowledged_at=now. A supplied occurrence timestamp also updates
	// last_event_at.
	Acknowledge(ctx context.Context, alertID string, occurredAt *time.Time, actor string) (*models.AlertAcknowledgment, error)
	// AcknowledgeAll acknowledges every item in a single write.
	AcknowledgeAll(ctx context.Context, items []AckItem, actor string) ([]*models.AlertAcknowledgment, error)
	// ResetOnNewer creates the record unacknowledged if absent, or flips
	// acknowledged back to false when occurredAt is strictly newer (to the
	// second) than the stored last_event_at. Otherwise it is a no-op.
	ResetOnNewer(ctx context.Context, alertID string, occurredAt time.Time) error
	// CleanupStale deletes records whose alert id is not in activeIDs.
	// An empty activeIDs clears the whole table.
	CleanupStale(ctx context.Context, activeIDs []string) error
	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)
}

// EventFilter narrows a security event query. Filters are conjunctive.
type EventFilter struct {
	Limit    int
	Since    *time.Time
	Severity *models.Severity
	Type     *models.SecurityEventType
}

// SecurityEventRepository defines operations for the append-only events log.
type SecurityEventRepository interface {
	// Insert writes a single event.
	Insert(ctx context.Context, event *models.SecurityEvent) error
	// InsertBatch writes all events in one transaction.
	InsertBatch(ctx context.Context, events []*models.SecurityEvent) error
	// List returns events matching the filter, newest first.
	List(ctx context.Context, filter EventFilter) ([]*models.SecurityEvent, error)
	// Count returns the total number of stored events.
	Count(ctx context.Context) (int64, error)
	// EnforceRetention trims the table down to at most maxRows rows,
	// evicting oldest first.
	EnforceRetention(ctx context.Context, maxRows int) error
}

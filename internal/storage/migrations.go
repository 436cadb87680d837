package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Per-alert acknowledgment state
			CREATE TABLE IF NOT EXISTS alert_acknowledgments (
				alert_id TEXT PRIMARY KEY,
				acknowledged INTEGER NOT NULL DEFAULT 0,
				acknowledged_at DATETIME,
				last_event_at DATETIME,
				acknowledged_by TEXT,
				updated_at DATETIME NOT NULL
			);

			-- Append-only security events log
			CREATE TABLE IF NOT EXISTS security_events (
				id TEXT PRIMARY KEY,
				timestamp DATETIME NOT NULL,
				event_type TEXT NOT NULL,
				severity TEXT,
				alert_id TEXT,
				alert_type TEXT,
				source_device_id TEXT,
				payload_json TEXT
			);

			-- Indexes
			CREATE INDEX IF NOT EXISTS idx_security_events_timestamp ON security_events(timestamp);
			CREATE INDEX IF NOT EXISTS idx_security_events_type ON security_events(event_type);
			CREATE INDEX IF NOT EXISTS idx_security_events_severity ON security_events(severity);
		`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		_, err = tx.Exec(m.Up)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d (%s): %w", m.Version, m.Name, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now().UTC(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

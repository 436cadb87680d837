package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/good-yellow-bee/homewatch/internal/models"
)

type sqliteEventRepo struct {
	db *sql.DB
}

const eventColumns = "id, timestamp, event_type, severity, alert_id, alert_type, source_device_id, payload_json"

func (r *sqliteEventRepo) Insert(ctx context.Context, event *models.SecurityEvent) error {
	return r.insert(ctx, r.db, event)
}

func (r *sqliteEventRepo) InsertBatch(ctx context.Context, events []*models.SecurityEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin event batch: %w", err)
	}
	defer tx.Rollback()

	for _, event := range events {
		if err := r.insert(ctx, tx, event); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event batch: %w", err)
	}
	return nil
}

func (r *sqliteEventRepo) insert(ctx context.Context, db execer, event *models.SecurityEvent) error {
	var payload any
	if len(event.Payload) > 0 {
		data, err := json.Marshal(event.Payload)
		if err != nil {
			return fmt.Errorf("encode event payload: %w", err)
		}
		payload = string(data)
	}

	var severity any
	if event.Severity != nil {
		severity = string(*event.Severity)
	}

	query := `
		INSERT INTO security_events
			(id, timestamp, event_type, severity, alert_id, alert_type, source_device_id, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		event.ID, event.Timestamp.UTC(), string(event.Type), severity,
		nullString(event.AlertID), nullString(string(event.AlertType)),
		nullString(event.SourceDeviceID), payload,
	)
	if err != nil {
		return fmt.Errorf("insert security event: %w", err)
	}
	return nil
}

func (r *sqliteEventRepo) List(ctx context.Context, filter EventFilter) ([]*models.SecurityEvent, error) {
	var conditions []string
	var args []any

	if filter.Since != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, filter.Since.UTC())
	}
	if filter.Severity != nil {
		conditions = append(conditions, "severity = ?")
		args = append(args, string(*filter.Severity))
	}
	if filter.Type != nil {
		conditions = append(conditions, "event_type = ?")
		args = append(args, string(*filter.Type))
	}

	query := "SELECT " + eventColumns + " FROM security_events"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query security events: %w", err)
	}
	defer rows.Close()

	var events []*models.SecurityEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan security event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

func (r *sqliteEventRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM security_events").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count security events: %w", err)
	}
	return count, nil
}

// EnforceRetention trims the events table to at most maxRows rows, oldest
// first. The trim runs in two phases: a bulk delete below the cutoff timestamp
// of the (maxRows+1)-newest row, then an exact trim for anything that slipped
// in between the cutoff computation and the delete.
func (r *sqliteEventRepo) EnforceRetention(ctx context.Context, maxRows int) error {
	count, err := r.Count(ctx)
	if err != nil {
		return err
	}
	if count <= int64(maxRows) {
		return nil
	}

	// The cutoff must round-trip as time.Time so the driver renders both
	// sides of the comparison in the same text form it used on insert.
	var cutoff time.Time
	err = r.db.QueryRowContext(ctx,
		"SELECT timestamp FROM security_events ORDER BY timestamp DESC LIMIT 1 OFFSET ?", maxRows,
	).Scan(&cutoff)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return fmt.Errorf("find retention cutoff: %w", err)
	default:
		_, err = r.db.ExecContext(ctx, "DELETE FROM security_events WHERE timestamp < ?", cutoff.UTC())
		if err != nil {
			return fmt.Errorf("delete events below cutoff: %w", err)
		}
	}

	count, err = r.Count(ctx)
	if err != nil {
		return err
	}
	if count <= int64(maxRows) {
		return nil
	}

	_, err = r.db.ExecContext(ctx, `
		DELETE FROM security_events WHERE id IN (
			SELECT id FROM security_events ORDER BY timestamp ASC LIMIT ?
		)`, count-int64(maxRows))
	if err != nil {
		return fmt.Errorf("trim events to retention limit: %w", err)
	}
	return nil
}

func scanEvent(row rowScanner) (*models.SecurityEvent, error) {
	event := &models.SecurityEvent{}
	var eventType string
	var severity, alertID, alertType, sourceDeviceID, payload sql.NullString
	err := row.Scan(&event.ID, &event.Timestamp, &eventType, &severity,
		&alertID, &alertType, &sourceDeviceID, &payload)
	if err != nil {
		return nil, err
	}
	event.Type = models.SecurityEventType(eventType)
	if severity.Valid {
		s := models.Severity(severity.String)
		event.Severity = &s
	}
	event.AlertID = alertID.String
	event.AlertType = models.AlertType(alertType.String)
	event.SourceDeviceID = sourceDeviceID.String
	if payload.Valid && payload.String != "" {
		if err := json.Unmarshal([]byte(payload.String), &event.Payload); err != nil {
			return nil, fmt.Errorf("decode event payload: %w", err)
		}
	}
	return event, nil
}

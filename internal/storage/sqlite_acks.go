package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/good-yellow-bee/homewatch/internal/models"
)

type sqliteAckRepo struct {
	db *sql.DB
}

const ackColumns = "alert_id, acknowledged, acknowledged_at, last_event_at, acknowledged_by, updated_at"

func (r *sqliteAckRepo) Get(ctx context.Context, alertID string) (*models.AlertAcknowledgment, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+ackColumns+" FROM alert_acknowledgments WHERE alert_id = ?", alertID)
	ack, err := scanAck(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get acknowledgment: %w", err)
	}
	return ack, nil
}

func (r *sqliteAckRepo) FindByIDs(ctx context.Context, alertIDs []string) ([]*models.AlertAcknowledgment, error) {
	if len(alertIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(alertIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(alertIDs))
	for i, id := range alertIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+ackColumns+" FROM alert_acknowledgments WHERE alert_id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("find acknowledgments: %w", err)
	}
	defer rows.Close()

	var acks []*models.AlertAcknowledgment
	for rows.Next() {
		ack, err := scanAck(rows)
		if err != nil {
			return nil, fmt.Errorf("scan acknowledgment: %w", err)
		}
		acks = append(acks, ack)
	}
	return acks, rows.Err()
}

func (r *sqliteAckRepo) Acknowledge(ctx context.Context, alertID string, occurredAt *time.Time, actor string) (*models.AlertAcknowledgment, error) {
	now := time.Now().UTC()

	existing, err := r.Get(ctx, alertID)
	if err != nil {
		return nil, err
	}

	ack := existing
	if ack == nil {
		ack = &models.AlertAcknowledgment{AlertID: alertID}
	}
	ack.Acknowledged = true
	ack.AcknowledgedAt = &now
	ack.UpdatedAt = now
	if actor != "" {
		ack.AcknowledgedBy = actor
	}
	if occurredAt != nil {
		t := occurredAt.UTC()
		ack.LastEventAt = &t
	}

	if err := r.upsert(ctx, r.db, ack); err != nil {
		return nil, err
	}
	return ack, nil
}

func (r *sqliteAckRepo) AcknowledgeAll(ctx context.Context, items []AckItem, actor string) ([]*models.AlertAcknowledgment, error) {
	if len(items) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin acknowledge all: %w", err)
	}
	defer tx.Rollback()

	acks := make([]*models.AlertAcknowledgment, 0, len(items))
	for _, item := range items {
		ack := &models.AlertAcknowledgment{
			AlertID:        item.AlertID,
			Acknowledged:   true,
			AcknowledgedAt: &now,
			AcknowledgedBy: actor,
			UpdatedAt:      now,
		}
		if item.OccurredAt != nil {
			t := item.OccurredAt.UTC()
			ack.LastEventAt = &t
		}
		if err := r.upsert(ctx, tx, ack); err != nil {
			return nil, err
		}
		acks = append(acks, ack)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit acknowledge all: %w", err)
	}
	return acks, nil
}

func (r *sqliteAckRepo) ResetOnNewer(ctx context.Context, alertID string, occurredAt time.Time) error {
	occurred := occurredAt.UTC()

	existing, err := r.Get(ctx, alertID)
	if err != nil {
		return err
	}

	if existing == nil {
		return r.upsert(ctx, r.db, &models.AlertAcknowledgment{
			AlertID:     alertID,
			LastEventAt: &occurred,
			UpdatedAt:   time.Now().UTC(),
		})
	}

	// Truncate to whole seconds so a round-tripped timestamp does not look
	// newer than itself and spuriously reset the acknowledgment.
	if existing.LastEventAt != nil &&
		!occurred.Truncate(time.Second).After(existing.LastEventAt.Truncate(time.Second)) {
		return nil
	}

	existing.Acknowledged = false
	existing.LastEventAt = &occurred
	existing.UpdatedAt = time.Now().UTC()
	return r.upsert(ctx, r.db, existing)
}

func (r *sqliteAckRepo) CleanupStale(ctx context.Context, activeIDs []string) error {
	if len(activeIDs) == 0 {
		if _, err := r.db.ExecContext(ctx, "DELETE FROM alert_acknowledgments"); err != nil {
			return fmt.Errorf("clear acknowledgments: %w", err)
		}
		return nil
	}

	placeholders := strings.Repeat("?,", len(activeIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(activeIDs))
	for i, id := range activeIDs {
		args[i] = id
	}

	_, err := r.db.ExecContext(ctx,
		"DELETE FROM alert_acknowledgments WHERE alert_id NOT IN ("+placeholders+")", args...)
	if err != nil {
		return fmt.Errorf("cleanup stale acknowledgments: %w", err)
	}
	return nil
}

func (r *sqliteAckRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_acknowledgments").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count acknowledgments: %w", err)
	}
	return count, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (r *sqliteAckRepo) upsert(ctx context.Context, db execer, ack *models.AlertAcknowledgment) error {
	query := `
		INSERT INTO alert_acknowledgments
			(alert_id, acknowledged, acknowledged_at, last_event_at, acknowledged_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(alert_id) DO UPDATE SET
			acknowledged = excluded.acknowledged,
			acknowledged_at = excluded.acknowledged_at,
			last_event_at = excluded.last_event_at,
			acknowledged_by = excluded.acknowledged_by,
			updated_at = excluded.updated_at
	`
	_, err := db.ExecContext(ctx, query,
		ack.AlertID, ack.Acknowledged, nullTime(ack.AcknowledgedAt), nullTime(ack.LastEventAt),
		nullString(ack.AcknowledgedBy), ack.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert acknowledgment: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAck(row rowScanner) (*models.AlertAcknowledgment, error) {
	ack := &models.AlertAcknowledgment{}
	var acknowledgedAt, lastEventAt sql.NullTime
	var acknowledgedBy sql.NullString
	err := row.Scan(&ack.AlertID, &ack.Acknowledged, &acknowledgedAt, &lastEventAt,
		&acknowledgedBy, &ack.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if acknowledgedAt.Valid {
		t := acknowledgedAt.Time
		ack.AcknowledgedAt = &t
	}
	if lastEventAt.Valid {
		t := lastEventAt.Time
		ack.LastEventAt = &t
	}
	ack.AcknowledgedBy = acknowledgedBy.String
	return ack, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

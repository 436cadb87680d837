package security

import (
	"context"
	"fmt"
	"time"

	"github.com/good-yellow-bee/homewatch/internal/models"
	"github.com/good-yellow-bee/homewatch/internal/storage"
)

// annotateAcknowledgments fills the computed Acknowledged flag on each active
// alert from the persisted acknowledgment records. Read-only: an alert whose
// own timestamp (truncated to seconds) is newer than the recorded occurrence
// is shown unacknowledged even if the persisted sync has not caught up yet.
func annotateAcknowledgments(ctx context.Context, acks storage.AcknowledgmentRepository, status *models.SecurityStatus) error {
	if len(status.ActiveAlerts) == 0 {
		return nil
	}

	ids := make([]string, len(status.ActiveAlerts))
	for i, alert := range status.ActiveAlerts {
		ids[i] = alert.ID
	}
	records, err := acks.FindByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("annotate acknowledgments: %w", err)
	}

	byID := make(map[string]*models.AlertAcknowledgment, len(records))
	for _, record := range records {
		byID[record.AlertID] = record
	}

	for i := range status.ActiveAlerts {
		alert := &status.ActiveAlerts[i]
		record, ok := byID[alert.ID]
		if !ok {
			alert.Acknowledged = false
			continue
		}
		acknowledged := record.Acknowledged
		if acknowledged && record.LastEventAt != nil &&
			alert.Timestamp.Truncate(time.Second).After(record.LastEventAt.Truncate(time.Second)) {
			// Newer occurrence than the one acknowledged.
			acknowledged = false
		}
		alert.Acknowledged = acknowledged
	}
	return nil
}

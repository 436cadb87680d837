package security

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/good-yellow-bee/homewatch/internal/eventbus"
	"github.com/good-yellow-bee/homewatch/internal/models"
	"github.com/good-yellow-bee/homewatch/internal/storage"
)

// ErrAlertNotFound is returned when the target alert id is not among the
// currently active alerts. Only live conditions can be acknowledged.
var ErrAlertNotFound = errors.New("alert not found among active alerts")

// Service is the synchronous facade over the engine: status retrieval and
// acknowledgment commands, with immediate status republication.
type Service struct {
	aggregator *Aggregator
	acks       storage.AcknowledgmentRepository
	events     *EventLog
	bus        *eventbus.Bus
}

// NewService constructs the security service.
func NewService(aggregator *Aggregator, acks storage.AcknowledgmentRepository, events *EventLog, bus *eventbus.Bus) *Service {
	return &Service{aggregator: aggregator, acks: acks, events: events, bus: bus}
}

// GetStatus computes a fully-formed status for synchronous callers, with
// acknowledgment annotation, without waiting for the listener's debounce
// cycle. It always returns a well-formed snapshot; annotation failures are
// logged and the alerts are shown unacknowledged.
func (s *Service) GetStatus(ctx context.Context) models.SecurityStatus {
	status, _ := s.aggregator.Aggregate(ctx)
	if len(status.ActiveAlerts) > 0 {
		if err := annotateAcknowledgments(ctx, s.acks, &status); err != nil {
			log.Printf("warning: security service: %v", err)
		}
	}
	return status
}

// RecentEvents lists recent security events, newest first.
func (s *Service) RecentEvents(ctx context.Context, q RecentQuery) ([]*models.SecurityEvent, error) {
	return s.events.Recent(ctx, q)
}

// AcknowledgeAlert acknowledges one currently active alert by id. The alert's
// own timestamp, truncated to whole seconds, becomes the occurrence marker so
// the same occurrence does not re-trigger on the next recomputation.
func (s *Service) AcknowledgeAlert(ctx context.Context, alertID, actor string) (*models.AlertAcknowledgment, error) {
	status, _ := s.aggregator.Aggregate(ctx)

	var target *models.SecurityAlert
	for i := range status.ActiveAlerts {
		if status.ActiveAlerts[i].ID == alertID {
			target = &status.ActiveAlerts[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %s", ErrAlertNotFound, alertID)
	}

	occurredAt := target.Timestamp.Truncate(time.Second)
	ack, err := s.acks.Acknowledge(ctx, alertID, &occurredAt, actor)
	if err != nil {
		return nil, fmt.Errorf("acknowledge alert %s: %w", alertID, err)
	}

	severity := target.Severity
	if err := s.events.RecordAcknowledgement(ctx, target.ID, target.Type, target.SourceDeviceID, &severity); err != nil {
		log.Printf("warning: security service: %v", err)
	}

	s.publishStatus(ctx)
	return ack, nil
}

// AcknowledgeAllAlerts acknowledges every currently active alert in one batch
// write, records one acknowledgment event per alert best-effort, and
// republishes the status. It returns the records that ended up acknowledged.
func (s *Service) AcknowledgeAllAlerts(ctx context.Context, actor string) ([]*models.AlertAcknowledgment, error) {
	status, _ := s.aggregator.Aggregate(ctx)
	if len(status.ActiveAlerts) == 0 {
		return nil, nil
	}

	items := make([]storage.AckItem, 0, len(status.ActiveAlerts))
	for _, alert := range status.ActiveAlerts {
		occurredAt := alert.Timestamp.Truncate(time.Second)
		items = append(items, storage.AckItem{AlertID: alert.ID, OccurredAt: &occurredAt})
	}

	acks, err := s.acks.AcknowledgeAll(ctx, items, actor)
	if err != nil {
		return nil, fmt.Errorf("acknowledge all alerts: %w", err)
	}

	for _, alert := range status.ActiveAlerts {
		severity := alert.Severity
		if err := s.events.RecordAcknowledgement(ctx, alert.ID, alert.Type, alert.SourceDeviceID, &severity); err != nil {
			log.Printf("warning: security service: %v", err)
		}
	}

	s.publishStatus(ctx)

	acknowledged := make([]*models.AlertAcknowledgment, 0, len(acks))
	for _, ack := range acks {
		if ack.Acknowledged {
			acknowledged = append(acknowledged, ack)
		}
	}
	return acknowledged, nil
}

// publishStatus recomputes and publishes a fresh annotated status so
// acknowledgments are reflected immediately rather than waiting for the next
// device event.
func (s *Service) publishStatus(ctx context.Context) {
	status := s.GetStatus(ctx)
	s.bus.PublishStatusUpdated(ctx, status)
}

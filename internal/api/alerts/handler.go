// Package alerts provides HTTP handlers for security status, alert
// acknowledgment, and event history endpoints.
package alerts

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/homewatch/internal/api/middleware"
	"github.com/good-yellow-bee/homewatch/internal/models"
	"github.com/good-yellow-bee/homewatch/internal/security"
	"github.com/good-yellow-bee/homewatch/internal/storage"
)

// Response helpers
type errorResponse struct {
	Error errorBody `json:"error"`
}
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
type dataResponse struct {
	Data any `json:"data"`
}

const (
	errCodeBadRequest    = "BAD_REQUEST"
	errCodeNotFound      = "NOT_FOUND"
	errCodeInternalError = "INTERNAL_ERROR"
)

func jsonError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(errorResponse{Error: errorBody{Code: code, Message: message}}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

func jsonOK(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(dataResponse{Data: data}); err != nil {
		log.Printf("json encode error: %v", err)
	}
}

// Response types
type AlertResponse struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Severity       string `json:"severity"`
	SourceDeviceID string `json:"source_device_id"`
	Timestamp      string `json:"timestamp"`
	Acknowledged   bool   `json:"acknowledged"`
}

type LastEventResponse struct {
	Type           string `json:"type"`
	Timestamp      string `json:"timestamp"`
	SourceDeviceID string `json:"source_device_id,omitempty"`
	Severity       string `json:"severity,omitempty"`
}

type StatusResponse struct {
	ArmedState        *string            `json:"armed_state"`
	AlarmState        *string            `json:"alarm_state"`
	HighestSeverity   string             `json:"highest_severity"`
	ActiveAlertsCount int                `json:"active_alerts_count"`
	HasCriticalAlert  bool               `json:"has_critical_alert"`
	ActiveAlerts      []*AlertResponse   `json:"active_alerts"`
	LastEvent         *LastEventResponse `json:"last_event,omitempty"`
}

type EventResponse struct {
	ID             string         `json:"id"`
	Timestamp      string         `json:"timestamp"`
	Type           string         `json:"type"`
	Severity       string         `json:"severity,omitempty"`
	AlertID        string         `json:"alert_id,omitempty"`
	AlertType      string         `json:"alert_type,omitempty"`
	SourceDeviceID string         `json:"source_device_id,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
}

type EventListResponse struct {
	Items []*EventResponse `json:"items"`
	Total int64            `json:"total"`
	Limit int              `json:"limit"`
}

type AckResponse struct {
	AlertID        string `json:"alert_id"`
	Acknowledged   bool   `json:"acknowledged"`
	AcknowledgedAt string `json:"acknowledged_at,omitempty"`
	AcknowledgedBy string `json:"acknowledged_by,omitempty"`
}

type AckListResponse struct {
	Items []*AckResponse `json:"items"`
	Total int            `json:"total"`
}

// Handler handles security status and alert endpoints.
type Handler struct {
	service *security.Service
	events  storage.SecurityEventRepository
}

func NewHandler(service *security.Service, events storage.SecurityEventRepository) *Handler {
	return &Handler{service: service, events: events}
}

// Status handles GET /api/v1/security/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	status := h.service.GetStatus(r.Context())
	jsonOK(w, statusToResponse(status))
}

// ListEvents handles GET /api/v1/security/events.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	query := security.RecentQuery{}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 || limit > security.MaxRecentLimit {
			jsonError(w, http.StatusBadRequest, errCodeBadRequest,
				"limit must be between 1 and "+strconv.Itoa(security.MaxRecentLimit))
			return
		}
		query.Limit = limit
	}

	if sinceStr := q.Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, "invalid since time format (use RFC3339)")
			return
		}
		query.Since = &since
	}

	if sevStr := q.Get("severity"); sevStr != "" {
		severity, ok := models.ParseSeverity(sevStr)
		if !ok {
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, "severity must be info, warning, or critical")
			return
		}
		query.Severity = &severity
	}

	if typeStr := q.Get("type"); typeStr != "" {
		eventType, ok := models.ParseSecurityEventType(typeStr)
		if !ok {
			jsonError(w, http.StatusBadRequest, errCodeBadRequest, "unknown event type")
			return
		}
		query.Type = &eventType
	}

	// Run the list and total count in parallel.
	var (
		events []*models.SecurityEvent
		total  int64
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		events, err = h.service.RecentEvents(gCtx, query)
		if err != nil {
			log.Printf("event list error: %v", err)
		}
		return err
	})

	g.Go(func() error {
		var err error
		total, err = h.events.Count(gCtx)
		if err != nil {
			log.Printf("event count error: %v", err)
		}
		return err
	})

	if err := g.Wait(); err != nil {
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	items := make([]*EventResponse, len(events))
	for i, event := range events {
		items[i] = eventToResponse(event)
	}

	limit := query.Limit
	if limit == 0 {
		limit = security.DefaultRecentLimit
	}

	jsonOK(w, &EventListResponse{Items: items, Total: total, Limit: limit})
}

// Acknowledge handles POST /api/v1/security/alerts/{id}/acknowledge.
func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	alertID := chi.URLParam(r, "id")
	if alertID == "" {
		jsonError(w, http.StatusBadRequest, errCodeBadRequest, "alert id is required")
		return
	}

	actor := middleware.GetActor(r.Context())

	ack, err := h.service.AcknowledgeAlert(r.Context(), alertID, actor)
	if err != nil {
		if errors.Is(err, security.ErrAlertNotFound) {
			jsonError(w, http.StatusNotFound, errCodeNotFound, "alert not found among active alerts")
			return
		}
		log.Printf("acknowledge alert error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	jsonOK(w, ackToResponse(ack))
}

// AcknowledgeAll handles POST /api/v1/security/alerts/acknowledge.
func (h *Handler) AcknowledgeAll(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	acks, err := h.service.AcknowledgeAllAlerts(r.Context(), actor)
	if err != nil {
		log.Printf("acknowledge all error: %v", err)
		jsonError(w, http.StatusInternalServerError, errCodeInternalError, "internal server error")
		return
	}

	items := make([]*AckResponse, len(acks))
	for i, ack := range acks {
		items[i] = ackToResponse(ack)
	}

	jsonOK(w, &AckListResponse{Items: items, Total: len(items)})
}

func statusToResponse(status models.SecurityStatus) *StatusResponse {
	resp := &StatusResponse{
		HighestSeverity:   string(status.HighestSeverity),
		ActiveAlertsCount: status.ActiveAlertsCount,
		HasCriticalAlert:  status.HasCriticalAlert,
		ActiveAlerts:      make([]*AlertResponse, len(status.ActiveAlerts)),
	}

	if status.ArmedState != nil {
		armed := string(*status.ArmedState)
		resp.ArmedState = &armed
	}
	if status.AlarmState != nil {
		alarm := string(*status.AlarmState)
		resp.AlarmState = &alarm
	}

	for i, alert := range status.ActiveAlerts {
		resp.ActiveAlerts[i] = &AlertResponse{
			ID:             alert.ID,
			Type:           string(alert.Type),
			Severity:       string(alert.Severity),
			SourceDeviceID: alert.SourceDeviceID,
			Timestamp:      alert.Timestamp.Format(time.RFC3339),
			Acknowledged:   alert.Acknowledged,
		}
	}

	if status.LastEvent != nil {
		resp.LastEvent = &LastEventResponse{
			Type:           status.LastEvent.Type,
			Timestamp:      status.LastEvent.Timestamp.Format(time.RFC3339),
			SourceDeviceID: status.LastEvent.SourceDeviceID,
		}
		if status.LastEvent.Severity != nil {
			resp.LastEvent.Severity = string(*status.LastEvent.Severity)
		}
	}

	return resp
}

func eventToResponse(event *models.SecurityEvent) *EventResponse {
	resp := &EventResponse{
		ID:             event.ID,
		Timestamp:      event.Timestamp.Format(time.RFC3339),
		Type:           string(event.Type),
		AlertID:        event.AlertID,
		AlertType:      string(event.AlertType),
		SourceDeviceID: event.SourceDeviceID,
		Payload:        event.Payload,
	}
	if event.Severity != nil {
		resp.Severity = string(*event.Severity)
	}
	return resp
}

func ackToResponse(ack *models.AlertAcknowledgment) *AckResponse {
	resp := &AckResponse{
		AlertID:        ack.AlertID,
		Acknowledged:   ack.Acknowledged,
		AcknowledgedBy: ack.AcknowledgedBy,
	}
	if ack.AcknowledgedAt != nil {
		resp.AcknowledgedAt = ack.AcknowledgedAt.Format(time.RFC3339)
	}
	return resp
}

// Package health serves the process liveness and readiness endpoints.
package health

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"
)

// readyTimeout bounds the combined time spent probing dependencies.
const readyTimeout = 5 * time.Second

// Checker probes one dependency of the engine (e.g. the sqlite database).
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// Handler serves /health, /health/live, and /health/ready.
type Handler struct {
	mu       sync.RWMutex
	checkers []Checker
}

func NewHandler() *Handler {
	return &Handler{}
}

// RegisterChecker adds a dependency probe consulted by the readiness endpoint.
func (h *Handler) RegisterChecker(c Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers = append(h.checkers, c)
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func writeStatus(w http.ResponseWriter, code int, resp statusResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		log.Printf("warning: encode health response: %v", err)
	}
}

// Health answers a plain "is the process up" probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, statusResponse{Status: "ok"})
}

// Live is the liveness probe: it succeeds whenever the process can serve.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeStatus(w, http.StatusOK, statusResponse{Status: "live"})
}

// Ready is the readiness probe: it runs every registered dependency check and
// reports 503 with per-check detail when any of them fails.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	h.mu.RLock()
	checkers := append([]Checker{}, h.checkers...)
	h.mu.RUnlock()

	checks := make(map[string]string, len(checkers))
	healthy := true
	for _, checker := range checkers {
		if err := checker.Check(ctx); err != nil {
			checks[checker.Name()] = err.Error()
			healthy = false
			continue
		}
		checks[checker.Name()] = "ok"
	}

	if !healthy {
		writeStatus(w, http.StatusServiceUnavailable, statusResponse{Status: "not_ready", Checks: checks})
		return
	}
	writeStatus(w, http.StatusOK, statusResponse{Status: "ready", Checks: checks})
}

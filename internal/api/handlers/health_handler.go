package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/to-ny/medsearch-sub001/internal/infrastructure/observability"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	index   Pinger
	timeout time.Duration
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(index Pinger) *HealthHandler {
	return &HealthHandler{
		index:   index,
		timeout: 2 * time.Second,
	}
}

// Live handles GET /health
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.index.Ping(ctx); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("readiness check failed")
		respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

package handlers

import (
	"context"
	"net/http"
	"time"
)

// Source supplies the live service state exposed by the API.
type Source interface {
	// Inserted reports whether the selected logical unit has media.
	Inserted(ctx context.Context) bool

	// Status returns a point-in-time view of the service.
	Status(ctx context.Context) Status
}

// HealthHandler handles health check endpoints.
//
// Health endpoints are unauthenticated and provide:
//   - Liveness probe: is the process serving HTTP?
//   - Readiness probe: is media present on the selected unit?
type HealthHandler struct {
	source  Source
	timeout time.Duration
}

// NewHealthHandler creates a new health handler. A nil source makes the
// readiness probe report unhealthy.
func NewHealthHandler(source Source) *HealthHandler {
	return &HealthHandler{source: source, timeout: 5 * time.Second}
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "umsd",
	}))
}

// Readiness handles GET /health/ready.
//
// Returns 503 Service Unavailable while the selected unit has no media.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("service not initialized"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if !h.source.Inserted(ctx) {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("no media on selected unit"))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]bool{"inserted": true}))
}

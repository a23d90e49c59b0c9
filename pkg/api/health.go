package api

import (
	"net/http"
	"time"

	"github.com/cuemby/relay/pkg/metrics"
	"github.com/go-chi/chi/v5"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	ServiceID string    `json:"serviceId"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

func (s *Server) mountHealth(r chi.Router) {
	r.Get("/health", s.healthHandler)
	r.Get("/ready", metrics.ReadyHandler())
	r.Get("/live", metrics.LivenessHandler())
	r.Handle("/metrics", metrics.Handler())
}

// healthHandler implements the /health endpoint. It reports "ok" unless a
// registered dependency is failing its probe.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := metrics.GetHealth()

	response := HealthResponse{
		Status:    "ok",
		ServiceID: s.cfg.ServiceID,
		Timestamp: time.Now().UTC(),
		Version:   health.Version,
	}
	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		response.Status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, response)
}

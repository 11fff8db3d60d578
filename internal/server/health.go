package server

import (
	"net/http"
	"time"

	"github.com/designforge/mimicry/internal/version"
)

// HealthResponse is served at /health.
type HealthResponse struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Version    string    `json:"version"`
	Uptime     string    `json:"uptime"`
	Components int       `json:"components"`
	Active     string    `json:"activeComponent,omitempty"`
	Clients    int       `json:"clients"`
	Error      string    `json:"error,omitempty"`
}

// handleHealth reports whether the registry can be read.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	noCache(w)

	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.GetShortVersion(),
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
		Clients:   s.hub.Clients(),
	}

	status := http.StatusOK
	count, reg, err := s.componentCount(ctx)
	if err != nil {
		health.Status = "unhealthy"
		health.Error = err.Error()
		status = http.StatusServiceUnavailable
	} else {
		health.Components = count
		health.Active = reg.Active()
	}

	s.writeJSON(ctx, w, status, health)
}

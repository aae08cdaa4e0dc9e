package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aruna-bi/aruna/internal/domain/industry"
	"github.com/aruna-bi/aruna/internal/service"
)

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name     string
	Check    func(ctx context.Context) error
	Optional bool // failure degrades instead of failing the probe
}

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	Agent      *service.AgentService
	AgentLogs  *service.AuditLogger
	Dashboards *service.BusinessTools
	Modules    *industry.Registry
	Health     []HealthCheck
	Version    string
}

type healthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// HealthCheck reports "ok", "degraded" when an optional dependency is down,
// or 503 "unavailable" when a required one is.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{Status: "ok", Version: h.Version, Checks: make(map[string]string, len(h.Health))}
	status := http.StatusOK
	for _, c := range h.Health {
		if err := c.Check(ctx); err != nil {
			resp.Checks[c.Name] = err.Error()
			if c.Optional {
				if resp.Status == "ok" {
					resp.Status = "degraded"
				}
				continue
			}
			resp.Status = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name] = "ok"
	}
	writeJSON(w, status, resp)
}

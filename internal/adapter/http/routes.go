package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router. limit, if
// non-nil, wraps the chat endpoints only.
func MountRoutes(r chi.Router, h *Handlers, limit func(http.Handler) http.Handler) {
	chatRoute := func(r chi.Router) {
		if limit != nil {
			r = r.With(limit)
		}
		r.Post("/agent/chat", h.Chat)
	}

	r.Get("/health", h.HealthCheck)

	// Path used by the dashboard client.
	chatRoute(r)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"version": h.Version})
		})

		chatRoute(r)
		r.Get("/agent/tools", h.ListTools)

		r.Get("/industries", h.ListIndustries)
		r.Get("/industries/{type}", h.GetIndustry)

		r.Get("/businesses/{id}/agent-logs", h.ListAgentLogs)
		r.Get("/businesses/{id}/dashboard", h.GetDashboard)
	})
}

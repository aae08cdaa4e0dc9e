package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aruna-bi/aruna/internal/domain"
	"github.com/aruna-bi/aruna/internal/domain/business"
	"github.com/aruna-bi/aruna/internal/service"
)

// Chat handles POST /agent/chat.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[service.ChatRequest](w, r)
	if !ok {
		return
	}
	resp, err := h.Agent.Chat(r.Context(), req)
	if err != nil {
		writeChatError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListAgentLogs handles GET /api/v1/businesses/{id}/agent-logs?limit=N.
func (h *Handlers) ListAgentLogs(w http.ResponseWriter, r *http.Request) {
	if h.AgentLogs == nil {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "agent logging is disabled")
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	logs, err := h.AgentLogs.List(r.Context(), chi.URLParam(r, "id"), limit)
	if err != nil {
		writeDomainError(w, err, "business not found")
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// GetDashboard handles GET /api/v1/businesses/{id}/dashboard?period=&from=&to=.
func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	dash, err := h.Dashboards.DefaultDashboard(r.Context(), service.PeriodQuery{
		BusinessID: chi.URLParam(r, "id"),
		Period:     business.ParsePeriod(q.Get("period")),
		From:       q.Get("from"),
		To:         q.Get("to"),
	})
	if errors.Is(err, domain.ErrModuleNotFound) {
		writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, err.Error())
		return
	}
	if err != nil {
		writeDomainError(w, err, "business not found")
		return
	}
	writeJSON(w, http.StatusOK, dash)
}

// ListIndustries handles GET /api/v1/industries.
func (h *Handlers) ListIndustries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Modules.All())
}

// GetIndustry handles GET /api/v1/industries/{type}.
func (h *Handlers) GetIndustry(w http.ResponseWriter, r *http.Request) {
	m, ok := h.Modules.Get(chi.URLParam(r, "type"))
	if !ok {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "industry module not found")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// ListTools handles GET /api/v1/agent/tools.
func (h *Handlers) ListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, service.ToolRegistry())
}

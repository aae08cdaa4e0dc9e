package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/aruna-bi/aruna/internal/domain"
	"github.com/aruna-bi/aruna/internal/service"
)

const maxRequestBodySize = 1 << 20 // 1 MB

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, service.CodeInvalidRequest, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// chatErrorStatus maps an agent failure to its HTTP status.
func chatErrorStatus(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrModuleNotFound):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeChatError writes a structured agent error. Internal failures never
// expose more than the classified message.
func writeChatError(w http.ResponseWriter, err error) {
	var ce *service.ChatError
	if !errors.As(err, &ce) {
		slog.Error("unclassified agent error", "error", err)
		writeError(w, http.StatusInternalServerError, service.CodeInternal, "Internal server error")
		return
	}
	status := chatErrorStatus(ce)
	if status == http.StatusInternalServerError {
		slog.Error("agent request failed", "code", ce.Code, "error", ce.Err)
	}
	writeError(w, status, ce.Code, ce.Message)
}

// writeDomainError maps non-agent errors for the read-only endpoints.
func writeDomainError(w http.ResponseWriter, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", notFoundMsg)
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, service.CodeInvalidRequest, err.Error())
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, service.CodeInternal, "Internal server error")
	}
}

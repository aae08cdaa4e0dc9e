package mcp

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// apiKeyHeader is accepted alongside a bearer token for clients that cannot
// set Authorization.
const apiKeyHeader = "X-API-Key"

// AuthMiddleware guards the MCP endpoint with a shared API key. An empty key
// disables the check.
func AuthMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := presentedKey(r)
		if token == "" {
			writeAuthError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing API key")
			return
		}
		if subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			writeAuthError(w, http.StatusForbidden, "UNAUTHORIZED", "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func presentedKey(r *http.Request) string {
	if k := r.Header.Get(apiKeyHeader); k != "" {
		return k
	}
	auth := r.Header.Get("Authorization")
	if t, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return strings.TrimSpace(t)
	}
	return auth
}

func writeAuthError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + code + `","message":"` + msg + `"}`))
}

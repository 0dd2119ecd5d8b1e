package api

import (
	"encoding/json"
	"net/http"

	"github.com/clawinfra/clawguard/internal/security"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	// Headers are already sent, nothing useful to do on encode failure.
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// reviewerFromRequest names the caller for the audit trail. With auth
// disabled every caller is "api".
func reviewerFromRequest(r *http.Request) string {
	if claims, err := security.ClaimsFromRequest(r); err == nil && claims.Subject != "" {
		return claims.Subject
	}
	return "api"
}

package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/mwrenholt/gatherly-core/internal/access"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeConflict(w http.ResponseWriter, message string) {
	writeError(w, http.StatusConflict, ErrCodeConflict, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDenied maps an access denial to an HTTP response.
//
// Outsiders who lack any role get the same 404 as a genuinely missing
// event, so probing a private album reveals nothing. Expired anonymous
// sessions and dead share links get 401 so clients can prompt for login
// or a password; capability denials on events the caller can see get 403.
func writeDenied(w http.ResponseWriter, d *access.Decision) {
	switch {
	case d.Reason == access.ReasonEventNotFound, d.Reason == access.ReasonNoRole:
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "event not found")
	case d.Reason == access.ReasonSessionExpired:
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, d.Reason)
	case strings.HasPrefix(d.Reason, "token_invalid:"):
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, d.Reason)
	case strings.HasPrefix(d.Reason, "capability_denied:"):
		writeError(w, http.StatusForbidden, ErrCodeForbidden, d.Reason)
	default:
		writeError(w, http.StatusForbidden, ErrCodeForbidden, d.Reason)
	}
}

// Package httpapi implements the response envelope and request
// decode/validate helpers shared by the Authority's public surface and the
// Gateway's tenant surface (spec §6): {success, data?, error?{code,message,details?}}.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Envelope is the standard JSON response shape for every public/tenant route.
type Envelope struct {
	Success bool        `json:"success"`
	Data    any         `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail carries a stable machine-readable code alongside a message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OK writes a successful envelope with the given HTTP status and payload.
func OK(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{Success: true, Data: data})
}

// Fail writes a failure envelope with the given HTTP status, stable code,
// and human-readable message.
func Fail(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Envelope{Success: false, Error: &ErrorDetail{Code: code, Message: message}})
}

// FailWithDetails is like Fail but attaches structured details (e.g. field
// validation errors).
func FailWithDetails(w http.ResponseWriter, status int, code, message string, details any) {
	writeJSON(w, status, Envelope{Success: false, Error: &ErrorDetail{Code: code, Message: message, Details: details}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// Internal envelopes (HMAC-signed surfaces) use the simpler shape spec §6
// describes for those routes directly, e.g. {"ok":true} or {"data":{...}}.

// InternalOK writes {"data": payload} with the given status.
func InternalOK(w http.ResponseWriter, status int, payload any) {
	writeJSON(w, status, map[string]any{"data": payload})
}

// InternalAck writes {"ok": true}.
func InternalAck(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// InternalError writes a bare {"error": code} envelope for internal routes.
func InternalError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]any{"error": code})
}

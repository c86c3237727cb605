package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// Response is the envelope of every JSON API response.
//
// Status is one of "healthy", "unhealthy", "ok" or "error".
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Response status values.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusOK        = "ok"
	StatusError     = "error"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
	}
}

func newResponse(status string, data any, errMsg string) Response {
	return Response{Status: status, Timestamp: time.Now().UTC(), Data: data, Error: errMsg}
}

func healthyResponse(data any) Response { return newResponse(StatusHealthy, data, "") }

func unhealthyResponse(msg string) Response { return newResponse(StatusUnhealthy, nil, msg) }

func okResponse(data any) Response { return newResponse(StatusOK, data, "") }

// WriteError writes an error envelope with the given HTTP code.
func WriteError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, newResponse(StatusError, nil, msg))
}

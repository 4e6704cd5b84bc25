// Package handler provides HTTP request handlers.
package handler

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/linkping/linkping/internal/handler/dto"
)

// Handler serves the fallback routes.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeData writes data inside the success envelope.
func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, dto.APIResponse{
		Success:   true,
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

// writeError writes the error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, dto.ErrorResponse{
		Success:    false,
		Timestamp:  time.Now().UTC(),
		Error:      message,
		Code:       code,
		StatusCode: status,
	})
}

package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/linkping/linkping/internal/handler/dto"
)

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()

	var response dto.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return response
}

func TestHandler_NotFound(t *testing.T) {
	t.Parallel()

	h := New()

	req := httptest.NewRequest(http.MethodGet, "/nonexistent/path", nil)
	rec := httptest.NewRecorder()

	h.NotFound(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}

	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	response := decodeError(t, rec)
	if response.Success {
		t.Error("expected success=false")
	}
	if response.StatusCode != http.StatusNotFound {
		t.Errorf("expected status_code 404, got %d", response.StatusCode)
	}
	if response.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	h := New()

	req := httptest.NewRequest(http.MethodPost, "/healthz", nil)
	rec := httptest.NewRecorder()

	h.MethodNotAllowed(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}

	response := decodeError(t, rec)
	if response.Error != "method not allowed" {
		t.Errorf("unexpected error message: %s", response.Error)
	}
}

func TestWriteData_Envelope(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	writeData(rec, http.StatusCreated, map[string]string{"slug": "abc"})

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}

	var response struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.Success || response.Data["slug"] != "abc" {
		t.Errorf("unexpected response: %+v", response)
	}
}

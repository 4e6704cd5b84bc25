package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSecurity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		isDev       bool
		checkHeader string
		wantPresent bool
		wantValue   string
	}{
		{"nosniff", false, "X-Content-Type-Options", true, "nosniff"},
		{"frame options", false, "X-Frame-Options", true, "DENY"},
		{"referrer policy", false, "Referrer-Policy", true, "strict-origin-when-cross-origin"},
		{"csp", false, "Content-Security-Policy", true, "default-src 'none'; frame-ancestors 'none'"},
		{"no-store", false, "Cache-Control", true, "no-store"},
		{"hsts in production", false, "Strict-Transport-Security", true, "max-age=31536000; includeSubDomains"},
		{"no hsts in development", true, "Strict-Transport-Security", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := Security(SecurityConfig{IsDevelopment: tt.isDev})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/abc", nil))

			got := rec.Header().Get(tt.checkHeader)
			if !tt.wantPresent {
				if got != "" {
					t.Errorf("%s should not be set, got %q", tt.checkHeader, got)
				}
				return
			}
			if got != tt.wantValue {
				t.Errorf("%s = %q, want %q", tt.checkHeader, got, tt.wantValue)
			}
		})
	}
}

func TestMaxBodySize(t *testing.T) {
	t.Parallel()

	var readErr error
	handler := MaxBodySize(16)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("declared length too large", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/shorten", strings.NewReader(strings.Repeat("x", 32)))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("expected 413, got %d", rec.Code)
		}
	})

	t.Run("streamed body is capped", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/shorten", io.NopCloser(strings.NewReader(strings.Repeat("x", 32))))
		req.ContentLength = -1
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if readErr == nil {
			t.Error("expected read error past the limit")
		}
	})

	t.Run("small body passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/shorten", strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK || readErr != nil {
			t.Errorf("expected 200 without read error, got %d / %v", rec.Code, readErr)
		}
	})
}

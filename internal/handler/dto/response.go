// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/linkping/linkping/internal/model"
)

// APIResponse wraps a successful payload.
type APIResponse struct {
	Success   bool      `json:"success"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Success    bool      `json:"success"`
	Timestamp  time.Time `json:"timestamp"`
	Error      string    `json:"error"`
	Code       string    `json:"code"`
	StatusCode int       `json:"status_code"`
}

// ShortenRequest represents the request body for shortening a URL.
type ShortenRequest struct {
	TargetURL  string `json:"target_url"`
	CustomSlug string `json:"custom_slug,omitempty"`
	ExpiresIn  string `json:"expires_in,omitempty"`
}

// ShortenResponse represents a created link.
type ShortenResponse struct {
	Slug      string     `json:"slug"`
	ShortURL  string     `json:"short_url"`
	TargetURL string     `json:"target_url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// ToShortenResponse converts a Link model to ShortenResponse DTO.
func ToShortenResponse(link *model.Link, baseURL string) *ShortenResponse {
	return &ShortenResponse{
		Slug:      link.Slug,
		ShortURL:  baseURL + "/" + link.Slug,
		TargetURL: link.TargetURL,
		ExpiresAt: link.ExpiresAt,
		CreatedAt: link.CreatedAt,
	}
}

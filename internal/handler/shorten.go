package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/linkping/linkping/internal/apperror"
	"github.com/linkping/linkping/internal/handler/dto"
	"github.com/linkping/linkping/internal/model"
	"github.com/linkping/linkping/internal/service"
)

// maxShortenBody caps the shorten request body.
const maxShortenBody = 16 << 10

// LinkShortener creates short links.
type LinkShortener interface {
	Shorten(ctx context.Context, input service.ShortenInput) (*model.Link, error)
}

// ShortenHandler handles HTTP requests for link creation.
type ShortenHandler struct {
	svc     LinkShortener
	baseURL string
	logger  *slog.Logger
}

// NewShortenHandler creates a new ShortenHandler.
func NewShortenHandler(svc LinkShortener, baseURL string, logger *slog.Logger) *ShortenHandler {
	return &ShortenHandler{
		svc:     svc,
		baseURL: baseURL,
		logger:  logger.With("component", "handler.shorten"),
	}
}

// Shorten handles POST /api/v1/shorten.
func (h *ShortenHandler) Shorten(w http.ResponseWriter, r *http.Request) {
	var req dto.ShortenRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxShortenBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", "Invalid request body")
		return
	}

	link, err := h.svc.Shorten(r.Context(), service.ShortenInput{
		TargetURL:  req.TargetURL,
		CustomSlug: req.CustomSlug,
		ExpiresIn:  req.ExpiresIn,
	})
	if err != nil {
		h.handleServiceError(w, err)
		return
	}

	h.logger.Info("link_created",
		"slug", link.Slug,
		"has_custom_slug", req.CustomSlug != "",
		"expires", link.ExpiresAt != nil,
	)

	writeData(w, http.StatusCreated, dto.ToShortenResponse(link, h.baseURL))
}

// handleServiceError maps service errors to HTTP responses.
func (h *ShortenHandler) handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSlugExists):
		writeError(w, http.StatusConflict, "SLUG_TAKEN", "Slug already exists")
	case errors.Is(err, service.ErrURLTooLong):
		writeError(w, http.StatusBadRequest, "URL_TOO_LONG", "Target URL exceeds maximum length")
	case errors.Is(err, service.ErrInvalidTargetURL):
		writeError(w, http.StatusBadRequest, "INVALID_TARGET_URL", "Invalid target URL")
	case errors.Is(err, service.ErrInvalidSlug), errors.Is(err, service.ErrReservedSlug):
		writeError(w, http.StatusBadRequest, "INVALID_SLUG", "Invalid custom slug")
	case errors.Is(err, apperror.ErrValidation):
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	default:
		h.logger.Error("internal_error", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

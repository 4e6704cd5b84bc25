package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/linkping/linkping/internal/apperror"
	"github.com/linkping/linkping/internal/model"
)

// Analytics query parameters.
const (
	paramRefererQuantity           = "referer_quantity"
	paramUserAgentQuantity         = "user_agent_quantity"
	paramClickDistributionQuantity = "click_distribution_quantity"
	paramStartDate                 = "start_date"
	paramEndDate                   = "end_date"
)

// AnalyticsComputer builds an analytics report for a slug.
type AnalyticsComputer interface {
	Compute(ctx context.Context, slug string, req model.AnalyticsRequest) (*model.AnalyticsData, error)
}

// AnalyticsHandler handles analytics API requests.
type AnalyticsHandler struct {
	engine AnalyticsComputer
	logger *slog.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(engine AnalyticsComputer, logger *slog.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		engine: engine,
		logger: logger.With("component", "handler.analytics"),
	}
}

// GetAnalytics handles GET /api/v1/analytics/{slug}.
func (h *AnalyticsHandler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	req, err := parseAnalyticsRequest(r)
	if err != nil {
		h.writeComputeError(w, slug, err)
		return
	}

	data, err := h.engine.Compute(r.Context(), slug, req)
	if err != nil {
		h.writeComputeError(w, slug, err)
		return
	}

	writeData(w, http.StatusOK, data)
}

func (h *AnalyticsHandler) writeComputeError(w http.ResponseWriter, slug string, err error) {
	status := apperror.HTTPStatus(err)
	switch status {
	case http.StatusBadRequest:
		writeError(w, status, "VALIDATION_ERROR", err.Error())
	case http.StatusNotFound:
		writeError(w, status, "NOT_FOUND", err.Error())
	default:
		h.logger.Error("analytics_error", "slug", slug, "error", err)
		writeError(w, status, "INTERNAL_ERROR", "An internal error occurred")
	}
}

// parseAnalyticsRequest reads the optional filters from the query string.
// Quantities that are present but not integers are validation errors.
func parseAnalyticsRequest(r *http.Request) (model.AnalyticsRequest, error) {
	query := r.URL.Query()
	var req model.AnalyticsRequest

	quantities := []struct {
		name string
		dst  **int64
	}{
		{paramRefererQuantity, &req.RefererQuantity},
		{paramUserAgentQuantity, &req.UserAgentQuantity},
		{paramClickDistributionQuantity, &req.ClickDistributionQuantity},
	}
	for _, q := range quantities {
		raw := query.Get(q.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return model.AnalyticsRequest{}, fmt.Errorf("%w: %s must be an integer", apperror.ErrValidation, q.name)
		}
		*q.dst = &v
	}

	if v := query.Get(paramStartDate); v != "" {
		req.StartDate = &v
	}
	if v := query.Get(paramEndDate); v != "" {
		req.EndDate = &v
	}

	return req, nil
}

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/linkping/linkping/internal/metrics"
	"github.com/linkping/linkping/internal/model"
	"github.com/linkping/linkping/internal/service"
)

// LinkResolver looks up the link behind a slug.
type LinkResolver interface {
	Resolve(ctx context.Context, slug string) (*model.Link, bool, error)
}

// ClickPublisher appends click events to the click stream.
type ClickPublisher interface {
	Publish(ctx context.Context, event model.ClickEvent) (string, error)
}

// RedirectHandler handles redirect requests.
type RedirectHandler struct {
	links     LinkResolver
	publisher ClickPublisher
	logger    *slog.Logger
	metrics   metrics.Recorder
	now       func() time.Time
}

// NewRedirectHandler creates a new RedirectHandler. A nil publisher
// disables click capture.
func NewRedirectHandler(links LinkResolver, publisher ClickPublisher, logger *slog.Logger, recorder metrics.Recorder) *RedirectHandler {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &RedirectHandler{
		links:     links,
		publisher: publisher,
		logger:    logger.With("component", "handler.redirect"),
		metrics:   recorder,
		now:       time.Now,
	}
}

// Redirect handles GET /{slug}.
func (h *RedirectHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if slug == "" {
		h.metrics.IncRedirect("not_found")
		h.writeError(w, http.StatusNotFound, "LINK_NOT_FOUND", "Link not found")
		return
	}

	start := time.Now()
	link, cacheHit, err := h.links.Resolve(r.Context(), slug)
	duration := time.Since(start)

	if err != nil {
		h.handleRedirectError(w, slug, err, duration)
		return
	}

	h.publishClick(r, slug)
	h.metrics.IncRedirect("found")

	h.logger.Info("redirect_success",
		"slug", slug,
		"cache_hit", cacheHit,
		"duration_ms", float64(duration.Microseconds())/1000,
	)

	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("Cache-Control", "private, max-age=0")

	http.Redirect(w, r, link.TargetURL, http.StatusFound)
}

// publishClick records the click. Failures never block the redirect.
func (h *RedirectHandler) publishClick(r *http.Request, slug string) {
	if h.publisher == nil {
		return
	}

	event := model.NewClickEvent(slug,
		getClientIP(r),
		r.Header.Get("User-Agent"),
		r.Header.Get("Referer"),
		h.now(),
	)

	// The producer applies its own timeout; a client disconnect must not drop the click.
	if _, err := h.publisher.Publish(context.WithoutCancel(r.Context()), event); err != nil {
		h.logger.Warn("click_publish_failed",
			"slug", slug,
			"error", err,
		)
	}
}

func (h *RedirectHandler) handleRedirectError(w http.ResponseWriter, slug string, err error, duration time.Duration) {
	switch {
	case errors.Is(err, service.ErrLinkNotFound):
		h.metrics.IncRedirect("not_found")
		h.logger.Info("redirect_not_found",
			"slug", slug,
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		h.writeError(w, http.StatusNotFound, "LINK_NOT_FOUND", "Link not found")

	case errors.Is(err, service.ErrLinkExpired):
		h.metrics.IncRedirect("expired")
		h.logger.Info("redirect_expired",
			"slug", slug,
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		h.writeError(w, http.StatusGone, "LINK_EXPIRED", "Link has expired")

	default:
		h.metrics.IncRedirect("error")
		h.logger.Error("redirect_error",
			"slug", slug,
			"error", err,
			"duration_ms", float64(duration.Microseconds())/1000,
		)
		h.writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}

func (h *RedirectHandler) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=0")
	writeError(w, status, code, message)
}

// getClientIP extracts the client IP address from the request.
func getClientIP(r *http.Request) string {
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

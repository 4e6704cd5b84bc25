// Package service provides business logic for the application.
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/linkping/linkping/internal/apperror"
	"github.com/linkping/linkping/internal/cache"
	"github.com/linkping/linkping/internal/metrics"
	"github.com/linkping/linkping/internal/model"
	"github.com/linkping/linkping/internal/repository"
)

// Service errors.
var (
	ErrInvalidTargetURL = fmt.Errorf("%w: target_url must be an absolute http or https URL", apperror.ErrValidation)
	ErrURLTooLong       = fmt.Errorf("%w: target_url is too long", apperror.ErrValidation)
	ErrInvalidSlug      = fmt.Errorf("%w: custom_slug must be 3-50 letters, digits or hyphens", apperror.ErrValidation)
	ErrReservedSlug     = fmt.Errorf("%w: custom_slug is reserved", apperror.ErrValidation)
	ErrInvalidExpiry    = fmt.Errorf("%w: expires_in must be a positive duration like 30m, 6h or 1d", apperror.ErrValidation)
	ErrSlugExists       = errors.New("slug already exists")
	ErrLinkNotFound     = fmt.Errorf("link %w", apperror.ErrNotFound)
	ErrLinkExpired      = errors.New("link is expired")
)

// Custom slug format: 3-50 chars, alphanumeric + hyphen.
var slugRegex = regexp.MustCompile(`^[a-zA-Z0-9-]{3,50}$`)

// Slugs that collide with fixed routes.
var reservedSlugs = map[string]bool{
	"api":     true,
	"healthz": true,
	"readyz":  true,
	"metrics": true,
}

const (
	maxTargetURLLength = 2048
	slugLength         = 7
	slugAlphabet       = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	maxSlugRetries     = 3
)

// LinkStore persists links.
type LinkStore interface {
	CreateLink(ctx context.Context, link *model.Link) error
	GetLinkBySlug(ctx context.Context, slug string) (*model.Link, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
}

// LinkCache caches resolved links in front of the LinkStore.
type LinkCache interface {
	GetLink(ctx context.Context, slug string) (*model.Link, error)
	SetLink(ctx context.Context, link *model.Link, maxTTL time.Duration) error
	DeleteLink(ctx context.Context, slug string) error
	IsNegativelyCached(ctx context.Context, slug string) (bool, error)
	SetNegativeCache(ctx context.Context, slug string) error
}

// LinkService handles link business logic.
type LinkService struct {
	store    LinkStore
	cache    LinkCache
	cacheTTL time.Duration
	logger   *slog.Logger
	metrics  metrics.Recorder
	now      func() time.Time
}

// NewLinkService creates a new LinkService. A nil cache sends every
// lookup to the store.
func NewLinkService(store LinkStore, linkCache LinkCache, cacheTTL time.Duration, logger *slog.Logger, recorder metrics.Recorder) *LinkService {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &LinkService{
		store:    store,
		cache:    linkCache,
		cacheTTL: cacheTTL,
		logger:   logger.With("component", "service.link"),
		metrics:  recorder,
		now:      time.Now,
	}
}

// ShortenInput defines input for creating a link.
type ShortenInput struct {
	TargetURL  string
	CustomSlug string
	ExpiresIn  string
}

// Shorten creates a new short link and returns it.
func (s *LinkService) Shorten(ctx context.Context, input ShortenInput) (*model.Link, error) {
	if err := validateTargetURL(input.TargetURL); err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if input.ExpiresIn != "" {
		d, err := parseExpiresIn(input.ExpiresIn)
		if err != nil {
			return nil, err
		}
		at := s.now().UTC().Add(d)
		expiresAt = &at
	}

	slug := input.CustomSlug
	if slug != "" {
		if !slugRegex.MatchString(slug) {
			return nil, ErrInvalidSlug
		}
		if reservedSlugs[strings.ToLower(slug)] {
			return nil, ErrReservedSlug
		}
	} else {
		var err error
		slug, err = s.generateUniqueSlug(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to generate slug: %w", err)
		}
	}

	link := &model.Link{
		Slug:      slug,
		TargetURL: input.TargetURL,
		ExpiresAt: expiresAt,
	}
	if err := s.store.CreateLink(ctx, link); err != nil {
		if errors.Is(err, repository.ErrSlugExists) {
			return nil, ErrSlugExists
		}
		return nil, err
	}

	// A previous miss may still be negatively cached.
	if s.cache != nil {
		if err := s.cache.DeleteLink(ctx, slug); err != nil {
			s.logger.Warn("cache invalidation failed", "slug", slug, "error", err)
		}
	}

	return link, nil
}

// Resolve returns the link for slug and whether it came from cache.
// This is the redirect hot path: cache first, then the store.
func (s *LinkService) Resolve(ctx context.Context, slug string) (*model.Link, bool, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveRedirectDuration(time.Since(start))
	}()

	if s.cache != nil {
		cached, err := s.cache.GetLink(ctx, slug)
		switch {
		case err == nil:
			s.metrics.IncRedirectCacheHit()
			return s.checkExpiry(ctx, cached, true)
		case errors.Is(err, cache.ErrCacheMiss):
			s.metrics.IncRedirectCacheMiss()
			if negative, _ := s.cache.IsNegativelyCached(ctx, slug); negative {
				return nil, false, ErrLinkNotFound
			}
		default:
			s.logger.Warn("link cache unavailable, falling back to store", "slug", slug, "error", err)
		}
	}

	link, err := s.store.GetLinkBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrLinkNotFound) {
			if s.cache != nil {
				_ = s.cache.SetNegativeCache(ctx, slug)
			}
			return nil, false, ErrLinkNotFound
		}
		return nil, false, err
	}

	if s.cache != nil {
		if err := s.cache.SetLink(ctx, link, s.cacheTTL); err != nil {
			s.logger.Warn("cache backfill failed", "slug", slug, "error", err)
		}
	}

	return s.checkExpiry(ctx, link, false)
}

func (s *LinkService) checkExpiry(ctx context.Context, link *model.Link, cacheHit bool) (*model.Link, bool, error) {
	if link.IsExpired(s.now()) {
		if s.cache != nil {
			_ = s.cache.DeleteLink(ctx, link.Slug)
		}
		return nil, cacheHit, ErrLinkExpired
	}
	return link, cacheHit, nil
}

// validateTargetURL validates a target URL.
func validateTargetURL(target string) error {
	if target == "" {
		return ErrInvalidTargetURL
	}
	if len(target) > maxTargetURLLength {
		return ErrURLTooLong
	}

	parsed, err := url.Parse(target)
	if err != nil {
		return ErrInvalidTargetURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return ErrInvalidTargetURL
	}
	if parsed.Host == "" {
		return ErrInvalidTargetURL
	}

	return nil
}

// parseExpiresIn accepts Go durations plus a whole-day form such as "7d".
func parseExpiresIn(value string) (time.Duration, error) {
	var d time.Duration
	if days, ok := strings.CutSuffix(value, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, ErrInvalidExpiry
		}
		d = time.Duration(n) * 24 * time.Hour
	} else {
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return 0, ErrInvalidExpiry
		}
		d = parsed
	}
	if d <= 0 {
		return 0, ErrInvalidExpiry
	}
	return d, nil
}

// generateUniqueSlug generates a unique slug with collision retry.
func (s *LinkService) generateUniqueSlug(ctx context.Context) (string, error) {
	for i := 0; i < maxSlugRetries; i++ {
		slug, err := generateRandomSlug()
		if err != nil {
			return "", err
		}
		exists, err := s.store.SlugExists(ctx, slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
	}
	return "", errors.New("failed to generate unique slug after retries")
}

// generateRandomSlug generates a random slug using crypto/rand.
func generateRandomSlug() (string, error) {
	b := make([]byte, slugLength)
	limit := big.NewInt(int64(len(slugAlphabet)))
	for i := range b {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b[i] = slugAlphabet[n.Int64()]
	}
	return string(b), nil
}

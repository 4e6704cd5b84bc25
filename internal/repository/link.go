package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/linkping/linkping/internal/apperror"
	"github.com/linkping/linkping/internal/model"
)

// Common errors for link repository operations.
var (
	ErrLinkNotFound = fmt.Errorf("link %w", apperror.ErrNotFound)
	ErrSlugExists   = errors.New("slug already exists")
)

// CreateLink inserts a new link and fills in its creation time.
func (r *Repository) CreateLink(ctx context.Context, link *model.Link) error {
	query := `
		INSERT INTO links (slug, target_url, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`

	err := r.pool.QueryRow(ctx, query, link.Slug, link.TargetURL, link.ExpiresAt).Scan(&link.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlugExists
		}
		return fmt.Errorf("%w: create link: %w", apperror.ErrTransport, err)
	}

	return nil
}

// GetLinkBySlug retrieves a link by its slug. Expired links are returned;
// callers decide what expiry means.
func (r *Repository) GetLinkBySlug(ctx context.Context, slug string) (*model.Link, error) {
	query := `
		SELECT slug, target_url, expires_at, created_at
		FROM links
		WHERE slug = $1
	`

	var link model.Link
	err := r.pool.QueryRow(ctx, query, slug).Scan(
		&link.Slug,
		&link.TargetURL,
		&link.ExpiresAt,
		&link.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("%w: get link by slug: %w", apperror.ErrTransport, err)
	}

	return &link, nil
}

// SlugExists checks whether a slug is taken.
func (r *Repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM links WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: check slug: %w", apperror.ErrTransport, err)
	}
	return exists, nil
}

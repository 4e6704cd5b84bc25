package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/linkping/linkping/internal/apperror"
	"github.com/linkping/linkping/internal/model"
	"github.com/linkping/linkping/internal/retry"
)

const insertClickSQL = `
	INSERT INTO clicks (slug, ip, user_agent, referer, "timestamp")
	VALUES ($1, $2, $3, $4, $5)
`

// ClickRepository provides database access for click events.
type ClickRepository struct {
	repo *Repository
}

// NewClickRepository creates a new ClickRepository.
func NewClickRepository(repo *Repository) *ClickRepository {
	return &ClickRepository{repo: repo}
}

// InsertClick stores one click row. Errors the database will keep
// returning for the same row are marked permanent for the retry policy.
func (r *ClickRepository) InsertClick(ctx context.Context, event *model.ClickEvent) error {
	at, err := event.Time()
	if err != nil {
		return retry.Permanent(fmt.Errorf("%w: %w", apperror.ErrDecode, err))
	}

	var referer *string
	if event.Referer != nil && *event.Referer != "" {
		referer = event.Referer
	}

	_, err = r.repo.pool.Exec(ctx, insertClickSQL, event.Slug, event.IP, event.UserAgent, referer, at)
	if err != nil {
		err = fmt.Errorf("%w: insert click %s: %w", apperror.ErrTransport, event.Slug, err)
		if isPermanentPgError(err) {
			return retry.Permanent(err)
		}
		return err
	}
	return nil
}

// isPermanentPgError reports data exceptions (class 22) and integrity
// constraint violations (class 23).
func isPermanentPgError(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || len(pgErr.Code) < 2 {
		return false
	}
	class := pgErr.Code[:2]
	return class == "22" || class == "23"
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

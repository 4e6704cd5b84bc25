package analytics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/linkping/linkping/internal/apperror"
	"github.com/linkping/linkping/internal/metrics"
	"github.com/linkping/linkping/internal/model"
	"github.com/linkping/linkping/internal/repository"
)

const (
	totalClicksSQL  = `SELECT COUNT(*) FROM clicks WHERE %s`
	uniqueClicksSQL = `SELECT COUNT(DISTINCT ip) FROM clicks WHERE %s`

	topReferrersSQL = `
		SELECT COALESCE(NULLIF(referer, ''), 'Unknown') AS referer, COUNT(*) AS count
		FROM clicks
		WHERE %s
		GROUP BY 1
		ORDER BY 2 DESC, 1 ASC
		LIMIT %s`

	topUserAgentsSQL = `
		SELECT COALESCE(NULLIF(user_agent, ''), 'Unknown') AS user_agent, COUNT(*) AS count
		FROM clicks
		WHERE %s
		GROUP BY 1
		ORDER BY 2 DESC, 1 ASC
		LIMIT %s`

	clickDistributionSQL = `
		SELECT to_char("timestamp" AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS date, COUNT(*) AS count
		FROM clicks
		WHERE %s
		GROUP BY 1
		ORDER BY 1 ASC
		LIMIT %s`
)

// Snapshotter runs a function against a consistent read-only view of the
// click store.
type Snapshotter interface {
	ReadSnapshot(ctx context.Context, fn func(q repository.Querier) error) error
}

// Engine builds analytics reports. It holds no state between requests.
type Engine struct {
	store   Snapshotter
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewEngine creates an Engine reading from store.
func NewEngine(store Snapshotter, logger *slog.Logger, recorder metrics.Recorder) *Engine {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Engine{
		store:   store,
		logger:  logger.With("component", "analytics.engine"),
		metrics: recorder,
	}
}

// Compute returns the report for slug filtered by req.
//
// Errors:
//   - apperror.ErrValidation when req is invalid; no query runs.
//   - apperror.ErrNotFound when no click matches the filter.
//   - apperror.ErrTransport when the store fails.
func (e *Engine) Compute(ctx context.Context, slug string, req model.AnalyticsRequest) (*model.AnalyticsData, error) {
	start := time.Now()
	data, err := e.compute(ctx, slug, req)
	e.metrics.ObserveAnalyticsDuration(time.Since(start))

	status := "success"
	if err != nil {
		status = apperror.Kind(err)
	}
	e.metrics.IncAnalyticsRequest(status)

	if err != nil && apperror.HTTPStatus(err) >= 500 {
		e.logger.Error("analytics query failed", "slug", slug, "error", err)
	}
	return data, err
}

func (e *Engine) compute(ctx context.Context, slug string, req model.AnalyticsRequest) (*model.AnalyticsData, error) {
	if slug == "" {
		return nil, fmt.Errorf("%w: slug is required", apperror.ErrValidation)
	}
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	filter := NewFilter(slug, req)
	data := &model.AnalyticsData{
		DateRange: dateRange(req),
	}

	err := e.store.ReadSnapshot(ctx, func(q repository.Querier) error {
		total, err := countQuery(ctx, q, "total clicks", totalClicksSQL, filter)
		if err != nil {
			return err
		}
		if total == 0 {
			return fmt.Errorf("%w: no analytics found for slug %q", apperror.ErrNotFound, slug)
		}
		data.TotalClicks = total

		if data.UniqueClicks, err = countQuery(ctx, q, "unique clicks", uniqueClicksSQL, filter); err != nil {
			return err
		}

		referrers, err := groupedQuery(ctx, q, "top referrers", topReferrersSQL, filter, req.RefererLimit())
		if err != nil {
			return err
		}
		data.TopReferrers = make([]model.ReferrerData, 0, len(referrers))
		for _, r := range referrers {
			data.TopReferrers = append(data.TopReferrers, model.ReferrerData{Referer: r.key, Count: r.count})
		}

		agents, err := groupedQuery(ctx, q, "top user agents", topUserAgentsSQL, filter, req.UserAgentLimit())
		if err != nil {
			return err
		}
		data.TopUserAgents = make([]model.UserAgentData, 0, len(agents))
		for _, a := range agents {
			data.TopUserAgents = append(data.TopUserAgents, model.UserAgentData{UserAgent: a.key, Count: a.count})
		}

		days, err := groupedQuery(ctx, q, "click distribution", clickDistributionSQL, filter, req.ClickDistributionLimit())
		if err != nil {
			return err
		}
		data.ClickDistribution = make([]model.ClickDistributionData, 0, len(days))
		for _, d := range days {
			data.ClickDistribution = append(data.ClickDistribution, model.ClickDistributionData{Date: d.key, Count: d.count})
		}

		return nil
	})
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) && !errors.Is(err, apperror.ErrTransport) {
			err = fmt.Errorf("%w: analytics snapshot: %w", apperror.ErrTransport, err)
		}
		return nil, err
	}

	return data, nil
}

// dateRange echoes the window when both bounds are set. Dates are already
// validated, so parse errors cannot occur here.
func dateRange(req model.AnalyticsRequest) *model.DateRange {
	if req.StartDate == nil || req.EndDate == nil {
		return nil
	}
	start, _ := time.Parse(model.DateLayout, *req.StartDate)
	end, _ := time.Parse(model.DateLayout, *req.EndDate)
	return &model.DateRange{
		Start: *req.StartDate,
		End:   *req.EndDate,
		Days:  int64(end.Sub(start)/(24*time.Hour)) + 1,
	}
}

type keyedCount struct {
	key   string
	count int64
}

func countQuery(ctx context.Context, q repository.Querier, name, query string, filter *Filter) (int64, error) {
	var n int64
	if err := q.QueryRow(ctx, fmt.Sprintf(query, filter.Where()), filter.Args()...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %s: %w", apperror.ErrTransport, name, err)
	}
	return n, nil
}

func groupedQuery(ctx context.Context, q repository.Querier, name, query string, filter *Filter, limit int64) ([]keyedCount, error) {
	limitParam, args := filter.WithTrailing(limit)

	rows, err := q.Query(ctx, fmt.Sprintf(query, filter.Where(), limitParam), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", apperror.ErrTransport, name, err)
	}
	defer rows.Close()

	var out []keyedCount
	for rows.Next() {
		var kc keyedCount
		if err := rows.Scan(&kc.key, &kc.count); err != nil {
			return nil, fmt.Errorf("%w: scan %s: %w", apperror.ErrTransport, name, err)
		}
		out = append(out, kc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate %s: %w", apperror.ErrTransport, name, err)
	}
	return out, nil
}

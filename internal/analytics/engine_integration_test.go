//go:build integration

package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/linkping/linkping/internal/apperror"
	"github.com/linkping/linkping/internal/model"
	"github.com/linkping/linkping/internal/repository"
	"github.com/linkping/linkping/internal/testutil"
)

func TestIntegrationEngine_DateFilterAndOrdering(t *testing.T) {
	ctx, repo, engine := newEngineTestEnv(t)
	clicks := repository.NewClickRepository(repo)

	// One click per day 2024-01-01..05, plus extra traffic on the 3rd.
	for day := 1; day <= 5; day++ {
		at := time.Date(2024, 1, day, 12, 0, 0, 0, time.UTC)
		insert(t, ctx, clicks, testutil.NewTestClick(t, "abc", "10.0.0.1", "curl/8.0", "", at))
	}
	third := time.Date(2024, 1, 3, 23, 59, 0, 0, time.UTC)
	insert(t, ctx, clicks, testutil.NewTestClick(t, "abc", "10.0.0.2", "Mozilla/5.0", "https://news.example/", third))
	insert(t, ctx, clicks, testutil.NewTestClick(t, "abc", "10.0.0.3", "Mozilla/5.0", "https://news.example/", third))
	insert(t, ctx, clicks, testutil.NewTestClick(t, "other", "10.0.0.9", "curl/8.0", "", third))

	data, err := engine.Compute(ctx, "abc", model.AnalyticsRequest{
		StartDate: strPtr("2024-01-02"),
		EndDate:   strPtr("2024-01-04"),
	})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if data.TotalClicks != 5 {
		t.Errorf("TotalClicks = %d, want 5", data.TotalClicks)
	}
	if data.UniqueClicks != 3 {
		t.Errorf("UniqueClicks = %d, want 3", data.UniqueClicks)
	}
	if data.DateRange == nil || data.DateRange.Days != 3 {
		t.Errorf("DateRange = %+v, want 3 days", data.DateRange)
	}

	wantReferrers := []model.ReferrerData{{Referer: "Unknown", Count: 3}, {Referer: "https://news.example/", Count: 2}}
	if len(data.TopReferrers) != 2 || data.TopReferrers[0] != wantReferrers[0] || data.TopReferrers[1] != wantReferrers[1] {
		t.Errorf("TopReferrers = %+v, want %+v", data.TopReferrers, wantReferrers)
	}
	for i := 1; i < len(data.TopUserAgents); i++ {
		if data.TopUserAgents[i].Count > data.TopUserAgents[i-1].Count {
			t.Errorf("TopUserAgents not sorted descending: %+v", data.TopUserAgents)
		}
	}

	wantDays := []model.ClickDistributionData{
		{Date: "2024-01-02", Count: 1},
		{Date: "2024-01-03", Count: 3},
		{Date: "2024-01-04", Count: 1},
	}
	if len(data.ClickDistribution) != len(wantDays) {
		t.Fatalf("ClickDistribution = %+v", data.ClickDistribution)
	}
	for i := range wantDays {
		if data.ClickDistribution[i] != wantDays[i] {
			t.Errorf("ClickDistribution[%d] = %+v, want %+v", i, data.ClickDistribution[i], wantDays[i])
		}
	}
}

func TestIntegrationEngine_DistributionKeepsEarliestDates(t *testing.T) {
	ctx, repo, engine := newEngineTestEnv(t)
	clicks := repository.NewClickRepository(repo)

	for day := 1; day <= 5; day++ {
		at := time.Date(2024, 1, day, 8, 0, 0, 0, time.UTC)
		insert(t, ctx, clicks, testutil.NewTestClick(t, "abc", "10.0.0.1", "curl/8.0", "", at))
	}

	data, err := engine.Compute(ctx, "abc", model.AnalyticsRequest{ClickDistributionQuantity: intPtr(2)})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}

	if len(data.ClickDistribution) != 2 ||
		data.ClickDistribution[0].Date != "2024-01-01" ||
		data.ClickDistribution[1].Date != "2024-01-02" {
		t.Errorf("ClickDistribution = %+v, want the 2 earliest dates", data.ClickDistribution)
	}
	if data.TotalClicks != 5 {
		t.Errorf("TotalClicks = %d, want 5", data.TotalClicks)
	}
}

func TestIntegrationEngine_NotFound(t *testing.T) {
	ctx, _, engine := newEngineTestEnv(t)

	_, err := engine.Compute(ctx, "missing", model.AnalyticsRequest{})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func insert(t *testing.T, ctx context.Context, clicks *repository.ClickRepository, event *model.ClickEvent) {
	t.Helper()
	if err := clicks.InsertClick(ctx, event); err != nil {
		t.Fatalf("InsertClick failed: %v", err)
	}
}

func newEngineTestEnv(t *testing.T) (context.Context, *repository.Repository, *Engine) {
	t.Helper()

	ctx := context.Background()
	dbURL := testutil.RequireEnv(t, "DATABASE_URL")

	repo, err := repository.New(ctx, dbURL, repository.PoolConfig{})
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}
	t.Cleanup(repo.Close)

	unlock, err := testutil.AcquireDBLock(ctx, repo.Pool())
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() {
		_ = unlock()
	})

	if err := testutil.ResetClicksSchema(ctx, repo.Pool()); err != nil {
		t.Fatalf("reset clicks schema: %v", err)
	}

	return ctx, repo, newTestEngine(repo, nil)
}

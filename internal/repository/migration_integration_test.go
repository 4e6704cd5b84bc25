//go:build integration

package repository

import (
	"context"
	"database/sql"
	"testing"

	"github.com/lib/pq"

	"github.com/linkping/linkping/internal/testutil"
)

// ============================================================================
// Migration Integration Tests
// ============================================================================

func TestIntegrationMigration_TableColumns(t *testing.T) {
	ctx, _ := newRepositoryTestEnv(t)
	db := openSchemaDB(t)

	tests := []struct {
		table   string
		columns []string
	}{
		{"links", []string{"id", "slug", "target_url", "expires_at", "created_at"}},
		{"clicks", []string{"id", "slug", "ip", "user_agent", "referer", "timestamp"}},
	}

	for _, tt := range tests {
		t.Run(tt.table, func(t *testing.T) {
			got, err := tableColumns(ctx, db, tt.table)
			if err != nil {
				t.Fatalf("tableColumns failed: %v", err)
			}
			have := make(map[string]bool, len(got))
			for _, c := range got {
				have[c] = true
			}
			for _, c := range tt.columns {
				if !have[c] {
					t.Errorf("column %q missing from %s (have %v)", c, tt.table, got)
				}
			}
		})
	}
}

func TestIntegrationMigration_RollbackClicks(t *testing.T) {
	ctx, repo := newRepositoryTestEnv(t)
	db := openSchemaDB(t)

	if err := testutil.ApplyMigration(ctx, repo.Pool(), "000002_clicks", "down"); err != nil {
		t.Fatalf("apply down: %v", err)
	}

	cols, err := tableColumns(ctx, db, "clicks")
	if err != nil {
		t.Fatalf("tableColumns failed: %v", err)
	}
	if len(cols) != 0 {
		t.Errorf("clicks table should not exist after rollback, got columns %v", cols)
	}

	if err := testutil.ApplyMigration(ctx, repo.Pool(), "000002_clicks", "up"); err != nil {
		t.Fatalf("reapply up: %v", err)
	}
}

func TestIntegrationMigration_Idempotency(t *testing.T) {
	ctx, repo := newRepositoryTestEnv(t)

	for _, name := range []string{"000001_links", "000002_clicks"} {
		if err := testutil.ApplyMigration(ctx, repo.Pool(), name, "up"); err != nil {
			t.Fatalf("second apply of %s should not fail: %v", name, err)
		}
	}
}

// ============================================================================
// Helper Functions
// ============================================================================

func openSchemaDB(t *testing.T) *sql.DB {
	t.Helper()

	connector, err := pq.NewConnector(testutil.RequireEnv(t, "DATABASE_URL"))
	if err != nil {
		t.Fatalf("pq connector: %v", err)
	}
	db := sql.OpenDB(connector)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableColumns(ctx context.Context, db *sql.DB, table string) ([]string, error) {
	var columns []string
	err := db.QueryRowContext(ctx, `
		SELECT COALESCE(array_agg(column_name::text ORDER BY ordinal_position), '{}')
		FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
	`, table).Scan(pq.Array(&columns))
	return columns, err
}

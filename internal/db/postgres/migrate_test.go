package postgres_test

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/astrocat/internal/db/postgres"
	"github.com/kailas-cloud/astrocat/internal/testhelpers"
)

func TestRunMigrations_Idempotent(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)

	// second run finds nothing to apply
	if err := postgres.RunMigrations(tdb.DB, zap.NewNop()); err != nil {
		t.Fatalf("re-running migrations: %v", err)
	}

	for _, table := range []string{
		"workflow_versions", "workflow_dependencies", "workflow_history",
		"observations", "detections", "crossmatches",
	} {
		var exists bool
		err := tdb.DB.QueryRow(context.Background(),
			`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		if err != nil {
			t.Fatalf("query %s: %v", table, err)
		}
		if !exists {
			t.Errorf("table %s missing", table)
		}
	}
}

func TestSchema_SingleActiveProduction(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	tdb.Truncate(t, "workflow_versions")
	ctx := context.Background()

	insert := `INSERT INTO workflow_versions (name, version, processing_type, is_active, traffic_split, created_at)
	           VALUES ($1, $2, 'prod', TRUE, 100, now())`
	if _, err := tdb.DB.Exec(ctx, insert, "wf", "v1"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := tdb.DB.Exec(ctx, insert, "wf", "v2")
	if err == nil {
		t.Fatal("second active production version must violate the partial unique index")
	}

	_, err = tdb.DB.Exec(ctx, `INSERT INTO workflow_versions (name, version, processing_type, traffic_split, created_at)
	                           VALUES ('wf', 'v3', 'exp', 50, now())`)
	if err == nil {
		t.Fatal("traffic split 50 must violate the check constraint")
	}
}

package postgres

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"

	"github.com/xraph/keeper/store"
	"github.com/xraph/keeper/store/storetest"
)

// startPostgres runs PostgreSQL in a container and returns its DSN. It is
// skipped unless TEST_INTEGRATION is set.
func startPostgres(t *testing.T) string {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("keeper_test"),
		postgres.WithUsername("keeper"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	return dsn
}

// setupTestDB connects a raw pool and applies the Keeper schema.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, startPostgres(t))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	for _, ddl := range []string{createGrantsTable, createSubscriptionsTable, createSyncLogsTable} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return pool
}

// TestStoreConformance runs the shared store suite through grove. Every
// case starts from truncated tables.
func TestStoreConformance(t *testing.T) {
	dsn := startPostgres(t)
	ctx := context.Background()

	pgdb := pgdriver.New()
	if err := pgdb.Open(ctx, dsn); err != nil {
		t.Fatalf("open pgdriver: %v", err)
	}
	db, err := grove.Open(pgdb)
	if err != nil {
		t.Fatalf("open grove: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	storetest.Run(t, func(t *testing.T) store.Store {
		if _, err := pool.Exec(ctx, `TRUNCATE keeper_grants, keeper_subscriptions, keeper_sync_logs`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return s
	})
}

const insertGrant = `
INSERT INTO keeper_grants (id, tenant_id, principal_id, role, granted_by, granted_at)
VALUES ($1, 't1', 'u1', 'moderator', 'root', NOW())
ON CONFLICT ` + grantConflict

const applySubscription = `
INSERT INTO keeper_subscriptions (tenant_id, principal_id, tier, status, event_at, source, updated_at)
VALUES ('t1', 'u1', $1, 'active', $2, 'billing', NOW())
ON CONFLICT ` + subscriptionApplyConflict

const forceSubscription = `
INSERT INTO keeper_subscriptions (tenant_id, principal_id, tier, status, event_at, source, updated_at)
VALUES ('t1', 'u1', $1, 'active', $2, 'override', NOW())
ON CONFLICT ` + subscriptionForceConflict

// TestGrantConflictKeepsOneUnrevoked checks that concurrent inserts for the
// same pair leave exactly one unrevoked grant.
func TestGrantConflictKeepsOneUnrevoked(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := pool.Exec(ctx, insertGrant, "grant_"+string(rune('a'+i))); err != nil {
				t.Errorf("insert grant: %v", err)
			}
		}(i)
	}
	wg.Wait()

	var n int
	err := pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM keeper_grants WHERE principal_id = 'u1' AND revoked_at IS NULL`).Scan(&n)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 unrevoked grant, got %d", n)
	}

	// After revocation a new grant is accepted.
	if _, err := pool.Exec(ctx, `UPDATE keeper_grants SET revoked_at = NOW() WHERE revoked_at IS NULL`); err != nil {
		t.Fatal(err)
	}
	tag, err := pool.Exec(ctx, insertGrant, "grant_new")
	if err != nil {
		t.Fatal(err)
	}
	if tag.RowsAffected() != 1 {
		t.Fatalf("expected new grant after revoke, got %d rows", tag.RowsAffected())
	}
}

// TestSubscriptionApplyOrdering checks the conditional upsert: newer or
// equal event times apply, older ones affect zero rows.
func TestSubscriptionApplyOrdering(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	t10 := time.Unix(10, 0).UTC()
	t5 := time.Unix(5, 0).UTC()

	tag, err := pool.Exec(ctx, applySubscription, "premium", t10)
	if err != nil {
		t.Fatal(err)
	}
	if tag.RowsAffected() != 1 {
		t.Fatalf("expected first apply to write, got %d", tag.RowsAffected())
	}

	tag, err = pool.Exec(ctx, applySubscription, "basic", t5)
	if err != nil {
		t.Fatal(err)
	}
	if tag.RowsAffected() != 0 {
		t.Fatalf("expected stale apply to be skipped, got %d", tag.RowsAffected())
	}

	tag, err = pool.Exec(ctx, applySubscription, "premium", t10)
	if err != nil {
		t.Fatal(err)
	}
	if tag.RowsAffected() != 1 {
		t.Fatalf("expected equal timestamp to apply, got %d", tag.RowsAffected())
	}

	var tier string
	if err := pool.QueryRow(ctx, `SELECT tier FROM keeper_subscriptions WHERE principal_id = 'u1'`).Scan(&tier); err != nil {
		t.Fatal(err)
	}
	if tier != "premium" {
		t.Fatalf("expected premium, got %s", tier)
	}

	// Force ignores ordering.
	if _, err := pool.Exec(ctx, forceSubscription, "basic", t5); err != nil {
		t.Fatal(err)
	}
	if err := pool.QueryRow(ctx, `SELECT tier FROM keeper_subscriptions WHERE principal_id = 'u1'`).Scan(&tier); err != nil {
		t.Fatal(err)
	}
	if tier != "basic" {
		t.Fatalf("expected forced basic, got %s", tier)
	}
}

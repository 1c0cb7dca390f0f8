package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"

	"github.com/xraph/keeper/store"
	"github.com/xraph/keeper/store/storetest"
)

// newTestStore opens a migrated SQLite file under the test's temp dir. A
// single connection keeps concurrent writers from tripping SQLITE_BUSY.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	sdb := sqlitedriver.New()
	dsn := "file:" + filepath.Join(t.TempDir(), "keeper.db")
	if err := sdb.Open(ctx, dsn, driver.WithPoolSize(1)); err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db, err := grove.Open(sdb)
	if err != nil {
		t.Fatalf("open grove: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return newTestStore(t)
	})
}

func TestMigrateIsRepeatable(t *testing.T) {
	s := newTestStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
}

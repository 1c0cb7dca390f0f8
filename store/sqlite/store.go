// Package sqlite provides a SQLite implementation of the Keeper
// composite store using grove ORM with Go-based migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/store"
	"github.com/xraph/keeper/subscription"
	"github.com/xraph/keeper/synclog"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a SQLite implementation of the composite Keeper store.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// Migrate runs programmatic migrations via the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("keeper/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("keeper/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping verifies the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ──────────────────────────────────────────────────
// Grant operations
// ──────────────────────────────────────────────────

func (s *Store) PutGrant(ctx context.Context, g *grant.Grant) (*grant.Grant, bool, error) {
	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("keeper/sqlite: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback on error is intentional

	// Stamp lapsed grants so the partial unique index only sees live rows.
	_, err = tx.NewUpdate((*grantModel)(nil)).
		Set("revoked_at = expires_at").
		Set("revoked_by = ?", grant.SystemActor).
		Set("revoke_reason = ?", grant.ReasonExpired).
		Where("tenant_id = ?", g.TenantID).
		Where("principal_id = ?", g.PrincipalID).
		Where("role = ?", string(g.Role)).
		Where("revoked_at IS NULL").
		Where("expires_at IS NOT NULL").
		Where("expires_at <= ?", g.GrantedAt.UTC()).
		Exec(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("keeper/sqlite: stamp lapsed grants: %w", err)
	}

	res, err := tx.NewInsert(grantToModel(g)).
		OnConflict(grantConflict).
		Exec(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("keeper/sqlite: put grant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("keeper/sqlite: put grant rows: %w", err)
	}

	stored, created := g, true
	if n == 0 {
		m := new(grantModel)
		err = tx.NewSelect(m).
			Where("tenant_id = ?", g.TenantID).
			Where("principal_id = ?", g.PrincipalID).
			Where("role = ?", string(g.Role)).
			Where("revoked_at IS NULL").
			Scan(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("keeper/sqlite: get existing grant: %w", err)
		}
		stored, created = grantFromModel(m), false
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("keeper/sqlite: commit tx: %w", err)
	}
	return stored, created, nil
}

func (s *Store) ListGrantsByPrincipal(ctx context.Context, tenantID, principalID string) ([]*grant.Grant, error) {
	var models []grantModel
	err := s.sdb.NewSelect(&models).
		Where("tenant_id = ?", tenantID).
		Where("principal_id = ?", principalID).
		OrderExpr("granted_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("keeper/sqlite: list grants by principal: %w", err)
	}
	return grantsFromModels(models), nil
}

func (s *Store) RevokeGrant(ctx context.Context, r *grant.Revocation) (int64, error) {
	q := s.sdb.NewUpdate((*grantModel)(nil)).
		Set("revoked_at = ?", r.At.UTC()).
		Set("revoked_by = ?", r.RevokedBy).
		Set("revoke_reason = ?", r.Reason).
		Where("tenant_id = ?", r.TenantID).
		Where("principal_id = ?", r.PrincipalID).
		Where("role = ?", string(r.Role)).
		Where("revoked_at IS NULL").
		Where("(expires_at IS NULL OR expires_at > ?)", r.At.UTC())
	if r.IssuedBy != "" {
		q = q.Where("granted_by = ?", r.IssuedBy)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("keeper/sqlite: revoke grant: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("keeper/sqlite: revoke grant rows: %w", err)
	}
	return n, nil
}

func (s *Store) ListGrants(ctx context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	var models []grantModel
	q := s.sdb.NewSelect(&models).OrderExpr("granted_at DESC, id DESC")
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.PrincipalID != "" {
			q = q.Where("principal_id = ?", filter.PrincipalID)
		}
		if filter.Role != "" {
			q = q.Where("role = ?", string(filter.Role))
		}
		if filter.GrantedBy != "" {
			q = q.Where("granted_by = ?", filter.GrantedBy)
		}
		if filter.ActiveAt != nil {
			q = q.Where("revoked_at IS NULL").
				Where("(expires_at IS NULL OR expires_at > ?)", filter.ActiveAt.UTC())
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("keeper/sqlite: list grants: %w", err)
	}
	return grantsFromModels(models), nil
}

func (s *Store) CountGrants(ctx context.Context, filter *grant.ListFilter) (int64, error) {
	q := s.sdb.NewSelect((*grantModel)(nil))
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.PrincipalID != "" {
			q = q.Where("principal_id = ?", filter.PrincipalID)
		}
		if filter.Role != "" {
			q = q.Where("role = ?", string(filter.Role))
		}
		if filter.GrantedBy != "" {
			q = q.Where("granted_by = ?", filter.GrantedBy)
		}
		if filter.ActiveAt != nil {
			q = q.Where("revoked_at IS NULL").
				Where("(expires_at IS NULL OR expires_at > ?)", filter.ActiveAt.UTC())
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("keeper/sqlite: count grants: %w", err)
	}
	return count, nil
}

func grantsFromModels(models []grantModel) []*grant.Grant {
	result := make([]*grant.Grant, len(models))
	for i := range models {
		result[i] = grantFromModel(&models[i])
	}
	return result
}

// ──────────────────────────────────────────────────
// Subscription operations
// ──────────────────────────────────────────────────

func (s *Store) GetSubscription(ctx context.Context, tenantID, principalID string) (*subscription.State, error) {
	m := new(subscriptionModel)
	err := s.sdb.NewSelect(m).
		Where("tenant_id = ?", tenantID).
		Where("principal_id = ?", principalID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("subscription %s: %w", principalID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("keeper/sqlite: get subscription: %w", err)
	}
	return subscriptionFromModel(m), nil
}

func (s *Store) ApplySubscription(ctx context.Context, st *subscription.State) (bool, error) {
	res, err := s.sdb.NewInsert(subscriptionToModel(st)).
		OnConflict(subscriptionApplyConflict).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("keeper/sqlite: apply subscription: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("keeper/sqlite: apply subscription rows: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ForceSubscription(ctx context.Context, st *subscription.State) error {
	_, err := s.sdb.NewInsert(subscriptionToModel(st)).
		OnConflict(subscriptionForceConflict).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("keeper/sqlite: force subscription: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Sync log operations
// ──────────────────────────────────────────────────

func (s *Store) CreateSyncLog(ctx context.Context, e *synclog.Entry) error {
	_, err := s.sdb.NewInsert(syncLogToModel(e)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("keeper/sqlite: create sync log: %w", err)
	}
	return nil
}

func (s *Store) ListSyncLogs(ctx context.Context, filter *synclog.QueryFilter) ([]*synclog.Entry, error) {
	var models []syncLogModel
	q := s.sdb.NewSelect(&models).OrderExpr("created_at DESC")
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.PrincipalID != "" {
			q = q.Where("principal_id = ?", filter.PrincipalID)
		}
		if filter.DeliveryID != "" {
			q = q.Where("delivery_id = ?", filter.DeliveryID)
		}
		if filter.Outcome != "" {
			q = q.Where("outcome = ?", string(filter.Outcome))
		}
		if filter.After != nil {
			q = q.Where("created_at >= ?", filter.After.UTC())
		}
		if filter.Before != nil {
			q = q.Where("created_at <= ?", filter.Before.UTC())
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("keeper/sqlite: list sync logs: %w", err)
	}
	result := make([]*synclog.Entry, len(models))
	for i := range models {
		result[i] = syncLogFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountSyncLogs(ctx context.Context, filter *synclog.QueryFilter) (int64, error) {
	q := s.sdb.NewSelect((*syncLogModel)(nil))
	if filter != nil {
		if filter.TenantID != "" {
			q = q.Where("tenant_id = ?", filter.TenantID)
		}
		if filter.PrincipalID != "" {
			q = q.Where("principal_id = ?", filter.PrincipalID)
		}
		if filter.DeliveryID != "" {
			q = q.Where("delivery_id = ?", filter.DeliveryID)
		}
		if filter.Outcome != "" {
			q = q.Where("outcome = ?", string(filter.Outcome))
		}
		if filter.After != nil {
			q = q.Where("created_at >= ?", filter.After.UTC())
		}
		if filter.Before != nil {
			q = q.Where("created_at <= ?", filter.Before.UTC())
		}
	}
	count, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("keeper/sqlite: count sync logs: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeSyncLogs(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.sdb.NewDelete((*syncLogModel)(nil)).
		Where("created_at < ?", before.UTC()).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("keeper/sqlite: purge sync logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("keeper/sqlite: purge sync logs rows: %w", err)
	}
	return n, nil
}

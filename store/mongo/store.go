// Package mongo provides a MongoDB implementation of the Keeper composite
// store using grove ORM. Migrate creates the collection indexes.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/store"
	"github.com/xraph/keeper/subscription"
	"github.com/xraph/keeper/synclog"
)

// Collection name constants.
const (
	colGrants        = "keeper_grants"
	colSubscriptions = "keeper_subscriptions"
	colSyncLogs      = "keeper_sync_logs"
)

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

// Store is a MongoDB implementation of the composite Keeper store.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// Migrate creates indexes for all keeper collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()
	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("keeper/mongo: migrate %s indexes: %w", col, err)
		}
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

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all keeper collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colGrants: {
			{
				Keys: bson.D{
					{Key: "tenant_id", Value: 1},
					{Key: "principal_id", Value: 1},
					{Key: "role", Value: 1},
				},
				Options: options.Index().
					SetName("uq_keeper_grants_unrevoked").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"revoked": false}),
			},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "principal_id", Value: 1}, {Key: "granted_at", Value: -1}}},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "granted_by", Value: 1}}},
		},
		colSubscriptions: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "tier", Value: 1}}},
		},
		colSyncLogs: {
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "principal_id", Value: 1}}},
			{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "delivery_id", Value: 1}}},
		},
	}
}

// ──────────────────────────────────────────────────
// Grant operations
// ──────────────────────────────────────────────────

// activeAt matches unrevoked grants whose expiry lies after t.
func activeAt(f bson.M, t time.Time) bson.M {
	f["revoked"] = false
	f["$or"] = bson.A{
		bson.M{"expires_at": nil},
		bson.M{"expires_at": bson.M{"$gt": t}},
	}
	return f
}

func (s *Store) PutGrant(ctx context.Context, g *grant.Grant) (*grant.Grant, bool, error) {
	// Stamp lapsed grants so the partial unique index only sees live ones.
	_, err := s.mdb.Collection(colGrants).UpdateMany(ctx,
		bson.M{
			"tenant_id":    g.TenantID,
			"principal_id": g.PrincipalID,
			"role":         string(g.Role),
			"revoked":      false,
			"expires_at":   bson.M{"$ne": nil, "$lte": g.GrantedAt},
		},
		mongod.Pipeline{
			{{Key: "$set", Value: bson.D{
				{Key: "revoked", Value: true},
				{Key: "revoked_at", Value: "$expires_at"},
				{Key: "revoked_by", Value: grant.SystemActor},
				{Key: "revoke_reason", Value: grant.ReasonExpired},
			}}},
		},
	)
	if err != nil {
		return nil, false, fmt.Errorf("keeper: stamp lapsed grants: %w", err)
	}

	_, err = s.mdb.NewInsert(grantToModel(g)).Exec(ctx)
	if err == nil {
		return g, true, nil
	}
	if !mongod.IsDuplicateKeyError(err) {
		return nil, false, fmt.Errorf("keeper: put grant: %w", err)
	}

	var m grantModel
	err = s.mdb.NewFind(&m).
		Filter(bson.M{
			"tenant_id":    g.TenantID,
			"principal_id": g.PrincipalID,
			"role":         string(g.Role),
			"revoked":      false,
		}).
		Scan(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("keeper: get existing grant: %w", err)
	}
	return grantFromModel(&m), false, nil
}

func (s *Store) ListGrantsByPrincipal(ctx context.Context, tenantID, principalID string) ([]*grant.Grant, error) {
	var models []grantModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"tenant_id": tenantID, "principal_id": principalID}).
		Sort(bson.D{{Key: "granted_at", Value: -1}, {Key: "_id", Value: -1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("keeper: list grants by principal: %w", err)
	}
	return grantsFromModels(models), nil
}

func (s *Store) RevokeGrant(ctx context.Context, r *grant.Revocation) (int64, error) {
	f := activeAt(bson.M{
		"tenant_id":    r.TenantID,
		"principal_id": r.PrincipalID,
		"role":         string(r.Role),
	}, r.At)
	if r.IssuedBy != "" {
		f["granted_by"] = r.IssuedBy
	}
	res, err := s.mdb.Collection(colGrants).UpdateMany(ctx, f, bson.M{
		"$set": bson.M{
			"revoked":       true,
			"revoked_at":    r.At,
			"revoked_by":    r.RevokedBy,
			"revoke_reason": r.Reason,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("keeper: revoke grant: %w", err)
	}
	return res.ModifiedCount, nil
}

func grantFilter(filter *grant.ListFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.TenantID != "" {
		f["tenant_id"] = filter.TenantID
	}
	if filter.PrincipalID != "" {
		f["principal_id"] = filter.PrincipalID
	}
	if filter.Role != "" {
		f["role"] = string(filter.Role)
	}
	if filter.GrantedBy != "" {
		f["granted_by"] = filter.GrantedBy
	}
	if filter.ActiveAt != nil {
		f = activeAt(f, *filter.ActiveAt)
	}
	return f
}

func (s *Store) ListGrants(ctx context.Context, filter *grant.ListFilter) ([]*grant.Grant, error) {
	var models []grantModel
	q := s.mdb.NewFind(&models).
		Filter(grantFilter(filter)).
		Sort(bson.D{{Key: "granted_at", Value: -1}, {Key: "_id", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("keeper: list grants: %w", err)
	}
	return grantsFromModels(models), nil
}

func (s *Store) CountGrants(ctx context.Context, filter *grant.ListFilter) (int64, error) {
	count, err := s.mdb.NewFind((*grantModel)(nil)).
		Filter(grantFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("keeper: count grants: %w", err)
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
	var m subscriptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": subscriptionKey(tenantID, principalID)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, fmt.Errorf("subscription %s: %w", principalID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("keeper: get subscription: %w", err)
	}
	return subscriptionFromModel(&m), nil
}

func subscriptionUpdate(m *subscriptionModel) bson.M {
	return bson.M{"$set": bson.M{
		"tenant_id":    m.TenantID,
		"app_id":       m.AppID,
		"principal_id": m.PrincipalID,
		"tier":         m.Tier,
		"status":       m.Status,
		"renewed_at":   m.RenewedAt,
		"event_at":     m.EventAt,
		"source":       m.Source,
		"updated_by":   m.UpdatedBy,
		"updated_at":   m.UpdatedAt,
	}}
}

// ApplySubscription upserts only over a stored state whose event_at is not
// newer. When the stored state is newer the filter misses, the upsert
// collides on _id and the write is reported as not applied.
func (s *Store) ApplySubscription(ctx context.Context, st *subscription.State) (bool, error) {
	m := subscriptionToModel(st)
	res, err := s.mdb.Collection(colSubscriptions).UpdateOne(ctx,
		bson.M{"_id": m.ID, "event_at": bson.M{"$lte": m.EventAt}},
		subscriptionUpdate(m),
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("keeper: apply subscription: %w", err)
	}
	return res.MatchedCount > 0 || res.UpsertedCount > 0, nil
}

func (s *Store) ForceSubscription(ctx context.Context, st *subscription.State) error {
	m := subscriptionToModel(st)
	_, err := s.mdb.Collection(colSubscriptions).UpdateOne(ctx,
		bson.M{"_id": m.ID},
		subscriptionUpdate(m),
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("keeper: force subscription: %w", err)
	}
	return nil
}

// ──────────────────────────────────────────────────
// Sync log operations
// ──────────────────────────────────────────────────

func (s *Store) CreateSyncLog(ctx context.Context, e *synclog.Entry) error {
	if _, err := s.mdb.NewInsert(syncLogToModel(e)).Exec(ctx); err != nil {
		return fmt.Errorf("keeper: create sync log: %w", err)
	}
	return nil
}

func syncLogFilter(filter *synclog.QueryFilter) bson.M {
	f := bson.M{}
	if filter == nil {
		return f
	}
	if filter.TenantID != "" {
		f["tenant_id"] = filter.TenantID
	}
	if filter.PrincipalID != "" {
		f["principal_id"] = filter.PrincipalID
	}
	if filter.DeliveryID != "" {
		f["delivery_id"] = filter.DeliveryID
	}
	if filter.Outcome != "" {
		f["outcome"] = string(filter.Outcome)
	}
	if filter.After != nil || filter.Before != nil {
		tf := bson.M{}
		if filter.After != nil {
			tf["$gte"] = *filter.After
		}
		if filter.Before != nil {
			tf["$lte"] = *filter.Before
		}
		f["created_at"] = tf
	}
	return f
}

func (s *Store) ListSyncLogs(ctx context.Context, filter *synclog.QueryFilter) ([]*synclog.Entry, error) {
	var models []syncLogModel
	q := s.mdb.NewFind(&models).
		Filter(syncLogFilter(filter)).
		Sort(bson.D{{Key: "created_at", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			q = q.Limit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			q = q.Skip(int64(filter.Offset))
		}
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("keeper: list sync logs: %w", err)
	}
	result := make([]*synclog.Entry, len(models))
	for i := range models {
		result[i] = syncLogFromModel(&models[i])
	}
	return result, nil
}

func (s *Store) CountSyncLogs(ctx context.Context, filter *synclog.QueryFilter) (int64, error) {
	count, err := s.mdb.NewFind((*syncLogModel)(nil)).
		Filter(syncLogFilter(filter)).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("keeper: count sync logs: %w", err)
	}
	return count, nil
}

func (s *Store) PurgeSyncLogs(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.mdb.NewDelete((*syncLogModel)(nil)).
		Many().
		Filter(bson.M{"created_at": bson.M{"$lt": before}}).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("keeper: purge sync logs: %w", err)
	}
	return res.DeletedCount(), nil
}

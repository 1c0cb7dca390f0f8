package keeper

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/role"
	"github.com/xraph/keeper/subscription"
	"github.com/xraph/keeper/synclog"
)

// RequireSelfOrAdmin lets actor read data about target when they are the
// same principal or actor is an admin.
func (e *Engine) RequireSelfOrAdmin(ctx context.Context, actor, target string, now time.Time) error {
	if actor == "" {
		return ErrUnauthenticated
	}
	if actor == target {
		return nil
	}
	return e.RequireAdmin(ctx, actor, now)
}

// RolesOf returns the active roles of target as seen by actor.
func (e *Engine) RolesOf(ctx context.Context, actor, target string) ([]role.Name, error) {
	now := e.now()
	if err := e.RequireSelfOrAdmin(ctx, actor, target, now); err != nil {
		return nil, err
	}
	return e.ActiveRoles(ctx, target, now)
}

// SubscriptionOf returns the stored subscription state of target as seen
// by actor.
func (e *Engine) SubscriptionOf(ctx context.Context, actor, target string) (*subscription.State, error) {
	if err := e.RequireSelfOrAdmin(ctx, actor, target, e.now()); err != nil {
		return nil, err
	}
	return e.Subscription(ctx, target)
}

// GrantHistory returns every grant of target, revoked and expired ones
// included, newest first. Only admins may read it.
func (e *Engine) GrantHistory(ctx context.Context, actor, target string) ([]*grant.Grant, error) {
	if err := e.RequireAdmin(ctx, actor, e.now()); err != nil {
		return nil, err
	}
	grants, err := e.store.ListGrantsByPrincipal(ctx, scopeFromContext(ctx).tenantID, target)
	if err != nil {
		return nil, unavailable(err)
	}
	return grants, nil
}

// SyncLogs returns journal entries of the context tenant and their total
// count. Only admins may read them.
func (e *Engine) SyncLogs(ctx context.Context, actor string, filter synclog.QueryFilter) ([]*synclog.Entry, int64, error) {
	if err := e.RequireAdmin(ctx, actor, e.now()); err != nil {
		return nil, 0, err
	}
	filter.TenantID = scopeFromContext(ctx).tenantID
	entries, err := e.store.ListSyncLogs(ctx, &filter)
	if err != nil {
		return nil, 0, unavailable(err)
	}
	total, err := e.store.CountSyncLogs(ctx, &filter)
	if err != nil {
		return nil, 0, unavailable(err)
	}
	return entries, total, nil
}

// ListGrants returns grants of the context tenant matching filter and their
// total count. Only admins may list them.
func (e *Engine) ListGrants(ctx context.Context, actor string, filter grant.ListFilter) ([]*grant.Grant, int64, error) {
	if err := e.RequireAdmin(ctx, actor, e.now()); err != nil {
		return nil, 0, err
	}
	if filter.Role != "" {
		r, err := role.Parse(string(filter.Role))
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %w", ErrInvalidRole, err)
		}
		filter.Role = r
	}
	filter.TenantID = scopeFromContext(ctx).tenantID
	grants, err := e.store.ListGrants(ctx, &filter)
	if err != nil {
		return nil, 0, unavailable(err)
	}
	total, err := e.store.CountGrants(ctx, &filter)
	if err != nil {
		return nil, 0, unavailable(err)
	}
	return grants, total, nil
}

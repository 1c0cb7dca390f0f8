package keeper

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/id"
	"github.com/xraph/keeper/role"
)

// AssignOptions carries the optional fields of a new grant.
type AssignOptions struct {
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

// Assign grants roleName to target on behalf of actor. Assigning a role the
// target already actively holds returns the existing grant and writes
// nothing. No state changes when any check fails.
func (e *Engine) Assign(ctx context.Context, actor, target, roleName string, opts AssignOptions) (*grant.Grant, error) {
	now := e.now()
	if err := e.RequireAdmin(ctx, actor, now); err != nil {
		return nil, err
	}
	r, err := role.Parse(roleName)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRole, err)
	}
	if target == "" {
		return nil, fmt.Errorf("%w: empty target principal", ErrNotFound)
	}
	if opts.ExpiresAt != nil && !opts.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidExpiry, opts.ExpiresAt.Format(time.RFC3339))
	}

	scope := scopeFromContext(ctx)
	g := &grant.Grant{
		ID:          id.NewGrantID(),
		TenantID:    scope.tenantID,
		AppID:       scope.appID,
		PrincipalID: target,
		Role:        r,
		GrantedBy:   actor,
		GrantedAt:   now,
		ExpiresAt:   opts.ExpiresAt,
		Notes:       opts.Notes,
	}
	stored, created, err := e.store.PutGrant(ctx, g)
	if err != nil {
		return nil, unavailable(err)
	}
	if !created {
		e.logger.Debug("keeper: role already granted",
			"principal_id", target,
			"role", r,
			"grant_id", stored.ID.String(),
		)
		return stored, nil
	}

	e.logger.Info("keeper: role granted",
		"principal_id", target,
		"role", r,
		"granted_by", actor,
		"grant_id", stored.ID.String(),
	)
	if e.plugins != nil {
		e.plugins.EmitRoleGranted(ctx, stored)
	}
	return stored, nil
}

// Remove revokes the active grant of roleName from target on behalf of
// actor. Removing a role the target does not hold is a no-op.
func (e *Engine) Remove(ctx context.Context, actor, target, roleName, reason string) error {
	now := e.now()
	if err := e.RequireAdmin(ctx, actor, now); err != nil {
		return err
	}
	r, err := role.Parse(roleName)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRole, err)
	}
	if target == "" {
		return fmt.Errorf("%w: empty target principal", ErrNotFound)
	}

	_, err = e.revoke(ctx, &grant.Revocation{
		TenantID:    scopeFromContext(ctx).tenantID,
		PrincipalID: target,
		Role:        r,
		RevokedBy:   actor,
		Reason:      reason,
		At:          now,
	})
	return err
}

// RequireAdmin checks that actor is present and holds an active admin grant
// at now.
func (e *Engine) RequireAdmin(ctx context.Context, actor string, now time.Time) error {
	if actor == "" {
		return ErrUnauthenticated
	}
	roles, err := e.ActiveRoles(ctx, actor, now)
	if err != nil {
		return err
	}
	if !Evaluate(roles, "").IsAdmin {
		return fmt.Errorf("%w: %q is not an admin", ErrForbidden, actor)
	}
	return nil
}

func (e *Engine) revoke(ctx context.Context, rev *grant.Revocation) (int64, error) {
	n, err := e.store.RevokeGrant(ctx, rev)
	if err != nil {
		return 0, unavailable(err)
	}
	if n == 0 {
		e.logger.Debug("keeper: no active grant to revoke",
			"principal_id", rev.PrincipalID,
			"role", rev.Role,
		)
		return 0, nil
	}

	e.logger.Info("keeper: role revoked",
		"principal_id", rev.PrincipalID,
		"role", rev.Role,
		"revoked_by", rev.RevokedBy,
		"reason", rev.Reason,
	)
	if e.plugins != nil {
		e.plugins.EmitRoleRevoked(ctx, rev)
	}
	return n, nil
}

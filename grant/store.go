package grant

import (
	"context"
)

// Store defines persistence operations for role grants.
//
// Implementations must keep at most one active grant per
// (tenant, principal, role) using a conditional write, not a
// read-then-write in the caller.
type Store interface {
	// PutGrant persists g unless an active grant for the same tenant,
	// principal and role exists at g.GrantedAt. In that case the existing
	// grant is returned with created=false and nothing is written.
	// Unrevoked grants for the pair that have lapsed by g.GrantedAt are
	// stamped revoked (RevokedAt = ExpiresAt) in the same operation.
	PutGrant(ctx context.Context, g *Grant) (stored *Grant, created bool, err error)

	// ListGrantsByPrincipal returns every grant of a principal, revoked and
	// expired ones included, ordered by GrantedAt descending.
	ListGrantsByPrincipal(ctx context.Context, tenantID, principalID string) ([]*Grant, error)

	// RevokeGrant stamps the grants of r.Role that are active at r.At.
	// It returns how many were revoked; zero is not an error.
	RevokeGrant(ctx context.Context, r *Revocation) (int64, error)

	// ListGrants returns grants matching the filter, GrantedAt descending.
	ListGrants(ctx context.Context, filter *ListFilter) ([]*Grant, error)

	// CountGrants returns the number of grants matching the filter.
	CountGrants(ctx context.Context, filter *ListFilter) (int64, error)
}

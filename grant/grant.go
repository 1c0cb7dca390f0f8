// Package grant defines the role Grant entity (principal→role binding).
//
// A grant is never deleted and never edited. Its only mutation is the
// one-way revocation that stamps RevokedAt, so the grant rows themselves
// form the audit trail of who granted or removed what, and when.
package grant

import (
	"time"

	"github.com/xraph/keeper/id"
	"github.com/xraph/keeper/role"
)

// SystemActor is recorded as RevokedBy when a lapsed grant is stamped
// revoked by the store itself.
const SystemActor = "system"

// ReasonExpired is recorded as RevokeReason on lapsed grants.
const ReasonExpired = "expired"

// Grant binds a role to a principal within a tenant.
type Grant struct {
	ID           id.GrantID `json:"id" db:"id"`
	TenantID     string     `json:"tenant_id" db:"tenant_id"`
	AppID        string     `json:"app_id" db:"app_id"`
	PrincipalID  string     `json:"principal_id" db:"principal_id"`
	Role         role.Name  `json:"role" db:"role"`
	GrantedBy    string     `json:"granted_by" db:"granted_by"`
	GrantedAt    time.Time  `json:"granted_at" db:"granted_at"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	Notes        string     `json:"notes,omitempty" db:"notes"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	RevokedBy    string     `json:"revoked_by,omitempty" db:"revoked_by"`
	RevokeReason string     `json:"revoke_reason,omitempty" db:"revoke_reason"`
}

// IsActive reports whether the grant is neither revoked nor expired at now.
func (g *Grant) IsActive(now time.Time) bool {
	if g.RevokedAt != nil {
		return false
	}
	return g.ExpiresAt == nil || g.ExpiresAt.After(now)
}

// Lapsed reports whether the grant expired at or before now without ever
// being revoked.
func (g *Grant) Lapsed(now time.Time) bool {
	return g.RevokedAt == nil && g.ExpiresAt != nil && !g.ExpiresAt.After(now)
}

// Revocation describes a request to revoke the active grant of a role.
type Revocation struct {
	TenantID    string    `json:"tenant_id"`
	PrincipalID string    `json:"principal_id"`
	Role        role.Name `json:"role"`
	RevokedBy   string    `json:"revoked_by"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`

	// IssuedBy, when set, limits the revocation to grants whose GrantedBy
	// equals it.
	IssuedBy string `json:"issued_by,omitempty"`
}

// ListFilter contains filters for listing grants.
type ListFilter struct {
	TenantID    string     `json:"tenant_id,omitempty"`
	PrincipalID string     `json:"principal_id,omitempty"`
	Role        role.Name  `json:"role,omitempty"`
	GrantedBy   string     `json:"granted_by,omitempty"`
	ActiveAt    *time.Time `json:"active_at,omitempty"`
	Limit       int        `json:"limit,omitempty"`
	Offset      int        `json:"offset,omitempty"`
}

package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/id"
	"github.com/xraph/keeper/role"
	"github.com/xraph/keeper/subscription"
	"github.com/xraph/keeper/synclog"
)

// ──────────────────────────────────────────────────
// Grant model
// ──────────────────────────────────────────────────

type grantModel struct {
	grove.BaseModel `grove:"table:keeper_grants"`
	ID              string     `grove:"id,pk"`
	TenantID        string     `grove:"tenant_id,notnull"`
	AppID           string     `grove:"app_id,notnull"`
	PrincipalID     string     `grove:"principal_id,notnull"`
	Role            string     `grove:"role,notnull"`
	GrantedBy       string     `grove:"granted_by,notnull"`
	GrantedAt       time.Time  `grove:"granted_at,notnull"`
	ExpiresAt       *time.Time `grove:"expires_at"`
	Notes           string     `grove:"notes"`
	RevokedAt       *time.Time `grove:"revoked_at"`
	RevokedBy       string     `grove:"revoked_by"`
	RevokeReason    string     `grove:"revoke_reason"`
}

func grantToModel(g *grant.Grant) *grantModel {
	return &grantModel{
		ID:           g.ID.String(),
		TenantID:     g.TenantID,
		AppID:        g.AppID,
		PrincipalID:  g.PrincipalID,
		Role:         string(g.Role),
		GrantedBy:    g.GrantedBy,
		GrantedAt:    g.GrantedAt.UTC(),
		ExpiresAt:    utc(g.ExpiresAt),
		Notes:        g.Notes,
		RevokedAt:    utc(g.RevokedAt),
		RevokedBy:    g.RevokedBy,
		RevokeReason: g.RevokeReason,
	}
}

func grantFromModel(m *grantModel) *grant.Grant {
	gid, _ := id.ParseGrantID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &grant.Grant{
		ID:           gid,
		TenantID:     m.TenantID,
		AppID:        m.AppID,
		PrincipalID:  m.PrincipalID,
		Role:         role.Name(m.Role),
		GrantedBy:    m.GrantedBy,
		GrantedAt:    m.GrantedAt,
		ExpiresAt:    m.ExpiresAt,
		Notes:        m.Notes,
		RevokedAt:    m.RevokedAt,
		RevokedBy:    m.RevokedBy,
		RevokeReason: m.RevokeReason,
	}
}

// ──────────────────────────────────────────────────
// Subscription model
// ──────────────────────────────────────────────────

type subscriptionModel struct {
	grove.BaseModel `grove:"table:keeper_subscriptions"`
	TenantID        string     `grove:"tenant_id,pk"`
	PrincipalID     string     `grove:"principal_id,pk"`
	AppID           string     `grove:"app_id,notnull"`
	Tier            string     `grove:"tier,notnull"`
	Status          string     `grove:"status,notnull"`
	RenewedAt       *time.Time `grove:"renewed_at"`
	EventAt         time.Time  `grove:"event_at,notnull"`
	Source          string     `grove:"source,notnull"`
	UpdatedBy       string     `grove:"updated_by"`
	UpdatedAt       time.Time  `grove:"updated_at,notnull"`
}

func subscriptionToModel(s *subscription.State) *subscriptionModel {
	return &subscriptionModel{
		TenantID:    s.TenantID,
		PrincipalID: s.PrincipalID,
		AppID:       s.AppID,
		Tier:        string(s.Tier),
		Status:      string(s.Status),
		RenewedAt:   utc(s.RenewedAt),
		EventAt:     s.EventAt.UTC(),
		Source:      string(s.Source),
		UpdatedBy:   s.UpdatedBy,
		UpdatedAt:   s.UpdatedAt.UTC(),
	}
}

func subscriptionFromModel(m *subscriptionModel) *subscription.State {
	return &subscription.State{
		TenantID:    m.TenantID,
		AppID:       m.AppID,
		PrincipalID: m.PrincipalID,
		Tier:        subscription.Tier(m.Tier),
		Status:      subscription.Status(m.Status),
		RenewedAt:   m.RenewedAt,
		EventAt:     m.EventAt,
		Source:      subscription.Source(m.Source),
		UpdatedBy:   m.UpdatedBy,
		UpdatedAt:   m.UpdatedAt,
	}
}

// ──────────────────────────────────────────────────
// Sync log model
// ──────────────────────────────────────────────────

type syncLogModel struct {
	grove.BaseModel `grove:"table:keeper_sync_logs"`
	ID              string    `grove:"id,pk"`
	TenantID        string    `grove:"tenant_id,notnull"`
	AppID           string    `grove:"app_id,notnull"`
	PrincipalID     string    `grove:"principal_id,notnull"`
	DeliveryID      string    `grove:"delivery_id"`
	Tier            string    `grove:"tier"`
	Status          string    `grove:"status"`
	EventAt         time.Time `grove:"event_at"`
	Outcome         string    `grove:"outcome,notnull"`
	Reason          string    `grove:"reason"`
	Actor           string    `grove:"actor"`
	CreatedAt       time.Time `grove:"created_at,notnull"`
}

func syncLogToModel(e *synclog.Entry) *syncLogModel {
	return &syncLogModel{
		ID:          e.ID.String(),
		TenantID:    e.TenantID,
		AppID:       e.AppID,
		PrincipalID: e.PrincipalID,
		DeliveryID:  e.DeliveryID,
		Tier:        e.Tier,
		Status:      e.Status,
		EventAt:     e.EventAt.UTC(),
		Outcome:     string(e.Outcome),
		Reason:      e.Reason,
		Actor:       e.Actor,
		CreatedAt:   e.CreatedAt.UTC(),
	}
}

func syncLogFromModel(m *syncLogModel) *synclog.Entry {
	sid, _ := id.ParseSyncLogID(m.ID) //nolint:errcheck // stored IDs are always valid
	return &synclog.Entry{
		ID:          sid,
		TenantID:    m.TenantID,
		AppID:       m.AppID,
		PrincipalID: m.PrincipalID,
		DeliveryID:  m.DeliveryID,
		Tier:        m.Tier,
		Status:      m.Status,
		EventAt:     m.EventAt,
		Outcome:     synclog.Outcome(m.Outcome),
		Reason:      m.Reason,
		Actor:       m.Actor,
		CreatedAt:   m.CreatedAt,
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

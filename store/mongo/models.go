package mongo

import (
	"strconv"
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

// grantModel carries a denormalised revoked flag; the unique partial index
// on unrevoked grants filters on it.
type grantModel struct {
	grove.BaseModel `grove:"table:keeper_grants"`
	ID              string     `grove:"id,pk"           bson:"_id"`
	TenantID        string     `grove:"tenant_id"       bson:"tenant_id"`
	AppID           string     `grove:"app_id"          bson:"app_id"`
	PrincipalID     string     `grove:"principal_id"    bson:"principal_id"`
	Role            string     `grove:"role"            bson:"role"`
	GrantedBy       string     `grove:"granted_by"      bson:"granted_by"`
	GrantedAt       time.Time  `grove:"granted_at"      bson:"granted_at"`
	ExpiresAt       *time.Time `grove:"expires_at"      bson:"expires_at"`
	Notes           string     `grove:"notes"           bson:"notes,omitempty"`
	Revoked         bool       `grove:"revoked"         bson:"revoked"`
	RevokedAt       *time.Time `grove:"revoked_at"      bson:"revoked_at,omitempty"`
	RevokedBy       string     `grove:"revoked_by"      bson:"revoked_by,omitempty"`
	RevokeReason    string     `grove:"revoke_reason"   bson:"revoke_reason,omitempty"`
}

func grantToModel(g *grant.Grant) *grantModel {
	return &grantModel{
		ID:           g.ID.String(),
		TenantID:     g.TenantID,
		AppID:        g.AppID,
		PrincipalID:  g.PrincipalID,
		Role:         string(g.Role),
		GrantedBy:    g.GrantedBy,
		GrantedAt:    g.GrantedAt,
		ExpiresAt:    g.ExpiresAt,
		Notes:        g.Notes,
		Revoked:      g.RevokedAt != nil,
		RevokedAt:    g.RevokedAt,
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

// subscriptionModel is keyed by subscriptionKey(tenant, principal) so the
// conditional upsert collides on _id when the stored state is newer.
type subscriptionModel struct {
	grove.BaseModel `grove:"table:keeper_subscriptions"`
	ID              string     `grove:"id,pk"           bson:"_id"`
	TenantID        string     `grove:"tenant_id"       bson:"tenant_id"`
	AppID           string     `grove:"app_id"          bson:"app_id"`
	PrincipalID     string     `grove:"principal_id"    bson:"principal_id"`
	Tier            string     `grove:"tier"            bson:"tier"`
	Status          string     `grove:"status"          bson:"status"`
	RenewedAt       *time.Time `grove:"renewed_at"      bson:"renewed_at,omitempty"`
	EventAt         time.Time  `grove:"event_at"        bson:"event_at"`
	Source          string     `grove:"source"          bson:"source"`
	UpdatedBy       string     `grove:"updated_by"      bson:"updated_by,omitempty"`
	UpdatedAt       time.Time  `grove:"updated_at"      bson:"updated_at"`
}

// subscriptionKey length-prefixes the tenant so IDs containing the
// separator cannot collide across tenants.
func subscriptionKey(tenantID, principalID string) string {
	return strconv.Itoa(len(tenantID)) + ":" + tenantID + "/" + principalID
}

func subscriptionToModel(s *subscription.State) *subscriptionModel {
	return &subscriptionModel{
		ID:          subscriptionKey(s.TenantID, s.PrincipalID),
		TenantID:    s.TenantID,
		AppID:       s.AppID,
		PrincipalID: s.PrincipalID,
		Tier:        string(s.Tier),
		Status:      string(s.Status),
		RenewedAt:   s.RenewedAt,
		EventAt:     s.EventAt,
		Source:      string(s.Source),
		UpdatedBy:   s.UpdatedBy,
		UpdatedAt:   s.UpdatedAt,
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
	ID              string    `grove:"id,pk"           bson:"_id"`
	TenantID        string    `grove:"tenant_id"       bson:"tenant_id"`
	AppID           string    `grove:"app_id"          bson:"app_id"`
	PrincipalID     string    `grove:"principal_id"    bson:"principal_id"`
	DeliveryID      string    `grove:"delivery_id"     bson:"delivery_id,omitempty"`
	Tier            string    `grove:"tier"            bson:"tier,omitempty"`
	Status          string    `grove:"status"          bson:"status,omitempty"`
	EventAt         time.Time `grove:"event_at"        bson:"event_at"`
	Outcome         string    `grove:"outcome"         bson:"outcome"`
	Reason          string    `grove:"reason"          bson:"reason,omitempty"`
	Actor           string    `grove:"actor"           bson:"actor,omitempty"`
	CreatedAt       time.Time `grove:"created_at"      bson:"created_at"`
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
		EventAt:     e.EventAt,
		Outcome:     string(e.Outcome),
		Reason:      e.Reason,
		Actor:       e.Actor,
		CreatedAt:   e.CreatedAt,
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

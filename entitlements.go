package keeper

import (
	"time"

	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/role"
	"github.com/xraph/keeper/subscription"
)

// Entitlements are the capabilities derived from active roles and the
// subscription tier. They are computed per decision and never persisted.
type Entitlements struct {
	IsAdmin     bool `json:"is_admin"`
	IsModerator bool `json:"is_moderator"`
	IsPremium   bool `json:"is_premium"`
}

// Has reports whether the entitlements satisfy c.
func (e Entitlements) Has(c Capability) bool {
	switch c {
	case CapabilityAdmin:
		return e.IsAdmin
	case CapabilityModerator:
		return e.IsModerator
	case CapabilityPremium:
		return e.IsPremium
	}
	return false
}

// ActiveRoles returns the distinct roles of grants active at now, in
// enumeration order. Grants carrying a role outside the enumeration are
// ignored.
func ActiveRoles(grants []*grant.Grant, now time.Time) []role.Name {
	held := make(map[role.Name]struct{}, len(grants))
	for _, g := range grants {
		if g == nil || !g.Role.Valid() || !g.IsActive(now) {
			continue
		}
		held[g.Role] = struct{}{}
	}
	roles := make([]role.Name, 0, len(held))
	for _, r := range role.All() {
		if _, ok := held[r]; ok {
			roles = append(roles, r)
		}
	}
	return roles
}

// Evaluate derives entitlements. Premium is reachable independently through
// the billing tier or through the subscriber role.
func Evaluate(roles []role.Name, tier subscription.Tier) Entitlements {
	var hasAdmin, hasModerator, hasSubscriber bool
	for _, r := range roles {
		switch r {
		case role.Admin:
			hasAdmin = true
		case role.Moderator:
			hasModerator = true
		case role.Subscriber:
			hasSubscriber = true
		}
	}
	return Entitlements{
		IsAdmin:     hasAdmin,
		IsModerator: hasAdmin || hasModerator,
		IsPremium:   tier == subscription.TierPremium || hasSubscriber,
	}
}

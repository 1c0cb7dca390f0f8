// Package keeper provides role grants, billing-driven entitlements, and the
// guards that enforce them.
//
// Keeper stores time-bounded role grants per principal, reconciles billing
// notifications into a per-principal subscription state, and derives three
// capabilities (admin, moderator, premium) from both. It is tenant-scoped by
// default via forge.Scope. Nothing is cached between decisions: every
// Decide re-reads grants and subscription state so revocations and expiries
// take effect on the next request.
//
//	eng, err := keeper.NewEngine(
//	    keeper.WithStore(memStore),
//	)
//	dec, err := eng.Decide(ctx, "user_123", keeper.CapabilityPremium)
//	if dec.Allowed {
//	    // serve premium content
//	}
package keeper

import (
	"fmt"
	"strings"
)

// Capability is a derived permission a guard can require.
type Capability string

const (
	// CapabilityAdmin requires an active admin grant.
	CapabilityAdmin Capability = "admin"

	// CapabilityModerator requires an active moderator or admin grant.
	CapabilityModerator Capability = "moderator"

	// CapabilityPremium requires a premium tier or an active subscriber grant.
	CapabilityPremium Capability = "premium"
)

// Valid reports whether c is a known capability.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityAdmin, CapabilityModerator, CapabilityPremium:
		return true
	}
	return false
}

// ParseCapability normalises s into a Capability.
func ParseCapability(s string) (Capability, error) {
	c := Capability(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCapability, s)
	}
	return c, nil
}

// Outcome is the detailed result of a decision. Every outcome except
// OutcomeAllow is a deny.
type Outcome string

const (
	// OutcomeAllow means the principal holds the capability.
	OutcomeAllow Outcome = "allow"

	// OutcomeDenyUnauthenticated means no principal was supplied.
	OutcomeDenyUnauthenticated Outcome = "deny_unauthenticated"

	// OutcomeDenyForbidden means the principal lacks the capability.
	OutcomeDenyForbidden Outcome = "deny_forbidden"

	// OutcomeDenyInvalidCapability means the required capability is unknown.
	OutcomeDenyInvalidCapability Outcome = "deny_invalid_capability"

	// OutcomeDenyUnavailable means state could not be read.
	OutcomeDenyUnavailable Outcome = "deny_unavailable"
)

// Decision is the outcome of a guard decision.
type Decision struct {
	Allowed      bool         `json:"allowed"`
	Outcome      Outcome      `json:"outcome"`
	Capability   Capability   `json:"capability"`
	PrincipalID  string       `json:"principal_id,omitempty"`
	Reason       string       `json:"reason,omitempty"`
	Entitlements Entitlements `json:"entitlements"`
}

func deny(principalID string, c Capability, o Outcome, reason string) *Decision {
	return &Decision{
		Outcome:     o,
		Capability:  c,
		PrincipalID: principalID,
		Reason:      reason,
	}
}

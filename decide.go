package keeper

import (
	"context"
	"time"
)

// Decide reports whether principalID holds c right now. It is the single
// decision path behind every guard.
func (e *Engine) Decide(ctx context.Context, principalID string, c Capability) (*Decision, error) {
	return e.DecideAt(ctx, principalID, c, e.now())
}

// DecideAt reports whether principalID holds c at now. It fails closed: any
// error comes back together with a deny decision, never an allow.
// Unauthenticated and forbidden are decisions, not errors.
func (e *Engine) DecideAt(ctx context.Context, principalID string, c Capability, now time.Time) (*Decision, error) {
	dec, err := e.decide(ctx, principalID, c, now)
	if e.plugins != nil {
		e.plugins.EmitAfterDecide(ctx, dec)
	}
	return dec, err
}

func (e *Engine) decide(ctx context.Context, principalID string, c Capability, now time.Time) (*Decision, error) {
	if !c.Valid() {
		return deny(principalID, c, OutcomeDenyInvalidCapability, "unknown capability"), ErrInvalidCapability
	}
	if principalID == "" {
		return deny(principalID, c, OutcomeDenyUnauthenticated, "no principal"), nil
	}

	ent, _, err := e.Entitlements(ctx, principalID, now)
	if err != nil {
		e.logger.Error("keeper: decision failed closed",
			"principal_id", principalID,
			"capability", c,
			"error", err,
		)
		return deny(principalID, c, OutcomeDenyUnavailable, "state unavailable"), err
	}

	if !ent.Has(c) {
		dec := deny(principalID, c, OutcomeDenyForbidden, "missing capability "+string(c))
		dec.Entitlements = ent
		return dec, nil
	}
	return &Decision{
		Allowed:      true,
		Outcome:      OutcomeAllow,
		Capability:   c,
		PrincipalID:  principalID,
		Entitlements: ent,
	}, nil
}

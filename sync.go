package keeper

import (
	"context"
	"fmt"
	"time"

	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/id"
	"github.com/xraph/keeper/role"
	"github.com/xraph/keeper/subscription"
	"github.com/xraph/keeper/synclog"
)

// BillingActor is recorded as UpdatedBy on reconciled states and as
// GrantedBy on subscriber grants issued by reconciliation.
const BillingActor = "billing-sync"

// BillingEvent is a tier-change notification from the billing provider.
// Delivery is at least once and unordered.
type BillingEvent struct {
	DeliveryID     string              `json:"delivery_id,omitempty"`
	PrincipalID    string              `json:"principal_id"`
	Tier           subscription.Tier   `json:"tier"`
	Status         subscription.Status `json:"status"`
	EventTimestamp time.Time           `json:"event_timestamp"`
	RenewedAt      *time.Time          `json:"renewed_at,omitempty"`
}

// OverrideRequest is an operator correction of a subscription state.
type OverrideRequest struct {
	Tier   subscription.Tier   `json:"tier"`
	Status subscription.Status `json:"status"`
	Reason string              `json:"reason,omitempty"`
}

func (e *Engine) validateEvent(ev *BillingEvent, now time.Time) error {
	switch {
	case ev == nil:
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	case ev.PrincipalID == "":
		return fmt.Errorf("%w: missing principal_id", ErrInvalidEvent)
	case !ev.Tier.Valid():
		return fmt.Errorf("%w: unknown tier %q", ErrInvalidEvent, ev.Tier)
	case !ev.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", ErrInvalidEvent, ev.Status)
	case ev.EventTimestamp.IsZero():
		return fmt.Errorf("%w: missing event_timestamp", ErrInvalidEvent)
	case ev.EventTimestamp.After(now.Add(e.config.eventSkew())):
		return fmt.Errorf("%w: event_timestamp %s is in the future", ErrInvalidEvent, ev.EventTimestamp.Format(time.RFC3339))
	}
	return nil
}

// Reconcile merges a billing event into the subscription state of its
// principal. The stored state only moves forward in event time: an event
// older than the stored one is a stale no-op, and redelivery of the same
// event leaves the state unchanged. Invalid events are rejected with
// ErrInvalidEvent and must not be retried.
func (e *Engine) Reconcile(ctx context.Context, ev *BillingEvent) (synclog.Outcome, error) {
	now := e.now()
	scope := scopeFromContext(ctx)

	entry := &synclog.Entry{
		ID:        id.NewSyncLogID(),
		TenantID:  scope.tenantID,
		AppID:     scope.appID,
		Actor:     BillingActor,
		CreatedAt: now,
	}
	if ev != nil {
		entry.PrincipalID = ev.PrincipalID
		entry.DeliveryID = ev.DeliveryID
		entry.Tier = string(ev.Tier)
		entry.Status = string(ev.Status)
		entry.EventAt = ev.EventTimestamp
	}

	if err := e.validateEvent(ev, now); err != nil {
		e.logger.Warn("keeper: billing event rejected",
			"principal_id", entry.PrincipalID,
			"delivery_id", entry.DeliveryID,
			"error", err,
		)
		entry.Outcome = synclog.OutcomeInvalid
		entry.Reason = err.Error()
		e.journal(ctx, entry)
		return synclog.OutcomeInvalid, err
	}

	if e.deliverySeen(ctx, scope.tenantID, ev.DeliveryID) {
		entry.Outcome = synclog.OutcomeDuplicate
		entry.Reason = "delivery already processed"
		e.journal(ctx, entry)
		return synclog.OutcomeDuplicate, nil
	}

	st := &subscription.State{
		TenantID:    scope.tenantID,
		AppID:       scope.appID,
		PrincipalID: ev.PrincipalID,
		Tier:        ev.Tier,
		Status:      ev.Status,
		RenewedAt:   ev.RenewedAt,
		EventAt:     ev.EventTimestamp,
		Source:      subscription.SourceBilling,
		UpdatedBy:   BillingActor,
		UpdatedAt:   now,
	}
	applied, err := e.store.ApplySubscription(ctx, st)
	if err != nil {
		e.logger.Error("keeper: apply subscription failed",
			"principal_id", ev.PrincipalID,
			"delivery_id", ev.DeliveryID,
			"error", err,
		)
		return "", unavailable(err)
	}

	if !applied {
		e.logger.Info("keeper: stale billing event ignored",
			"principal_id", ev.PrincipalID,
			"delivery_id", ev.DeliveryID,
			"event_at", ev.EventTimestamp,
		)
		e.markDelivery(ctx, scope.tenantID, ev.DeliveryID)
		entry.Outcome = synclog.OutcomeStale
		entry.Reason = "newer state already stored"
		e.journal(ctx, entry)
		return synclog.OutcomeStale, nil
	}

	if err := e.syncSubscriberRole(ctx, st, now); err != nil {
		return "", err
	}
	e.markDelivery(ctx, scope.tenantID, ev.DeliveryID)

	e.logger.Info("keeper: subscription reconciled",
		"principal_id", ev.PrincipalID,
		"tier", ev.Tier,
		"status", ev.Status,
		"event_at", ev.EventTimestamp,
	)
	entry.Outcome = synclog.OutcomeApplied
	e.journal(ctx, entry)
	if e.plugins != nil {
		e.plugins.EmitSubscriptionReconciled(ctx, entry)
	}
	return synclog.OutcomeApplied, nil
}

// Override force-applies a subscription state on behalf of an admin actor,
// regardless of event ordering. The state is stamped with the current
// instant so later-arriving billing events older than the correction stay
// stale.
func (e *Engine) Override(ctx context.Context, actor, principalID string, req OverrideRequest) (*subscription.State, error) {
	now := e.now()
	if err := e.RequireAdmin(ctx, actor, now); err != nil {
		return nil, err
	}
	if principalID == "" {
		return nil, fmt.Errorf("%w: empty target principal", ErrNotFound)
	}
	if !req.Tier.Valid() {
		return nil, fmt.Errorf("%w: unknown tier %q", ErrInvalidEvent, req.Tier)
	}
	if !req.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidEvent, req.Status)
	}

	scope := scopeFromContext(ctx)
	st := &subscription.State{
		TenantID:    scope.tenantID,
		AppID:       scope.appID,
		PrincipalID: principalID,
		Tier:        req.Tier,
		Status:      req.Status,
		EventAt:     now,
		Source:      subscription.SourceOverride,
		UpdatedBy:   actor,
		UpdatedAt:   now,
	}
	if err := e.store.ForceSubscription(ctx, st); err != nil {
		return nil, unavailable(err)
	}
	if err := e.syncSubscriberRole(ctx, st, now); err != nil {
		return nil, err
	}

	e.logger.Info("keeper: subscription overridden",
		"principal_id", principalID,
		"tier", req.Tier,
		"status", req.Status,
		"actor", actor,
		"reason", req.Reason,
	)
	entry := &synclog.Entry{
		ID:          id.NewSyncLogID(),
		TenantID:    scope.tenantID,
		AppID:       scope.appID,
		PrincipalID: principalID,
		Tier:        string(req.Tier),
		Status:      string(req.Status),
		EventAt:     now,
		Outcome:     synclog.OutcomeOverride,
		Reason:      req.Reason,
		Actor:       actor,
		CreatedAt:   now,
	}
	e.journal(ctx, entry)
	if e.plugins != nil {
		e.plugins.EmitSubscriptionReconciled(ctx, entry)
	}
	return st, nil
}

// subscriberSyncPasses caps how often one caller re-settles the subscriber
// role while concurrent reconciles keep moving the stored state.
const subscriberSyncPasses = 8

// syncSubscriberRole couples the subscriber role to the stored subscription
// when Config.SyncSubscriberRole is set. Only grants issued by BillingActor
// are ever revoked.
//
// The role write is not atomic with the state write, so after each write
// the stored state is re-read and the role settled again until the state
// it was derived from is still the stored one. The caller whose role write
// lands last therefore always leaves the role matching the stored state.
func (e *Engine) syncSubscriberRole(ctx context.Context, st *subscription.State, now time.Time) error {
	if !e.config.SyncSubscriberRole {
		return nil
	}

	cur := st
	for pass := 0; pass < subscriberSyncPasses; pass++ {
		if err := e.settleSubscriberRole(ctx, cur, now); err != nil {
			return err
		}

		stored, err := e.store.GetSubscription(ctx, st.TenantID, st.PrincipalID)
		if err != nil {
			return unavailable(err)
		}
		if stored.EventAt.Equal(cur.EventAt) && wantsSubscriber(stored) == wantsSubscriber(cur) {
			return nil
		}
		cur = stored
	}

	e.logger.Warn("keeper: subscriber role did not settle",
		"principal_id", st.PrincipalID,
		"passes", subscriberSyncPasses,
	)
	return unavailable(fmt.Errorf("subscriber role for %s did not settle", st.PrincipalID))
}

func wantsSubscriber(st *subscription.State) bool {
	return st.Tier == subscription.TierPremium && st.Status.Current()
}

func (e *Engine) settleSubscriberRole(ctx context.Context, st *subscription.State, now time.Time) error {
	if wantsSubscriber(st) {
		g := &grant.Grant{
			ID:          id.NewGrantID(),
			TenantID:    st.TenantID,
			AppID:       st.AppID,
			PrincipalID: st.PrincipalID,
			Role:        role.Subscriber,
			GrantedBy:   BillingActor,
			GrantedAt:   now,
			Notes:       "granted by billing reconciliation",
		}
		stored, created, err := e.store.PutGrant(ctx, g)
		if err != nil {
			return unavailable(err)
		}
		if created {
			e.logger.Info("keeper: role granted",
				"principal_id", st.PrincipalID,
				"role", role.Subscriber,
				"granted_by", BillingActor,
				"grant_id", stored.ID.String(),
			)
			if e.plugins != nil {
				e.plugins.EmitRoleGranted(ctx, stored)
			}
		}
		return nil
	}

	_, err := e.revoke(ctx, &grant.Revocation{
		TenantID:    st.TenantID,
		PrincipalID: st.PrincipalID,
		Role:        role.Subscriber,
		RevokedBy:   BillingActor,
		Reason:      fmt.Sprintf("subscription %s/%s", st.Tier, st.Status),
		At:          now,
		IssuedBy:    BillingActor,
	})
	return err
}

func (e *Engine) deliverySeen(ctx context.Context, tenantID, deliveryID string) bool {
	if e.deliveries == nil || deliveryID == "" || e.config.DeliveryTTL <= 0 {
		return false
	}
	return e.deliveries.Seen(ctx, tenantID, deliveryID)
}

func (e *Engine) markDelivery(ctx context.Context, tenantID, deliveryID string) {
	if e.deliveries == nil || deliveryID == "" || e.config.DeliveryTTL <= 0 {
		return
	}
	e.deliveries.Mark(ctx, tenantID, deliveryID, e.config.DeliveryTTL)
}

// journal records a synclog entry. Failures are logged and never fail the
// operation being journaled.
func (e *Engine) journal(ctx context.Context, entry *synclog.Entry) {
	if err := e.store.CreateSyncLog(ctx, entry); err != nil {
		e.logger.Warn("keeper: sync log write failed",
			"principal_id", entry.PrincipalID,
			"outcome", entry.Outcome,
			"error", err,
		)
	}
}

package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/subscription"
)

func (a *API) registerSubscriptionRoutes(router forge.Router) error {
	g := router.Group(a.basePath+"/v1", forge.WithGroupTags("subscriptions"))

	if err := g.GET("/principals/:principalId/subscription", a.getSubscription,
		forge.WithSummary("Get subscription"),
		forge.WithDescription("Returns the stored subscription state of a principal."),
		forge.WithOperationID("getSubscription"),
		forge.WithRequestSchema(PrincipalRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Subscription state", subscription.State{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/principals/:principalId/subscription/override", a.overrideSubscription,
		forge.WithSummary("Override subscription"),
		forge.WithDescription("Force-applies a subscription state regardless of billing event order. Admin only."),
		forge.WithOperationID("overrideSubscription"),
		forge.WithRequestSchema(OverrideSubscriptionRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Subscription state", subscription.State{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.POST("/billing/events", a.reconcile,
		forge.WithSummary("Reconcile billing event"),
		forge.WithDescription("Merges a billing tier-change event. Stale and duplicate deliveries succeed without changing state. Only callers accepted by the billing authorizer may post."),
		forge.WithOperationID("reconcileBillingEvent"),
		forge.WithRequestSchema(BillingEventRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Reconcile outcome", ReconcileResponse{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) getSubscription(ctx forge.Context, _ *PrincipalRequest) (*subscription.State, error) {
	st, err := a.eng.SubscriptionOf(ctx.Context(), a.caller(ctx), ctx.Param("principalId"))
	if err != nil {
		return nil, a.fail(ctx, err)
	}

	return st, ctx.JSON(http.StatusOK, st)
}

func (a *API) overrideSubscription(ctx forge.Context, req *OverrideSubscriptionRequest) (*subscription.State, error) {
	st, err := a.eng.Override(ctx.Context(), a.caller(ctx), ctx.Param("principalId"), keeper.OverrideRequest{
		Tier:   normTier(req.Tier),
		Status: normStatus(req.Status),
		Reason: req.Reason,
	})
	if err != nil {
		return nil, a.fail(ctx, err)
	}

	return st, ctx.JSON(http.StatusOK, st)
}

func (a *API) reconcile(ctx forge.Context, req *BillingEventRequest) (*ReconcileResponse, error) {
	if err := a.authorizeBilling(ctx.Context(), a.caller(ctx)); err != nil {
		return nil, a.fail(ctx, err)
	}

	ev, err := toBillingEvent(req)
	if err != nil {
		return nil, forge.BadRequest(err.Error())
	}

	outcome, err := a.eng.Reconcile(ctx.Context(), ev)
	if err != nil {
		return nil, a.fail(ctx, err)
	}

	resp := &ReconcileResponse{Outcome: outcome}
	return resp, ctx.JSON(http.StatusOK, resp)
}

// toBillingEvent converts the wire form. Known tiers and statuses are
// normalised; unknown ones reach the engine unchanged and are journaled as
// invalid events.
func toBillingEvent(req *BillingEventRequest) (*keeper.BillingEvent, error) {
	ev := &keeper.BillingEvent{
		DeliveryID:  req.DeliveryID,
		PrincipalID: req.PrincipalID,
		Tier:        normTier(req.Tier),
		Status:      normStatus(req.Status),
	}

	ts, err := parseOptionalTime(req.EventTimestamp)
	if err != nil {
		return nil, fmt.Errorf("invalid event_timestamp: %w", err)
	}
	if ts != nil {
		ev.EventTimestamp = *ts
	}

	renewed, err := parseOptionalTime(req.RenewedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid renewed_at: %w", err)
	}
	ev.RenewedAt = renewed
	return ev, nil
}

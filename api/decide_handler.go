package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/keeper"
)

func (a *API) registerDecideRoutes(router forge.Router) error {
	g := router.Group(a.basePath+"/v1/authz", forge.WithGroupTags("authorization"))

	return g.POST("/decide", a.decide,
		forge.WithSummary("Decide capability"),
		forge.WithDescription("Reports whether the calling principal holds the capability. Denials are returned with 200."),
		forge.WithOperationID("authzDecide"),
		forge.WithRequestSchema(DecideRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Decision", keeper.Decision{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) decide(ctx forge.Context, req *DecideRequest) (*keeper.Decision, error) {
	c, err := keeper.ParseCapability(req.Capability)
	if err != nil {
		return nil, a.fail(ctx, err)
	}

	dec, err := a.eng.Decide(ctx.Context(), a.caller(ctx), c)
	if err != nil {
		return nil, a.fail(ctx, err)
	}

	return dec, ctx.JSON(http.StatusOK, dec)
}

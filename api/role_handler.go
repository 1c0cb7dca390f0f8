package api

import (
	"fmt"
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/keeper"
	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/role"
)

func (a *API) registerRoleRoutes(router forge.Router) error {
	g := router.Group(a.basePath+"/v1", forge.WithGroupTags("roles"))

	if err := g.GET("/me/roles", a.myRoles,
		forge.WithSummary("My roles"),
		forge.WithDescription("Returns the active roles and entitlements of the calling principal."),
		forge.WithOperationID("getMyRoles"),
		forge.WithResponseSchema(http.StatusOK, "Roles and entitlements", MeRolesResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/principals/:principalId/roles", a.listRoles,
		forge.WithSummary("List principal roles"),
		forge.WithDescription("Returns the active roles of a principal. Admins may read any principal; others only themselves."),
		forge.WithOperationID("listPrincipalRoles"),
		forge.WithRequestSchema(PrincipalRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Active roles", RolesResponse{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.POST("/principals/:principalId/roles", a.assignRole,
		forge.WithSummary("Assign role"),
		forge.WithDescription("Grants a role to a principal. Re-assigning an active role returns the existing grant."),
		forge.WithOperationID("assignRole"),
		forge.WithRequestSchema(AssignRoleRequest{}),
		forge.WithCreatedResponse(&grant.Grant{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.DELETE("/principals/:principalId/roles/:role", a.removeRole,
		forge.WithSummary("Remove role"),
		forge.WithDescription("Revokes an active role grant. Removing a role that is not held is a no-op."),
		forge.WithOperationID("removeRole"),
		forge.WithRequestSchema(RemoveRoleRequest{}),
		forge.WithNoContentResponse(),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	if err := g.GET("/grants", a.listTenantGrants,
		forge.WithSummary("List grants"),
		forge.WithDescription("Returns the grants of the tenant with optional filters. Admin only."),
		forge.WithOperationID("listGrants"),
		forge.WithRequestSchema(ListGrantsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Grant list", ListResponse[*grant.Grant]{}),
		forge.WithErrorResponses(),
	); err != nil {
		return err
	}

	return g.GET("/principals/:principalId/grants", a.listGrants,
		forge.WithSummary("Grant history"),
		forge.WithDescription("Returns every grant of a principal, including revoked and expired ones."),
		forge.WithOperationID("listPrincipalGrants"),
		forge.WithRequestSchema(PrincipalRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Grant history", []*grant.Grant{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) myRoles(ctx forge.Context, _ *struct{}) (*MeRolesResponse, error) {
	principal := a.caller(ctx)
	if principal == "" {
		return nil, a.fail(ctx, keeper.ErrUnauthenticated)
	}

	ent, roles, err := a.eng.Entitlements(ctx.Context(), principal, a.eng.Now())
	if err != nil {
		return nil, a.fail(ctx, err)
	}

	resp := &MeRolesResponse{
		PrincipalID:  principal,
		Roles:        roles,
		IsAdmin:      ent.IsAdmin,
		Entitlements: ent,
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) listRoles(ctx forge.Context, _ *PrincipalRequest) (*RolesResponse, error) {
	target := ctx.Param("principalId")

	roles, err := a.eng.RolesOf(ctx.Context(), a.caller(ctx), target)
	if err != nil {
		return nil, a.fail(ctx, err)
	}

	resp := &RolesResponse{PrincipalID: target, Roles: roles}
	return resp, ctx.JSON(http.StatusOK, resp)
}

func (a *API) assignRole(ctx forge.Context, req *AssignRoleRequest) (*grant.Grant, error) {
	if req.Role == "" {
		return nil, forge.BadRequest("role is required")
	}

	expiresAt, err := parseOptionalTime(req.ExpiresAt)
	if err != nil {
		return nil, forge.BadRequest(fmt.Sprintf("invalid expires_at: %v", err))
	}

	g, err := a.eng.Assign(ctx.Context(), a.caller(ctx), ctx.Param("principalId"), req.Role, keeper.AssignOptions{
		ExpiresAt: expiresAt,
		Notes:     req.Notes,
	})
	if err != nil {
		return nil, a.fail(ctx, err)
	}

	return g, ctx.JSON(http.StatusCreated, g)
}

func (a *API) removeRole(ctx forge.Context, req *RemoveRoleRequest) (*struct{}, error) {
	err := a.eng.Remove(ctx.Context(), a.caller(ctx), ctx.Param("principalId"), ctx.Param("role"), req.Reason)
	if err != nil {
		return nil, a.fail(ctx, err)
	}

	return nil, ctx.NoContent(http.StatusNoContent)
}

func (a *API) listGrants(ctx forge.Context, _ *PrincipalRequest) ([]*grant.Grant, error) {
	grants, err := a.eng.GrantHistory(ctx.Context(), a.caller(ctx), ctx.Param("principalId"))
	if err != nil {
		return nil, a.fail(ctx, err)
	}

	return grants, ctx.JSON(http.StatusOK, grants)
}

func (a *API) listTenantGrants(ctx forge.Context, req *ListGrantsRequest) (*ListResponse[*grant.Grant], error) {
	filter := grant.ListFilter{
		PrincipalID: req.PrincipalID,
		Role:        role.Name(req.Role),
		GrantedBy:   req.GrantedBy,
		Limit:       defaultLimit(req.Limit),
		Offset:      req.Offset,
	}
	if req.Active {
		now := a.eng.Now()
		filter.ActiveAt = &now
	}

	grants, total, err := a.eng.ListGrants(ctx.Context(), a.caller(ctx), filter)
	if err != nil {
		return nil, a.fail(ctx, err)
	}

	resp := &ListResponse[*grant.Grant]{
		Items:  grants,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

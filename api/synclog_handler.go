package api

import (
	"net/http"

	"github.com/xraph/forge"

	"github.com/xraph/keeper/synclog"
)

func (a *API) registerSyncLogRoutes(router forge.Router) error {
	g := router.Group(a.basePath+"/v1", forge.WithGroupTags("sync-logs"))

	return g.GET("/sync-logs", a.listSyncLogs,
		forge.WithSummary("Query sync logs"),
		forge.WithDescription("Returns the billing reconciliation journal with optional filters. Admin only."),
		forge.WithOperationID("listSyncLogs"),
		forge.WithRequestSchema(ListSyncLogsRequest{}),
		forge.WithResponseSchema(http.StatusOK, "Sync log list", ListResponse[*synclog.Entry]{}),
		forge.WithErrorResponses(),
	)
}

func (a *API) listSyncLogs(ctx forge.Context, req *ListSyncLogsRequest) (*ListResponse[*synclog.Entry], error) {
	filter := synclog.QueryFilter{
		PrincipalID: req.PrincipalID,
		DeliveryID:  req.DeliveryID,
		Outcome:     synclog.Outcome(req.Outcome),
		Limit:       defaultLimit(req.Limit),
		Offset:      req.Offset,
	}

	var err error
	if filter.After, err = parseOptionalTime(req.After); err != nil {
		return nil, forge.BadRequest("invalid after timestamp")
	}
	if filter.Before, err = parseOptionalTime(req.Before); err != nil {
		return nil, forge.BadRequest("invalid before timestamp")
	}

	entries, total, err := a.eng.SyncLogs(ctx.Context(), a.caller(ctx), filter)
	if err != nil {
		return nil, a.fail(ctx, err)
	}

	resp := &ListResponse[*synclog.Entry]{
		Items:  entries,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	return resp, ctx.JSON(http.StatusOK, resp)
}

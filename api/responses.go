package api

import (
	"github.com/xraph/keeper"
	"github.com/xraph/keeper/role"
	"github.com/xraph/keeper/synclog"
)

// ErrorResponse is the body written for 401 and 503 responses.
type ErrorResponse struct {
	Error string `json:"error" description:"Error message"`
	Code  int    `json:"code" description:"HTTP status code"`
}

// MeRolesResponse describes the calling principal.
type MeRolesResponse struct {
	PrincipalID  string              `json:"principal_id" description:"Calling principal"`
	Roles        []role.Name         `json:"roles" description:"Active roles"`
	IsAdmin      bool                `json:"is_admin" description:"Whether the principal is an admin"`
	Entitlements keeper.Entitlements `json:"entitlements" description:"Derived entitlements"`
}

// RolesResponse lists the active roles of a principal.
type RolesResponse struct {
	PrincipalID string      `json:"principal_id" description:"Principal ID"`
	Roles       []role.Name `json:"roles" description:"Active roles"`
}

// ReconcileResponse reports what happened to a billing event.
type ReconcileResponse struct {
	Outcome synclog.Outcome `json:"outcome" description:"applied, stale or duplicate"`
}

// ListResponse wraps a list of items with pagination metadata.
type ListResponse[T any] struct {
	Items  []T   `json:"items" description:"List of items"`
	Total  int64 `json:"total" description:"Total count"`
	Limit  int   `json:"limit" description:"Page size"`
	Offset int   `json:"offset" description:"Page offset"`
}

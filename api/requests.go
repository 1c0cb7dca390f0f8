package api

// ──────────────────────────────────────────────────
// Decision requests
// ──────────────────────────────────────────────────

// DecideRequest asks whether the calling principal holds a capability.
type DecideRequest struct {
	Capability string `json:"capability" description:"Capability to check (admin, moderator, premium)"`
}

// ──────────────────────────────────────────────────
// Role requests
// ──────────────────────────────────────────────────

// PrincipalRequest is the path parameter shared by principal routes.
type PrincipalRequest struct {
	PrincipalID string `path:"principalId" description:"Principal ID"`
}

// AssignRoleRequest is the body for granting a role.
type AssignRoleRequest struct {
	PrincipalID string `path:"principalId" description:"Principal ID"`
	Role        string `json:"role" description:"Role name (admin, moderator, subscriber, donator, tester)"`
	ExpiresAt   string `json:"expires_at,omitempty" description:"Expiry timestamp (RFC3339)"`
	Notes       string `json:"notes,omitempty" description:"Free-form notes"`
}

// RemoveRoleRequest holds the parameters for revoking a role.
type RemoveRoleRequest struct {
	PrincipalID string `path:"principalId" description:"Principal ID"`
	Role        string `path:"role" description:"Role name"`
	Reason      string `query:"reason" description:"Revocation reason"`
}

// ListGrantsRequest holds query parameters for the tenant grant listing.
type ListGrantsRequest struct {
	PrincipalID string `query:"principal_id" description:"Filter by principal ID"`
	Role        string `query:"role" description:"Filter by role name"`
	GrantedBy   string `query:"granted_by" description:"Filter by issuing actor"`
	Active      bool   `query:"active" description:"Only grants active now"`
	Limit       int    `query:"limit" description:"Maximum results"`
	Offset      int    `query:"offset" description:"Results to skip"`
}

// ──────────────────────────────────────────────────
// Subscription requests
// ──────────────────────────────────────────────────

// BillingEventRequest is a tier-change notification from the billing
// provider.
type BillingEventRequest struct {
	DeliveryID     string `json:"delivery_id,omitempty" description:"Provider delivery ID used for deduplication"`
	PrincipalID    string `json:"principal_id" description:"Principal ID"`
	Tier           string `json:"tier" description:"Billing tier (basic, premium)"`
	Status         string `json:"status" description:"Subscription status"`
	EventTimestamp string `json:"event_timestamp" description:"Provider event time (RFC3339)"`
	RenewedAt      string `json:"renewed_at,omitempty" description:"Last renewal time (RFC3339)"`
}

// OverrideSubscriptionRequest is an operator correction of a subscription.
type OverrideSubscriptionRequest struct {
	PrincipalID string `path:"principalId" description:"Principal ID"`
	Tier        string `json:"tier" description:"Billing tier (basic, premium)"`
	Status      string `json:"status" description:"Subscription status"`
	Reason      string `json:"reason,omitempty" description:"Why the state is corrected"`
}

// ──────────────────────────────────────────────────
// Sync log requests
// ──────────────────────────────────────────────────

// ListSyncLogsRequest holds query parameters for the synchronizer journal.
type ListSyncLogsRequest struct {
	PrincipalID string `query:"principal_id" description:"Filter by principal ID"`
	DeliveryID  string `query:"delivery_id" description:"Filter by delivery ID"`
	Outcome     string `query:"outcome" description:"Filter by outcome"`
	After       string `query:"after" description:"After timestamp (RFC3339)"`
	Before      string `query:"before" description:"Before timestamp (RFC3339)"`
	Limit       int    `query:"limit" description:"Maximum results"`
	Offset      int    `query:"offset" description:"Results to skip"`
}

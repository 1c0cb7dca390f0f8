// Package synclog defines the journal Entry written for every billing
// reconciliation attempt.
package synclog

import (
	"time"

	"github.com/xraph/keeper/id"
)

// Outcome is what reconciliation did with an event.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeStale     Outcome = "stale"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeInvalid   Outcome = "invalid"
	OutcomeOverride  Outcome = "override"
)

// Entry is a single reconciliation journal record.
type Entry struct {
	ID          id.SyncLogID `json:"id" db:"id"`
	TenantID    string       `json:"tenant_id" db:"tenant_id"`
	AppID       string       `json:"app_id" db:"app_id"`
	PrincipalID string       `json:"principal_id" db:"principal_id"`
	DeliveryID  string       `json:"delivery_id,omitempty" db:"delivery_id"`
	Tier        string       `json:"tier" db:"tier"`
	Status      string       `json:"status" db:"status"`
	EventAt     time.Time    `json:"event_at" db:"event_at"`
	Outcome     Outcome      `json:"outcome" db:"outcome"`
	Reason      string       `json:"reason,omitempty" db:"reason"`
	Actor       string       `json:"actor,omitempty" db:"actor"`
	CreatedAt   time.Time    `json:"created_at" db:"created_at"`
}

// QueryFilter contains filters for querying journal entries.
type QueryFilter struct {
	TenantID    string     `json:"tenant_id,omitempty"`
	PrincipalID string     `json:"principal_id,omitempty"`
	DeliveryID  string     `json:"delivery_id,omitempty"`
	Outcome     Outcome    `json:"outcome,omitempty"`
	After       *time.Time `json:"after,omitempty"`
	Before      *time.Time `json:"before,omitempty"`
	Limit       int        `json:"limit,omitempty"`
	Offset      int        `json:"offset,omitempty"`
}

// Package subscription defines the billing-owned subscription State that
// Keeper reconciles from billing notifications.
package subscription

import (
	"fmt"
	"strings"
	"time"
)

// Tier is the billing tier of a principal.
type Tier string

const (
	TierBasic   Tier = "basic"
	TierPremium Tier = "premium"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool { return t == TierBasic || t == TierPremium }

// ParseTier normalises s into a Tier.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("subscription: unknown tier %q", s)
	}
	return t, nil
}

// Status is the billing status of a subscription.
type Status string

// Well-known billing statuses.
const (
	StatusActive            Status = "active"
	StatusTrialing          Status = "trialing"
	StatusPastDue           Status = "past_due"
	StatusCanceled          Status = "canceled"
	StatusUnpaid            Status = "unpaid"
	StatusIncomplete        Status = "incomplete"
	StatusIncompleteExpired Status = "incomplete_expired"
	StatusPaused            Status = "paused"
)

var statuses = map[Status]struct{}{
	StatusActive:            {},
	StatusTrialing:          {},
	StatusPastDue:           {},
	StatusCanceled:          {},
	StatusUnpaid:            {},
	StatusIncomplete:        {},
	StatusIncompleteExpired: {},
	StatusPaused:            {},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := statuses[s]
	return ok
}

// Current reports whether the status keeps a subscription in good standing.
func (s Status) Current() bool { return s == StatusActive || s == StatusTrialing }

// ParseStatus normalises s into a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("subscription: unknown status %q", s)
	}
	return st, nil
}

// Source records which path last wrote a State.
type Source string

const (
	// SourceBilling is a state written by reconciling a billing event.
	SourceBilling Source = "billing"

	// SourceOverride is a state force-applied by an operator.
	SourceOverride Source = "override"
)

// State is the last known subscription of a principal within a tenant.
// EventAt is the timestamp of the notification that produced it and is the
// ordering key for reconciliation; arrival time plays no part.
type State struct {
	TenantID    string     `json:"tenant_id" db:"tenant_id"`
	AppID       string     `json:"app_id" db:"app_id"`
	PrincipalID string     `json:"principal_id" db:"principal_id"`
	Tier        Tier       `json:"tier" db:"tier"`
	Status      Status     `json:"status" db:"status"`
	RenewedAt   *time.Time `json:"renewed_at,omitempty" db:"renewed_at"`
	EventAt     time.Time  `json:"event_at" db:"event_at"`
	Source      Source     `json:"source" db:"source"`
	UpdatedBy   string     `json:"updated_by,omitempty" db:"updated_by"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// Supersedes reports whether s may replace prev under last-writer-wins by
// event time. Equal timestamps apply, which keeps redelivery idempotent.
func (s *State) Supersedes(prev *State) bool {
	if prev == nil {
		return true
	}
	return !s.EventAt.Before(prev.EventAt)
}

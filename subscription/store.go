package subscription

import "context"

// Store defines persistence operations for subscription states.
type Store interface {
	// GetSubscription returns the state of a principal, or an error
	// wrapping store.ErrNotFound when none was ever reconciled.
	GetSubscription(ctx context.Context, tenantID, principalID string) (*State, error)

	// ApplySubscription upserts s keyed on (tenant, principal) only when
	// s.EventAt is not older than the stored EventAt. It reports whether the
	// write happened. The comparison and the write are one atomic operation.
	ApplySubscription(ctx context.Context, s *State) (applied bool, err error)

	// ForceSubscription upserts s regardless of event ordering.
	ForceSubscription(ctx context.Context, s *State) error
}

package keeper

import "errors"

var (
	// ErrUnauthenticated is returned when no principal identifier is present.
	ErrUnauthenticated = errors.New("keeper: unauthenticated")

	// ErrForbidden is returned when the principal lacks the required capability.
	ErrForbidden = errors.New("keeper: forbidden")

	// ErrInvalidRole is returned for a role name outside the enumeration.
	ErrInvalidRole = errors.New("keeper: invalid role")

	// ErrNotFound is returned when a target principal or record is absent.
	ErrNotFound = errors.New("keeper: not found")

	// ErrStoreUnavailable is returned when the store fails. It is never
	// retried internally.
	ErrStoreUnavailable = errors.New("keeper: store unavailable")

	// ErrInvalidEvent is returned for a malformed billing event. It is
	// terminal for that event.
	ErrInvalidEvent = errors.New("keeper: invalid billing event")

	// ErrInvalidExpiry is returned when a grant expiry is not in the future.
	ErrInvalidExpiry = errors.New("keeper: expiry must be in the future")

	// ErrInvalidCapability is returned for an unknown capability.
	ErrInvalidCapability = errors.New("keeper: invalid capability")
)

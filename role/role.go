// Package role defines the closed set of role names a principal can hold.
//
// Role names are an enumeration, not data: there is no role table and no way
// to add a role at runtime. Anything outside the set is rejected before it
// can reach a store.
package role

import (
	"errors"
	"fmt"
	"strings"
)

// Name is a role name from the closed enumeration.
type Name string

const (
	// Admin may manage grants and subscriptions for every principal.
	Admin Name = "admin"

	// Moderator may moderate content. Admins are moderators implicitly.
	Moderator Name = "moderator"

	// Subscriber grants premium independently of billing tier.
	Subscriber Name = "subscriber"

	// Donator marks principals who donated.
	Donator Name = "donator"

	// Tester marks principals enrolled in pre-release features.
	Tester Name = "tester"
)

// ErrUnknown is returned when a role name is outside the enumeration.
var ErrUnknown = errors.New("role: unknown role name")

// all lists every role in enumeration order.
var all = []Name{Admin, Moderator, Subscriber, Donator, Tester}

// All returns every role name in enumeration order.
func All() []Name {
	out := make([]Name, len(all))
	copy(out, all)
	return out
}

// Parse normalises s and returns the matching role name.
func Parse(s string) (Name, error) {
	n := Name(strings.ToLower(strings.TrimSpace(s)))
	if !n.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknown, s)
	}
	return n, nil
}

// Valid reports whether n is part of the enumeration.
func (n Name) Valid() bool {
	for _, r := range all {
		if r == n {
			return true
		}
	}
	return false
}

func (n Name) String() string { return string(n) }

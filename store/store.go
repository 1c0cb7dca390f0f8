// Package store defines the aggregate persistence interface. Each subsystem
// (grant, subscription, synclog) defines its own store interface. The
// composite Store composes them all.
// Backends: Postgres, SQLite, MongoDB, and Memory.
package store

import (
	"context"
	"errors"

	"github.com/xraph/keeper/grant"
	"github.com/xraph/keeper/subscription"
	"github.com/xraph/keeper/synclog"
)

// ErrNotFound is wrapped by every backend when a requested record does not
// exist.
var ErrNotFound = errors.New("store: not found")

// Store is the aggregate persistence interface.
// A single backend (postgres, sqlite, mongo, memory) implements all of them.
type Store interface {
	grant.Store
	subscription.Store
	synclog.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}

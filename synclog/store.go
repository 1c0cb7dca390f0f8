package synclog

import (
	"context"
	"time"
)

// Store defines persistence operations for the reconciliation journal.
type Store interface {
	// CreateSyncLog persists a new journal entry.
	CreateSyncLog(ctx context.Context, e *Entry) error

	// ListSyncLogs returns entries matching the filter, newest first.
	ListSyncLogs(ctx context.Context, filter *QueryFilter) ([]*Entry, error)

	// CountSyncLogs returns the number of entries matching the filter.
	CountSyncLogs(ctx context.Context, filter *QueryFilter) (int64, error)

	// PurgeSyncLogs removes entries created before the given time.
	PurgeSyncLogs(ctx context.Context, before time.Time) (int64, error)
}

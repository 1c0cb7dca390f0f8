package keeper

import (
	"context"
	"time"
)

// PurgeSyncLogs removes synclog entries older than SyncLogRetention across
// all tenants. It is a no-op when no retention is configured.
func (e *Engine) PurgeSyncLogs(ctx context.Context) (int64, error) {
	if e.config.SyncLogRetention <= 0 {
		return 0, nil
	}
	before := e.now().Add(-e.config.SyncLogRetention)
	n, err := e.store.PurgeSyncLogs(ctx, before)
	if err != nil {
		return 0, unavailable(err)
	}
	if n > 0 {
		e.logger.Info("keeper: sync logs purged",
			"count", n,
			"before", before,
		)
	}
	return n, nil
}

func (e *Engine) purgeLoop(ctx context.Context) {
	defer close(e.purgeDone)

	ticker := time.NewTicker(e.config.purgeInterval())
	defer ticker.Stop()

	for {
		if _, err := e.PurgeSyncLogs(ctx); err != nil && ctx.Err() == nil {
			e.logger.Warn("keeper: sync log purge failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

package sqlite

// Time columns are declared TIMESTAMP so the driver scans them back into
// time.Time. Values are always written in UTC with one layout, so comparing
// the stored text orders rows by time.

const createGrantsTable = `
CREATE TABLE IF NOT EXISTS keeper_grants (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    app_id          TEXT NOT NULL DEFAULT '',
    principal_id    TEXT NOT NULL,
    role            TEXT NOT NULL CHECK (role IN ('admin', 'moderator', 'subscriber', 'donator', 'tester')),
    granted_by      TEXT NOT NULL,
    granted_at      TIMESTAMP NOT NULL,
    expires_at      TIMESTAMP,
    notes           TEXT NOT NULL DEFAULT '',
    revoked_at      TIMESTAMP,
    revoked_by      TEXT NOT NULL DEFAULT '',
    revoke_reason   TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_keeper_grants_unrevoked
    ON keeper_grants (tenant_id, principal_id, role) WHERE revoked_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_keeper_grants_principal
    ON keeper_grants (tenant_id, principal_id, granted_at);
CREATE INDEX IF NOT EXISTS idx_keeper_grants_granted_by
    ON keeper_grants (tenant_id, granted_by);
`

const createSubscriptionsTable = `
CREATE TABLE IF NOT EXISTS keeper_subscriptions (
    tenant_id       TEXT NOT NULL,
    principal_id    TEXT NOT NULL,
    app_id          TEXT NOT NULL DEFAULT '',
    tier            TEXT NOT NULL,
    status          TEXT NOT NULL,
    renewed_at      TIMESTAMP,
    event_at        TIMESTAMP NOT NULL,
    source          TEXT NOT NULL,
    updated_by      TEXT NOT NULL DEFAULT '',
    updated_at      TIMESTAMP NOT NULL,

    PRIMARY KEY (tenant_id, principal_id)
);
`

const createSyncLogsTable = `
CREATE TABLE IF NOT EXISTS keeper_sync_logs (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    app_id          TEXT NOT NULL DEFAULT '',
    principal_id    TEXT NOT NULL DEFAULT '',
    delivery_id     TEXT NOT NULL DEFAULT '',
    tier            TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT '',
    event_at        TIMESTAMP,
    outcome         TEXT NOT NULL,
    reason          TEXT NOT NULL DEFAULT '',
    actor           TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMP NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_keeper_sync_logs_tenant ON keeper_sync_logs (tenant_id, created_at);
CREATE INDEX IF NOT EXISTS idx_keeper_sync_logs_principal ON keeper_sync_logs (tenant_id, principal_id);
CREATE INDEX IF NOT EXISTS idx_keeper_sync_logs_delivery ON keeper_sync_logs (tenant_id, delivery_id);
`

// grantConflict names the partial unique index target; SQLite requires the
// WHERE clause to match the index predicate.
const grantConflict = `(tenant_id, principal_id, role) WHERE revoked_at IS NULL DO NOTHING`

const subscriptionSet = `SET app_id = excluded.app_id,
    tier = excluded.tier,
    status = excluded.status,
    renewed_at = excluded.renewed_at,
    event_at = excluded.event_at,
    source = excluded.source,
    updated_by = excluded.updated_by,
    updated_at = excluded.updated_at`

const subscriptionApplyConflict = `(tenant_id, principal_id) DO UPDATE ` + subscriptionSet + `
    WHERE keeper_subscriptions.event_at <= excluded.event_at`

const subscriptionForceConflict = `(tenant_id, principal_id) DO UPDATE ` + subscriptionSet

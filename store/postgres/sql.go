package postgres

// Schema and conflict clauses shared by the store and its migrations.

const createGrantsTable = `
CREATE TABLE IF NOT EXISTS keeper_grants (
    id              TEXT PRIMARY KEY,
    tenant_id       TEXT NOT NULL,
    app_id          TEXT NOT NULL DEFAULT '',
    principal_id    TEXT NOT NULL,
    role            TEXT NOT NULL CHECK (role IN ('admin', 'moderator', 'subscriber', 'donator', 'tester')),
    granted_by      TEXT NOT NULL,
    granted_at      TIMESTAMPTZ NOT NULL,
    expires_at      TIMESTAMPTZ,
    notes           TEXT NOT NULL DEFAULT '',
    revoked_at      TIMESTAMPTZ,
    revoked_by      TEXT NOT NULL DEFAULT '',
    revoke_reason   TEXT NOT NULL DEFAULT ''
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_keeper_grants_unrevoked
    ON keeper_grants (tenant_id, principal_id, role) WHERE revoked_at IS NULL;
CREATE INDEX IF NOT EXISTS idx_keeper_grants_principal
    ON keeper_grants (tenant_id, principal_id, granted_at DESC);
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
    renewed_at      TIMESTAMPTZ,
    event_at        TIMESTAMPTZ NOT NULL,
    source          TEXT NOT NULL,
    updated_by      TEXT NOT NULL DEFAULT '',
    updated_at      TIMESTAMPTZ NOT NULL,

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
    event_at        TIMESTAMPTZ,
    outcome         TEXT NOT NULL,
    reason          TEXT NOT NULL DEFAULT '',
    actor           TEXT NOT NULL DEFAULT '',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_keeper_sync_logs_tenant ON keeper_sync_logs (tenant_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_keeper_sync_logs_principal ON keeper_sync_logs (tenant_id, principal_id);
CREATE INDEX IF NOT EXISTS idx_keeper_sync_logs_delivery ON keeper_sync_logs (tenant_id, delivery_id);
`

// grantConflict skips the insert when an unrevoked grant for the same
// (tenant, principal, role) exists. It targets uq_keeper_grants_unrevoked.
const grantConflict = `(tenant_id, principal_id, role) WHERE revoked_at IS NULL DO NOTHING`

const subscriptionSet = `SET app_id = EXCLUDED.app_id,
    tier = EXCLUDED.tier,
    status = EXCLUDED.status,
    renewed_at = EXCLUDED.renewed_at,
    event_at = EXCLUDED.event_at,
    source = EXCLUDED.source,
    updated_by = EXCLUDED.updated_by,
    updated_at = EXCLUDED.updated_at`

// subscriptionApplyConflict only overwrites a stored state whose event_at
// is not newer than the incoming one. A skipped update affects zero rows.
const subscriptionApplyConflict = `(tenant_id, principal_id) DO UPDATE ` + subscriptionSet + `
    WHERE keeper_subscriptions.event_at <= EXCLUDED.event_at`

// subscriptionForceConflict overwrites unconditionally.
const subscriptionForceConflict = `(tenant_id, principal_id) DO UPDATE ` + subscriptionSet

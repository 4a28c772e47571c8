package store

import "fmt"

// SQLiteDialect implements Dialect for SQLite via modernc.org/sqlite.
// UUIDs are generated in application code; booleans come back as integers.
type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string       { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }

func (d *SQLiteDialect) Placeholder(index int) string {
	return fmt.Sprintf("?%d", index)
}

func (d *SQLiteDialect) NewParamBuilder() ParamBuilder {
	return &sqliteParamBuilder{}
}

func (d *SQLiteDialect) NowExpr() string { return "CURRENT_TIMESTAMP" }

func (d *SQLiteDialect) NeedsBoolFix() bool { return true }

func (d *SQLiteDialect) SystemTablesSQL() string {
	return `
CREATE TABLE IF NOT EXISTS _integrations (
    id              TEXT PRIMARY KEY,
    name            TEXT NOT NULL,
    provider        TEXT NOT NULL,
    crm_provider    TEXT NOT NULL,
    access_token    TEXT NOT NULL DEFAULT '',
    webhook_secret  TEXT NOT NULL DEFAULT '',
    settings        TEXT NOT NULL DEFAULT '{}',
    field_mappings  TEXT NOT NULL DEFAULT '[]',
    trigger_filters TEXT NOT NULL DEFAULT '[]',
    workflows       TEXT NOT NULL DEFAULT '[]',
    crm_schema      TEXT NOT NULL DEFAULT '{}',
    notifications   TEXT NOT NULL DEFAULT '{}',
    active          INTEGER NOT NULL DEFAULT 1,
    created_at      TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at      TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS _webhook_events (
    id             TEXT PRIMARY KEY,
    integration_id TEXT NOT NULL,
    provider       TEXT NOT NULL,
    event_type     TEXT NOT NULL,
    payload        TEXT NOT NULL DEFAULT '{}',
    signature      TEXT NOT NULL DEFAULT '',
    processed      INTEGER NOT NULL DEFAULT 0,
    created_at     TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_webhook_events_integration
    ON _webhook_events (integration_id, created_at);

CREATE TABLE IF NOT EXISTS _sync_events (
    id             TEXT PRIMARY KEY,
    integration_id TEXT NOT NULL,
    event_type     TEXT NOT NULL,
    status         TEXT NOT NULL DEFAULT 'pending',
    source_payload TEXT NOT NULL DEFAULT '{}',
    mapped_payload TEXT NOT NULL DEFAULT '{}',
    external_id    TEXT NOT NULL DEFAULT '',
    error_message  TEXT NOT NULL DEFAULT '',
    retry_count    INTEGER NOT NULL DEFAULT 0,
    max_retries    INTEGER NOT NULL DEFAULT 3,
    processed_at   TEXT,
    created_at     TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at     TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_sync_events_status
    ON _sync_events (status, updated_at);
`
}

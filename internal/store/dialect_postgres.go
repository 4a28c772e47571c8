package store

import "fmt"

// PostgresDialect implements Dialect for PostgreSQL via the pgx stdlib driver.
type PostgresDialect struct{}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "pgx" }

func (d *PostgresDialect) Placeholder(index int) string {
	return fmt.Sprintf("$%d", index)
}

func (d *PostgresDialect) NewParamBuilder() ParamBuilder {
	return &pgParamBuilder{}
}

func (d *PostgresDialect) NowExpr() string { return "NOW()" }

func (d *PostgresDialect) NeedsBoolFix() bool { return false }

func (d *PostgresDialect) SystemTablesSQL() string {
	return `
CREATE TABLE IF NOT EXISTS _integrations (
    id              UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    name            TEXT NOT NULL,
    provider        TEXT NOT NULL,
    crm_provider    TEXT NOT NULL,
    access_token    TEXT NOT NULL DEFAULT '',
    webhook_secret  TEXT NOT NULL DEFAULT '',
    settings        JSONB NOT NULL DEFAULT '{}',
    field_mappings  JSONB NOT NULL DEFAULT '[]',
    trigger_filters JSONB NOT NULL DEFAULT '[]',
    workflows       JSONB NOT NULL DEFAULT '[]',
    crm_schema      JSONB NOT NULL DEFAULT '{}',
    notifications   JSONB NOT NULL DEFAULT '{}',
    active          BOOLEAN NOT NULL DEFAULT TRUE,
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS _webhook_events (
    id             UUID PRIMARY KEY,
    integration_id UUID NOT NULL,
    provider       TEXT NOT NULL,
    event_type     TEXT NOT NULL,
    payload        JSONB NOT NULL DEFAULT '{}',
    signature      TEXT NOT NULL DEFAULT '',
    processed      BOOLEAN NOT NULL DEFAULT FALSE,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_webhook_events_integration
    ON _webhook_events (integration_id, created_at);

CREATE TABLE IF NOT EXISTS _sync_events (
    id             UUID PRIMARY KEY,
    integration_id UUID NOT NULL,
    event_type     TEXT NOT NULL,
    status         TEXT NOT NULL DEFAULT 'pending',
    source_payload JSONB NOT NULL DEFAULT '{}',
    mapped_payload JSONB NOT NULL DEFAULT '{}',
    external_id    TEXT NOT NULL DEFAULT '',
    error_message  TEXT NOT NULL DEFAULT '',
    retry_count    INTEGER NOT NULL DEFAULT 0,
    max_retries    INTEGER NOT NULL DEFAULT 3,
    processed_at   TIMESTAMPTZ,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_sync_events_status
    ON _sync_events (status, updated_at);
`
}

package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Schema names used by the store.
const (
	SchemaMetadata = "_metadata"
	SchemaRaw      = "raw"
	SchemaStaging  = "staging"
	SchemaBusiness = "business"
	SchemaMetrics  = "metrics"
	SchemaCache    = "cache"
)

// AllSchemas lists every schema created on initialization.
var AllSchemas = []string{SchemaMetadata, SchemaRaw, SchemaStaging, SchemaBusiness, SchemaMetrics, SchemaCache}

// UserSchemas are the schemas exposed to ad-hoc and natural-language queries.
var UserSchemas = []string{SchemaStaging, SchemaBusiness, SchemaMetrics, SchemaCache}

// Migrations adds columns introduced after the first release. Each runs
// individually and failures are ignored.
var Migrations = []string{
	`ALTER TABLE _metadata.import_log ADD COLUMN IF NOT EXISTS duration_ms BIGINT DEFAULT 0`,
	`ALTER TABLE _metadata.import_log ADD COLUMN IF NOT EXISTS source_table VARCHAR`,
	`ALTER TABLE _metadata.data_freshness ADD COLUMN IF NOT EXISTS source_table VARCHAR`,
	`ALTER TABLE _metadata.model_builds ADD COLUMN IF NOT EXISTS revision VARCHAR DEFAULT ''`,
}

// Schema defines the metadata tables.
const Schema = `
CREATE TABLE IF NOT EXISTS _metadata.sql_server_connection (
    server VARCHAR NOT NULL,
    database_name VARCHAR,
    schema_name VARCHAR,
    server_version VARCHAR,
    connected_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS _metadata.import_log (
    run_id VARCHAR NOT NULL,
    table_name VARCHAR NOT NULL,
    source_table VARCHAR,
    imported_at TIMESTAMP NOT NULL,
    row_count BIGINT DEFAULT 0,
    duration_ms BIGINT DEFAULT 0,
    status VARCHAR NOT NULL
);

CREATE TABLE IF NOT EXISTS _metadata.data_freshness (
    table_name VARCHAR PRIMARY KEY,
    source_table VARCHAR,
    last_sync TIMESTAMP NOT NULL,
    row_count BIGINT DEFAULT 0,
    status VARCHAR NOT NULL
);

CREATE TABLE IF NOT EXISTS _metadata.materialized_views (
    view_name VARCHAR PRIMARY KEY,
    source_view VARCHAR NOT NULL,
    refreshed_at TIMESTAMP NOT NULL,
    row_count BIGINT DEFAULT 0,
    status VARCHAR NOT NULL
);

CREATE TABLE IF NOT EXISTS _metadata.data_quality (
    check_id VARCHAR NOT NULL,
    table_name VARCHAR NOT NULL,
    check_name VARCHAR NOT NULL,
    checked_at TIMESTAMP NOT NULL,
    passed BOOLEAN NOT NULL,
    expected BIGINT,
    actual BIGINT,
    details VARCHAR
);

CREATE TABLE IF NOT EXISTS _metadata.model_builds (
    build_id VARCHAR NOT NULL,
    layer VARCHAR NOT NULL,
    model VARCHAR NOT NULL,
    file_path VARCHAR NOT NULL,
    built_at TIMESTAMP NOT NULL,
    duration_ms BIGINT DEFAULT 0,
    status VARCHAR NOT NULL,
    revision VARCHAR DEFAULT ''
);
`

// CreateSchema creates the schemas and metadata tables, then runs migrations.
// A failing migration is logged at debug and the rest still run.
func CreateSchema(ctx context.Context, q Querier, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	for _, name := range AllSchemas {
		if _, err := q.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+QuoteIdent(name)); err != nil {
			return fmt.Errorf("failed to create schema %s: %w", name, err)
		}
	}

	if _, err := q.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create metadata tables: %w", err)
	}

	for _, m := range Migrations {
		if _, err := q.ExecContext(ctx, m); err != nil {
			log.Debug("migration skipped", zap.String("statement", m), zap.Error(err))
		}
	}
	return nil
}

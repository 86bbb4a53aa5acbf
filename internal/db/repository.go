package db

import (
	"context"
	"database/sql"
	"fmt"
)

// ==================== Source Connection ====================

// RecordConnection stores a successful source connection probe.
func RecordConnection(ctx context.Context, q Querier, c SourceConnection) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO _metadata.sql_server_connection (server, database_name, schema_name, server_version, connected_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.Server, c.Database, c.Schema, c.ServerVersion, c.ConnectedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to record connection: %w", err)
	}
	return nil
}

// LastConnection returns the most recent connection probe, or nil.
func LastConnection(ctx context.Context, q Querier) (*SourceConnection, error) {
	var c SourceConnection
	var database, schema, version sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT server, database_name, schema_name, server_version, connected_at
		FROM _metadata.sql_server_connection
		ORDER BY connected_at DESC
		LIMIT 1
	`).Scan(&c.Server, &database, &schema, &version, &c.ConnectedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read connection: %w", err)
	}
	c.Database, c.Schema, c.ServerVersion = database.String, schema.String, version.String
	return &c, nil
}

// ==================== Import Log ====================

// AppendImportLog adds one sync attempt to the import log.
func AppendImportLog(ctx context.Context, q Querier, e ImportLogEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO _metadata.import_log (run_id, table_name, source_table, imported_at, row_count, duration_ms, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.RunID, e.TableName, e.SourceTable, e.ImportedAt.UTC(), e.RowCount, e.DurationMS, e.Status)
	if err != nil {
		return fmt.Errorf("failed to append import log: %w", err)
	}
	return nil
}

// RecentImportLog returns the newest import log entries first.
func RecentImportLog(ctx context.Context, q Querier, limit int) ([]ImportLogEntry, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT run_id, table_name, COALESCE(source_table, ''), imported_at,
		       COALESCE(row_count, 0), COALESCE(duration_ms, 0), status
		FROM _metadata.import_log
		ORDER BY imported_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read import log: %w", err)
	}
	defer rows.Close()

	var entries []ImportLogEntry
	for rows.Next() {
		var e ImportLogEntry
		if err := rows.Scan(&e.RunID, &e.TableName, &e.SourceTable, &e.ImportedAt, &e.RowCount, &e.DurationMS, &e.Status); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ==================== Data Freshness ====================

// UpsertFreshness records the latest sync of a table.
func UpsertFreshness(ctx context.Context, q Querier, f Freshness) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO _metadata.data_freshness (table_name, source_table, last_sync, row_count, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (table_name) DO UPDATE SET
			source_table = excluded.source_table,
			last_sync = excluded.last_sync,
			row_count = excluded.row_count,
			status = excluded.status
	`, f.TableName, f.SourceTable, f.LastSync.UTC(), f.RowCount, f.Status)
	if err != nil {
		return fmt.Errorf("failed to update freshness: %w", err)
	}
	return nil
}

// ListFreshness returns one row per synced table, ordered by name.
func ListFreshness(ctx context.Context, q Querier) ([]Freshness, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT table_name, COALESCE(source_table, ''), last_sync, COALESCE(row_count, 0), status
		FROM _metadata.data_freshness
		ORDER BY table_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to read freshness: %w", err)
	}
	defer rows.Close()

	var out []Freshness
	for rows.Next() {
		var f Freshness
		if err := rows.Scan(&f.TableName, &f.SourceTable, &f.LastSync, &f.RowCount, &f.Status); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ==================== Materialized Views ====================

// UpsertMaterializedView records the outcome of caching a view.
func UpsertMaterializedView(ctx context.Context, q Querier, m MaterializedView) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO _metadata.materialized_views (view_name, source_view, refreshed_at, row_count, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (view_name) DO UPDATE SET
			source_view = excluded.source_view,
			refreshed_at = excluded.refreshed_at,
			row_count = excluded.row_count,
			status = excluded.status
	`, m.ViewName, m.SourceView, m.RefreshedAt.UTC(), m.RowCount, m.Status)
	if err != nil {
		return fmt.Errorf("failed to record materialized view: %w", err)
	}
	return nil
}

// ListMaterializedViews returns every cached view, ordered by name.
func ListMaterializedViews(ctx context.Context, q Querier) ([]MaterializedView, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT view_name, source_view, refreshed_at, COALESCE(row_count, 0), status
		FROM _metadata.materialized_views
		ORDER BY view_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to read materialized views: %w", err)
	}
	defer rows.Close()

	var out []MaterializedView
	for rows.Next() {
		var m MaterializedView
		if err := rows.Scan(&m.ViewName, &m.SourceView, &m.RefreshedAt, &m.RowCount, &m.Status); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ==================== Data Quality ====================

func AppendQualityCheck(ctx context.Context, q Querier, c QualityCheck) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO _metadata.data_quality (check_id, table_name, check_name, checked_at, passed, expected, actual, details)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, c.CheckID, c.TableName, c.CheckName, c.CheckedAt.UTC(), c.Passed, c.Expected, c.Actual, c.Details)
	if err != nil {
		return fmt.Errorf("failed to append quality check: %w", err)
	}
	return nil
}

// RecentQualityChecks returns the newest checks first.
func RecentQualityChecks(ctx context.Context, q Querier, limit int) ([]QualityCheck, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT check_id, table_name, check_name, checked_at, passed,
		       COALESCE(expected, 0), COALESCE(actual, 0), COALESCE(details, '')
		FROM _metadata.data_quality
		ORDER BY checked_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read quality checks: %w", err)
	}
	defer rows.Close()

	var out []QualityCheck
	for rows.Next() {
		var c QualityCheck
		if err := rows.Scan(&c.CheckID, &c.TableName, &c.CheckName, &c.CheckedAt, &c.Passed, &c.Expected, &c.Actual, &c.Details); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ==================== Model Builds ====================

func AppendModelBuild(ctx context.Context, q Querier, b ModelBuild) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO _metadata.model_builds (build_id, layer, model, file_path, built_at, duration_ms, status, revision)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, b.BuildID, b.Layer, b.Model, b.FilePath, b.BuiltAt.UTC(), b.DurationMS, b.Status, b.Revision)
	if err != nil {
		return fmt.Errorf("failed to append model build: %w", err)
	}
	return nil
}

// RecentModelBuilds returns the newest model outcomes first.
func RecentModelBuilds(ctx context.Context, q Querier, limit int) ([]ModelBuild, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT build_id, layer, model, file_path, built_at, COALESCE(duration_ms, 0), status, COALESCE(revision, '')
		FROM _metadata.model_builds
		ORDER BY built_at DESC, layer, model
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read model builds: %w", err)
	}
	defer rows.Close()

	var out []ModelBuild
	for rows.Next() {
		var b ModelBuild
		if err := rows.Scan(&b.BuildID, &b.Layer, &b.Model, &b.FilePath, &b.BuiltAt, &b.DurationMS, &b.Status, &b.Revision); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

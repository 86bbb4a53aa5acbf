package db

import "time"

// Status values written to metadata tables.
const (
	StatusSuccess = "success"
)

// ErrorStatus formats a failure status for import_log and model_builds.
func ErrorStatus(err error) string {
	return "error: " + err.Error()
}

// FailedStatus formats a failure status for materialized_views.
func FailedStatus(err error) string {
	return "failed: " + err.Error()
}

type SourceConnection struct {
	Server        string    `json:"server"`
	Database      string    `json:"database_name"`
	Schema        string    `json:"schema_name"`
	ServerVersion string    `json:"server_version"`
	ConnectedAt   time.Time `json:"connected_at"`
}

type ImportLogEntry struct {
	RunID       string    `json:"run_id"`
	TableName   string    `json:"table_name"`
	SourceTable string    `json:"source_table"`
	ImportedAt  time.Time `json:"imported_at"`
	RowCount    int64     `json:"row_count"`
	DurationMS  int64     `json:"duration_ms"`
	Status      string    `json:"status"`
}

type Freshness struct {
	TableName   string    `json:"table_name"`
	SourceTable string    `json:"source_table"`
	LastSync    time.Time `json:"last_sync"`
	RowCount    int64     `json:"row_count"`
	Status      string    `json:"status"`
}

type MaterializedView struct {
	ViewName    string    `json:"view_name"`
	SourceView  string    `json:"source_view"`
	RefreshedAt time.Time `json:"refreshed_at"`
	RowCount    int64     `json:"row_count"`
	Status      string    `json:"status"`
}

type QualityCheck struct {
	CheckID   string    `json:"check_id"`
	TableName string    `json:"table_name"`
	CheckName string    `json:"check_name"`
	CheckedAt time.Time `json:"checked_at"`
	Passed    bool      `json:"passed"`
	Expected  int64     `json:"expected"`
	Actual    int64     `json:"actual"`
	Details   string    `json:"details"`
}

type ModelBuild struct {
	BuildID    string    `json:"build_id"`
	Layer      string    `json:"layer"`
	Model      string    `json:"model"`
	FilePath   string    `json:"file_path"`
	BuiltAt    time.Time `json:"built_at"`
	DurationMS int64     `json:"duration_ms"`
	Status     string    `json:"status"`
	Revision   string    `json:"revision"`
}

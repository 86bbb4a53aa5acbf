package etl

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/semlayer/semlayer/internal/config"
	"github.com/semlayer/semlayer/internal/db"
	"github.com/semlayer/semlayer/internal/source"
)

const (
	loadingSuffix = "__loading"

	activityLogMarker = "activity_log"
	activityLogColumn = "EnteredDate"

	checkRowCountMatch = "row_count_match"
)

// Options configures a sync run.
type Options struct {
	Tables          []string
	BatchSize       int
	ActivityLogDays int
	DateFilters     map[string]config.DateFilter
}

// OptionsFromConfig builds sync options from the sync section of the config.
func OptionsFromConfig(cfg config.SyncConfig) Options {
	return Options{
		Tables:          cfg.Tables,
		BatchSize:       cfg.BatchSize,
		ActivityLogDays: cfg.ActivityLogDays,
		DateFilters:     cfg.DateFilters,
	}
}

// Progress receives per-table notifications during a run.
type Progress interface {
	TableStarted(table string, index, total int)
	TableFinished(res TableResult)
}

// TableResult is the outcome of syncing one table.
type TableResult struct {
	SourceTable string
	Table       string
	Rows        int64
	Expected    int64
	Duration    time.Duration
	Err         error
}

// OK reports whether the table synced.
func (r TableResult) OK() bool {
	return r.Err == nil
}

// RunResult summarizes a sync run.
type RunResult struct {
	RunID  string
	Tables []TableResult
	Synced int
	Total  int
}

// Failed returns the tables that did not sync.
func (r *RunResult) Failed() []TableResult {
	var failed []TableResult
	for _, t := range r.Tables {
		if !t.OK() {
			failed = append(failed, t)
		}
	}
	return failed
}

// Syncer copies source tables into the raw schema.
type Syncer struct {
	store    *db.Store
	src      source.Source
	opts     Options
	log      *zap.Logger
	progress Progress
	now      func() time.Time
}

// NewSyncer returns a Syncer reading from src and loading into store.
func NewSyncer(store *db.Store, src source.Source, opts Options, log *zap.Logger) *Syncer {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10000
	}
	return &Syncer{
		store: store,
		src:   src,
		opts:  opts,
		log:   log,
		now:   time.Now,
	}
}

// WithProgress sets the progress reporter.
func (s *Syncer) WithProgress(p Progress) *Syncer {
	s.progress = p
	return s
}

// Tables returns the tables a full run would sync: the configured list,
// or every base table in the source schema.
func (s *Syncer) Tables(ctx context.Context) ([]string, error) {
	if len(s.opts.Tables) > 0 {
		return s.opts.Tables, nil
	}
	tables, err := s.src.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to discover source tables: %w", err)
	}
	return tables, nil
}

// Run syncs every table. A failing table is logged and skipped; the run
// only returns an error when the table list cannot be determined or the
// context is cancelled.
func (s *Syncer) Run(ctx context.Context) (*RunResult, error) {
	tables, err := s.Tables(ctx)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, tables)
}

// RunTables syncs the named tables only.
func (s *Syncer) RunTables(ctx context.Context, tables ...string) (*RunResult, error) {
	return s.run(ctx, tables)
}

func (s *Syncer) run(ctx context.Context, tables []string) (*RunResult, error) {
	res := &RunResult{RunID: uuid.NewString(), Total: len(tables)}
	s.log.Info("sync started", zap.String("run_id", res.RunID), zap.Int("tables", len(tables)))

	for i, table := range tables {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if s.progress != nil {
			s.progress.TableStarted(table, i+1, len(tables))
		}

		tr := s.SyncTable(ctx, res.RunID, table)
		res.Tables = append(res.Tables, tr)
		if tr.OK() {
			res.Synced++
		}

		if s.progress != nil {
			s.progress.TableFinished(tr)
		}
	}

	s.log.Info("sync finished",
		zap.String("run_id", res.RunID),
		zap.Int("synced", res.Synced),
		zap.Int("total", res.Total))
	return res, nil
}

// ExtractRequest returns the extract request for a source table, applying
// its date filter if one is configured or implied.
func (s *Syncer) ExtractRequest(table string) source.ExtractRequest {
	req := source.ExtractRequest{Table: table}
	bare := source.TrimQuotes(table)

	if f, ok := s.lookupFilter(bare); ok {
		req.DateColumn, req.Days = f.Column, f.Days
		return req
	}
	if strings.Contains(strings.ToLower(bare), activityLogMarker) && s.opts.ActivityLogDays > 0 {
		req.DateColumn, req.Days = activityLogColumn, s.opts.ActivityLogDays
	}
	return req
}

func (s *Syncer) lookupFilter(table string) (config.DateFilter, bool) {
	if f, ok := s.opts.DateFilters[table]; ok {
		return f, true
	}
	for name, f := range s.opts.DateFilters {
		if strings.EqualFold(name, table) {
			return f, true
		}
	}
	return config.DateFilter{}, false
}

// SyncTable copies one source table into raw.<sanitized name> and records
// the outcome in the metadata tables.
func (s *Syncer) SyncTable(ctx context.Context, runID, table string) TableResult {
	start := s.now()
	res := TableResult{SourceTable: table, Table: SanitizeTableName(table)}
	log := s.log.With(zap.String("table", table), zap.String("target", "raw."+res.Table))

	res.Rows, res.Expected, res.Err = s.load(ctx, table, res.Table)
	res.Duration = s.now().Sub(start)

	status := db.StatusSuccess
	freshRows := res.Rows
	if res.Err != nil {
		status = db.ErrorStatus(res.Err)
		log.Error("table sync failed", zap.Error(res.Err))
		// the previous raw table, if any, is still what readers see
		freshRows, _ = db.CountRows(ctx, s.store.DB(), db.SchemaRaw, res.Table)
	} else {
		log.Info("table synced", zap.Int64("rows", res.Rows), zap.Duration("duration", res.Duration))
	}

	if err := db.AppendImportLog(ctx, s.store.DB(), db.ImportLogEntry{
		RunID:       runID,
		TableName:   res.Table,
		SourceTable: table,
		ImportedAt:  s.now(),
		RowCount:    res.Rows,
		DurationMS:  res.Duration.Milliseconds(),
		Status:      status,
	}); err != nil {
		log.Warn("failed to write import log", zap.Error(err))
	}

	if err := db.UpsertFreshness(ctx, s.store.DB(), db.Freshness{
		TableName:   res.Table,
		SourceTable: table,
		LastSync:    s.now(),
		RowCount:    freshRows,
		Status:      status,
	}); err != nil {
		log.Warn("failed to update freshness", zap.Error(err))
	}

	return res
}

// load extracts into a staging table and swaps it in. It returns the rows
// loaded and the row count the source reported.
func (s *Syncer) load(ctx context.Context, sourceTable, table string) (int64, int64, error) {
	if table == "" {
		return 0, 0, fmt.Errorf("table name %q is empty after sanitizing", sourceTable)
	}
	req := s.ExtractRequest(sourceTable)

	expected, err := s.src.CountRows(ctx, req)
	if err != nil {
		return 0, 0, err
	}

	rows, err := s.src.Extract(ctx, req)
	if err != nil {
		return 0, expected, err
	}
	defer rows.Close()

	cols := rows.Columns()
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	names = SanitizeColumnNames(names)

	defs := make([]db.ColumnDef, len(cols))
	mappings := make([]columnMapping, len(cols))
	for i, c := range cols {
		mappings[i] = mapColumn(c.TypeName)
		defs[i] = db.ColumnDef{Name: names[i], Type: mappings[i].duckType}
	}

	staging := table + loadingSuffix
	if err := db.CreateTable(ctx, s.store.DB(), db.SchemaRaw, staging, defs); err != nil {
		return 0, expected, err
	}

	n, err := s.store.AppendRows(ctx, db.SchemaRaw, staging, s.opts.BatchSize, &convertingRows{rows: rows, mappings: mappings, names: names})
	if err == nil {
		err = s.store.SwapTable(ctx, db.SchemaRaw, staging, table)
	}
	if err != nil {
		if derr := db.DropTable(context.WithoutCancel(ctx), s.store.DB(), db.SchemaRaw, staging); derr != nil {
			s.log.Warn("failed to drop staging table", zap.String("table", staging), zap.Error(derr))
		}
		return n, expected, err
	}

	s.verify(ctx, table, expected)
	return n, expected, nil
}

// verify compares the loaded row count with the source count and records
// a data quality check.
func (s *Syncer) verify(ctx context.Context, table string, expected int64) {
	actual, err := db.CountRows(ctx, s.store.DB(), db.SchemaRaw, table)
	check := db.QualityCheck{
		CheckID:   uuid.NewString(),
		TableName: table,
		CheckName: checkRowCountMatch,
		CheckedAt: s.now(),
		Expected:  expected,
		Actual:    actual,
		Passed:    err == nil && actual == expected,
	}
	switch {
	case err != nil:
		check.Details = err.Error()
	case !check.Passed:
		check.Details = fmt.Sprintf("expected %d rows, found %d", expected, actual)
		s.log.Warn("row count mismatch", zap.String("table", table), zap.Int64("expected", expected), zap.Int64("actual", actual))
	}
	if err := db.AppendQualityCheck(ctx, s.store.DB(), check); err != nil {
		s.log.Warn("failed to record quality check", zap.Error(err))
	}
}

// convertingRows adapts source rows to the appender, converting each
// value to its mapped DuckDB type.
type convertingRows struct {
	rows     source.Rows
	mappings []columnMapping
	names    []string
}

func (c *convertingRows) Next(ctx context.Context) ([]driver.Value, error) {
	row, err := c.rows.Next(ctx)
	if err != nil {
		return nil, err
	}
	if len(row) != len(c.mappings) {
		return nil, errors.New("source row width does not match its columns")
	}

	out := make([]driver.Value, len(row))
	for i, v := range row {
		if out[i], err = c.mappings[i].convert(v); err != nil {
			return nil, fmt.Errorf("column %s: %w", c.names[i], err)
		}
	}
	return out, nil
}

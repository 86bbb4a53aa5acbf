package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type sliceRows struct {
	rows [][]driver.Value
	pos  int
}

func (s *sliceRows) Next(ctx context.Context) ([]driver.Value, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

func TestOpenCreatesSchemas(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, schema := range AllSchemas {
		var count int64
		err := s.DB().QueryRowContext(ctx,
			`SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = ?`, schema).Scan(&count)
		require.NoError(t, err)
		assert.Positive(t, count, "schema %s", schema)
	}

	for _, table := range []string{"sql_server_connection", "import_log", "data_freshness", "materialized_views", "data_quality", "model_builds"} {
		ok, err := RelationExists(ctx, s.DB(), SchemaMetadata, table)
		require.NoError(t, err)
		assert.True(t, ok, "metadata table %s", table)
	}

	// a second run is a no-op
	require.NoError(t, CreateSchema(ctx, s.DB(), nil))
}

func TestOpenReadOnly(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.duckdb")

	rw, err := Open(ctx, Options{Path: path, Threads: 2, MemoryLimit: "512MB"})
	require.NoError(t, err)
	_, err = rw.DB().ExecContext(ctx, `CREATE TABLE raw.people AS SELECT 1 AS id`)
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	ro, err := Open(ctx, Options{Path: path, ReadOnly: true})
	require.NoError(t, err)
	defer ro.Close()
	assert.True(t, ro.ReadOnly())

	n, err := CountRows(ctx, ro.DB(), "raw", "people")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = ro.DB().ExecContext(ctx, `CREATE TABLE raw.other (id INTEGER)`)
	assert.Error(t, err)
}

func TestOpenReadOnlyBlocksHostFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.duckdb")
	secret := filepath.Join(dir, "secret.csv")
	require.NoError(t, os.WriteFile(secret, []byte("token\nhunter2\n"), 0600))

	rw, err := Open(ctx, Options{Path: path})
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	ro, err := Open(ctx, Options{Path: path, ReadOnly: true, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	defer ro.Close()

	for _, query := range []string{
		fmt.Sprintf("SELECT content FROM read_text(%s)", QuoteLiteral(secret)),
		fmt.Sprintf("SELECT * FROM read_csv(%s)", QuoteLiteral(secret)),
		fmt.Sprintf("SELECT * FROM %s", QuoteLiteral(secret)),
		"SELECT * FROM read_csv('https://example.com/data.csv')",
	} {
		_, err := ExecuteQuery(ctx, ro.DB(), query)
		assert.Error(t, err, query)
	}

	_, err = ro.DB().ExecContext(ctx, "SET enable_external_access = true")
	assert.Error(t, err)

	// the database itself stays readable
	_, err = ExecuteQuery(ctx, ro.DB(), "SELECT COUNT(*) FROM _metadata.import_log")
	assert.NoError(t, err)
}

func TestCreateSchemaLogsFailedMigrations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	migrations := Migrations
	t.Cleanup(func() { Migrations = migrations })
	Migrations = []string{
		"ALTER TABLE _metadata.no_such_table ADD COLUMN x INTEGER",
		"ALTER TABLE _metadata.model_builds ADD COLUMN IF NOT EXISTS note VARCHAR",
	}

	core, logs := observer.New(zapcore.DebugLevel)
	require.NoError(t, CreateSchema(ctx, s.DB(), zap.New(core)))

	entries := logs.FilterMessage("migration skipped").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Contains(t, entries[0].ContextMap()["statement"], "no_such_table")

	// later migrations still ran
	cols, err := DescribeColumns(ctx, s.DB(), SchemaMetadata, "model_builds")
	require.NoError(t, err)
	var names []string
	for _, c := range cols {
		names = append(names, c.Name)
	}
	assert.Contains(t, names, "note")
}

func TestOpenReadOnlyRequiresFile(t *testing.T) {
	_, err := Open(context.Background(), Options{ReadOnly: true})
	assert.Error(t, err)
}

func TestAppendRowsAndSwap(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	cols := []ColumnDef{{Name: "id", Type: "BIGINT"}, {Name: "Name", Type: "VARCHAR"}, {Name: "hired", Type: "DATE"}}
	require.NoError(t, CreateTable(ctx, s.DB(), SchemaRaw, "employees", cols))
	_, err := s.DB().ExecContext(ctx, `INSERT INTO raw.employees VALUES (99, 'old', NULL)`)
	require.NoError(t, err)

	require.NoError(t, CreateTable(ctx, s.DB(), SchemaRaw, "employees__loading", cols))
	src := &sliceRows{rows: [][]driver.Value{
		{int64(1), "Ada", time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)},
		{int64(2), "Grace", nil},
		{int64(3), nil, nil},
	}}
	n, err := s.AppendRows(ctx, SchemaRaw, "employees__loading", 2, src)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.NoError(t, s.SwapTable(ctx, SchemaRaw, "employees__loading", "employees"))

	count, err := CountRows(ctx, s.DB(), SchemaRaw, "employees")
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	exists, err := RelationExists(ctx, s.DB(), SchemaRaw, "employees__loading")
	require.NoError(t, err)
	assert.False(t, exists)
}

type failingRows struct{ sent bool }

func (f *failingRows) Next(ctx context.Context) ([]driver.Value, error) {
	if !f.sent {
		f.sent = true
		return []driver.Value{int64(1)}, nil
	}
	return nil, errors.New("source went away")
}

func TestAppendRowsSourceError(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, CreateTable(ctx, s.DB(), SchemaRaw, "t", []ColumnDef{{Name: "id", Type: "BIGINT"}}))
	n, err := s.AppendRows(ctx, SchemaRaw, "t", 10, &failingRows{})
	assert.EqualError(t, err, "source went away")
	assert.Equal(t, int64(1), n)
}

func TestCreateTableNoColumns(t *testing.T) {
	s := openTestStore(t)
	err := CreateTable(context.Background(), s.DB(), SchemaRaw, "empty", nil)
	assert.Error(t, err)
}

func TestExecuteQueryKeepsColumnOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	res, err := ExecuteQuery(ctx, s.DB(), `SELECT 2 AS b, 'x' AS a, CAST(1.50 AS DECIMAL(10,2)) AS c`)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, res.Columns)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "x", res.Rows[0][1])
	assert.InDelta(t, 1.5, res.Rows[0][2], 0.0001)
	assert.Equal(t, 1, res.Column("A"))
	assert.Equal(t, -1, res.Column("missing"))

	maps := res.Maps()
	require.Len(t, maps, 1)
	assert.Equal(t, "x", maps[0]["a"])
}

func TestExecuteQueryEmpty(t *testing.T) {
	s := openTestStore(t)
	res, err := ExecuteQuery(context.Background(), s.DB(), `SELECT 1 AS one WHERE false`)
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, res.Columns)
	assert.Empty(t, res.Rows)
}

func TestRelations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.DB().ExecContext(ctx, `
		CREATE TABLE raw.people (id BIGINT, name VARCHAR);
		CREATE VIEW staging.stg_people AS SELECT id, name FROM raw.people;
		CREATE VIEW business.people_summary AS SELECT COUNT(*) AS total FROM staging.stg_people;
	`)
	require.NoError(t, err)

	rels, err := ListRelations(ctx, s.DB())
	require.NoError(t, err)
	require.Len(t, rels, 2)
	assert.Equal(t, "business.people_summary", rels[0].FullName())
	assert.True(t, rels[0].IsView())
	assert.Equal(t, "staging.stg_people", rels[1].FullName())

	cols, err := DescribeColumns(ctx, s.DB(), "staging", "stg_people")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, "BIGINT", cols[0].Type)

	_, err = DescribeColumns(ctx, s.DB(), "staging", "nope")
	assert.ErrorIs(t, err, ErrRelationNotFound)

	_, err = CountRows(ctx, s.DB(), "business", "nope")
	assert.ErrorIs(t, err, ErrRelationNotFound)

	all, err := DescribeSchemas(ctx, s.DB())
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMetadataRepository(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, RecordConnection(ctx, s.DB(), SourceConnection{Server: "db01", Database: "HRMS", Schema: "dbo", ConnectedAt: now}))
	conn, err := LastConnection(ctx, s.DB())
	require.NoError(t, err)
	require.NotNil(t, conn)
	assert.Equal(t, "db01", conn.Server)
	assert.Equal(t, "HRMS", conn.Database)

	require.NoError(t, AppendImportLog(ctx, s.DB(), ImportLogEntry{RunID: "r1", TableName: "a", ImportedAt: now, RowCount: 5, Status: StatusSuccess}))
	require.NoError(t, AppendImportLog(ctx, s.DB(), ImportLogEntry{RunID: "r1", TableName: "b", ImportedAt: now.Add(time.Second), Status: ErrorStatus(errors.New("boom"))}))
	log, err := RecentImportLog(ctx, s.DB(), 10)
	require.NoError(t, err)
	require.Len(t, log, 2)
	assert.Equal(t, "b", log[0].TableName)
	assert.Equal(t, "error: boom", log[0].Status)

	require.NoError(t, UpsertFreshness(ctx, s.DB(), Freshness{TableName: "a", LastSync: now, RowCount: 5, Status: StatusSuccess}))
	require.NoError(t, UpsertFreshness(ctx, s.DB(), Freshness{TableName: "a", LastSync: now.Add(time.Minute), RowCount: 7, Status: StatusSuccess}))
	fresh, err := ListFreshness(ctx, s.DB())
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, int64(7), fresh[0].RowCount)

	require.NoError(t, UpsertMaterializedView(ctx, s.DB(), MaterializedView{ViewName: "v", SourceView: "business.v", RefreshedAt: now, RowCount: 1, Status: StatusSuccess}))
	require.NoError(t, UpsertMaterializedView(ctx, s.DB(), MaterializedView{ViewName: "v", SourceView: "business.v", RefreshedAt: now, Status: FailedStatus(errors.New("x"))}))
	views, err := ListMaterializedViews(ctx, s.DB())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "failed: x", views[0].Status)

	require.NoError(t, AppendQualityCheck(ctx, s.DB(), QualityCheck{CheckID: "c1", TableName: "a", CheckName: "row_count_match", CheckedAt: now, Passed: true, Expected: 5, Actual: 5}))
	checks, err := RecentQualityChecks(ctx, s.DB(), 5)
	require.NoError(t, err)
	require.Len(t, checks, 1)
	assert.True(t, checks[0].Passed)

	require.NoError(t, AppendModelBuild(ctx, s.DB(), ModelBuild{BuildID: "b1", Layer: "staging", Model: "stg_a", FilePath: "models/staging/stg_a.sql", BuiltAt: now, Status: StatusSuccess, Revision: "abc"}))
	builds, err := RecentModelBuilds(ctx, s.DB(), 5)
	require.NoError(t, err)
	require.Len(t, builds, 1)
	assert.Equal(t, "abc", builds[0].Revision)
}

func TestLastConnectionEmpty(t *testing.T) {
	s := openTestStore(t)
	conn, err := LastConnection(context.Background(), s.DB())
	require.NoError(t, err)
	assert.Nil(t, conn)
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"abc", "abc"},
		{int64(42), "42"},
		{3.0, "3"},
		{3.14159, "3.14"},
		{[]byte{1, 2, 3}, "<3 bytes>"},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "2024-03-01"},
		{time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), "2024-03-01 09:30:00"},
		{true, "true"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.in))
	}
}

func TestSplitRelation(t *testing.T) {
	schema, name := SplitRelation("metrics.headcount", "business")
	assert.Equal(t, "metrics", schema)
	assert.Equal(t, "headcount", name)

	schema, name = SplitRelation(" employee_summary ", "business")
	assert.Equal(t, "business", schema)
	assert.Equal(t, "employee_summary", name)
}

func TestQuoting(t *testing.T) {
	assert.Equal(t, `"a""b"`, QuoteIdent(`a"b`))
	assert.Equal(t, `'it''s'`, QuoteLiteral("it's"))
	assert.Equal(t, `"raw"."x"`, QualifiedName("raw", "x"))
}

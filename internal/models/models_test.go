package models

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/semlayer/semlayer/internal/config"
	"github.com/semlayer/semlayer/internal/db"
)

func newStore(t *testing.T) *db.Store {
	t.Helper()
	s, err := db.Open(context.Background(), db.Options{Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	_, err = s.DB().Exec(`
		CREATE TABLE raw.employees (employee_id VARCHAR, full_name VARCHAR, department VARCHAR);
		INSERT INTO raw.employees VALUES ('E1', 'Ada Lovelace', 'ICU'), ('E2', 'Grace Hopper', 'ER'), ('E3', 'Alan Turing', 'ICU');
	`)
	require.NoError(t, err)
	return s
}

func writeModel(t *testing.T, dir, layer, name, sql string) {
	t.Helper()
	path := filepath.Join(dir, layer, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(sql), 0644))
}

func TestBuildRunsLayersInOrder(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	dir := t.TempDir()

	writeModel(t, dir, "staging", "stg_employees.sql",
		`CREATE OR REPLACE VIEW staging.stg_employees AS SELECT employee_id, full_name, department FROM raw.employees;`)
	// lexical order matters: 02 depends on 01
	writeModel(t, dir, "business", "02_department_summary.sql",
		`CREATE OR REPLACE VIEW business.department_summary AS SELECT department, COUNT(*) AS headcount FROM business.employee_summary GROUP BY department;`)
	writeModel(t, dir, "business", "01_employee_summary.sql",
		`CREATE OR REPLACE VIEW business.employee_summary AS SELECT * FROM staging.stg_employees;`)
	writeModel(t, dir, "business", "notes.txt", "not a model")
	writeModel(t, dir, "business", "03_broken.sql", `CREATE VIEW business.broken AS SELECT * FROM raw.missing_table;`)

	var seen []string
	installer := NewInstaller(store, config.ModelsConfig{Dir: dir, Layers: []string{"staging", "business", "metrics"}}, zaptest.NewLogger(t)).
		OnModel(func(r ModelResult) { seen = append(seen, r.Layer+"/"+r.Name) })

	res, err := installer.Build(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, res.BuildID)

	require.Len(t, res.Layers, 3)
	assert.False(t, res.Layers[0].Missing)
	assert.True(t, res.Layers[2].Missing)
	assert.Equal(t, []string{
		"staging/stg_employees",
		"business/01_employee_summary",
		"business/02_department_summary",
		"business/03_broken",
	}, seen)

	ok, failed := res.Counts()
	assert.Equal(t, 3, ok)
	assert.Equal(t, 1, failed)
	assert.Error(t, res.Layers[1].Models[2].Err)

	out, err := db.ExecuteQuery(ctx, store.DB(), `SELECT headcount FROM business.department_summary WHERE department = 'ICU'`)
	require.NoError(t, err)
	require.Len(t, out.Rows, 1)
	assert.EqualValues(t, 2, out.Rows[0][0])

	builds, err := db.RecentModelBuilds(ctx, store.DB(), 10)
	require.NoError(t, err)
	require.Len(t, builds, 4)
	var failures int
	for _, b := range builds {
		assert.Equal(t, res.BuildID, b.BuildID)
		if b.Status != db.StatusSuccess {
			failures++
			assert.Contains(t, b.Status, "error: ")
			assert.Equal(t, "03_broken", b.Model)
		}
	}
	assert.Equal(t, 1, failures)
}

func TestBuildEmptyFileFails(t *testing.T) {
	store := newStore(t)
	dir := t.TempDir()
	writeModel(t, dir, "staging", "empty.sql", "  \n")

	res, err := NewInstaller(store, config.ModelsConfig{Dir: dir, Layers: []string{"staging"}}, nil).Build(context.Background())
	require.NoError(t, err)
	_, failed := res.Counts()
	assert.Equal(t, 1, failed)
}

func TestScaffold(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "staging"), 0755))

	created, err := Scaffold(config.ModelsConfig{Dir: dir, Layers: []string{"staging", "business", "metrics"}})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "business"), filepath.Join(dir, "metrics")}, created)
	assert.DirExists(t, filepath.Join(dir, "metrics"))
}

func TestMaterialize(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	_, err := store.DB().Exec(`CREATE VIEW business.employee_summary AS SELECT * FROM raw.employees`)
	require.NoError(t, err)

	cache := NewCache(store, zaptest.NewLogger(t))
	res, err := cache.Materialize(ctx, "employee_summary")
	require.NoError(t, err)
	assert.Equal(t, "business.employee_summary", res.View)
	assert.Equal(t, "cache.business__employee_summary", res.CacheTable)
	assert.Equal(t, int64(3), res.Rows)

	views, err := db.ListMaterializedViews(ctx, store.DB())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "business__employee_summary", views[0].ViewName)
	assert.Equal(t, "business.employee_summary", views[0].SourceView)
	assert.Equal(t, db.StatusSuccess, views[0].Status)

	// new rows show up after a refresh
	_, err = store.DB().Exec(`INSERT INTO raw.employees VALUES ('E4', 'Katherine Johnson', 'ER')`)
	require.NoError(t, err)
	results, err := cache.RefreshAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, int64(4), results[0].Rows)
}

func TestMaterializeKeepsSchemasApart(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	_, err := store.DB().Exec(`
		CREATE TABLE raw.plans (n INTEGER);
		INSERT INTO raw.plans VALUES (1), (2), (3);
		CREATE VIEW business.plans AS SELECT n FROM raw.plans;
		CREATE VIEW metrics.plans AS SELECT COUNT(*) AS n FROM raw.plans;
	`)
	require.NoError(t, err)

	cache := NewCache(store, zaptest.NewLogger(t))
	biz, err := cache.Materialize(ctx, "business.plans")
	require.NoError(t, err)
	met, err := cache.Materialize(ctx, "metrics.plans")
	require.NoError(t, err)
	assert.NotEqual(t, biz.CacheTable, met.CacheTable)
	assert.Equal(t, int64(3), biz.Rows)
	assert.Equal(t, int64(1), met.Rows)

	n, err := db.CountRows(ctx, store.DB(), db.SchemaCache, CacheTableName("business", "plans"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	views, err := db.ListMaterializedViews(ctx, store.DB())
	require.NoError(t, err)
	require.Len(t, views, 2)

	_, err = store.DB().Exec(`INSERT INTO raw.plans VALUES (4)`)
	require.NoError(t, err)
	results, err := cache.RefreshAll(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	refreshed := map[string]int64{}
	for _, r := range results {
		refreshed[r.View] = r.Rows
	}
	assert.Equal(t, map[string]int64{"business.plans": 4, "metrics.plans": 1}, refreshed)
}

func TestMaterializeMissingView(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	_, err := NewCache(store, nil).Materialize(ctx, "metrics.nope")
	assert.ErrorIs(t, err, db.ErrRelationNotFound)

	views, err := db.ListMaterializedViews(ctx, store.DB())
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestRefreshAllReportsBrokenViews(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	_, err := store.DB().Exec(`
		CREATE VIEW business.a AS SELECT 1 AS x;
		CREATE VIEW business.b AS SELECT 2 AS x;
	`)
	require.NoError(t, err)

	cache := NewCache(store, nil)
	_, err = cache.Materialize(ctx, "business.a")
	require.NoError(t, err)
	_, err = cache.Materialize(ctx, "business.b")
	require.NoError(t, err)

	_, err = store.DB().Exec(`DROP VIEW business.b`)
	require.NoError(t, err)

	results, err := cache.RefreshAll(ctx)
	assert.ErrorIs(t, err, db.ErrRelationNotFound)
	require.Len(t, results, 1)
	assert.Equal(t, "business.a", results[0].View)
}

func TestCandidates(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	_, err := store.DB().Exec(`
		CREATE VIEW staging.stg AS SELECT 1 AS x;
		CREATE VIEW metrics.m AS SELECT 1 AS x;
		CREATE TABLE business.not_a_view (x INTEGER);
	`)
	require.NoError(t, err)

	views, err := NewCache(store, nil).Candidates(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "metrics.m", views[0].FullName())
	assert.Equal(t, "staging.stg", views[1].FullName())
}

package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/semlayer/semlayer/internal/db"
)

// DefaultViewSchema is assumed for view names given without a schema.
const DefaultViewSchema = db.SchemaBusiness

// MaterializeResult describes a refreshed cache table.
type MaterializeResult struct {
	View       string
	CacheTable string
	Rows       int64
	Duration   time.Duration
}

// Cache materializes views into tables in the cache schema.
type Cache struct {
	store *db.Store
	log   *zap.Logger
	now   func() time.Time
}

func NewCache(store *db.Store, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{store: store, log: log, now: time.Now}
}

// CacheTableName names the cache table for a view. The source schema is
// part of the name so business.x and metrics.x do not share a table.
func CacheTableName(schema, name string) string {
	return schema + "__" + name
}

// Materialize rebuilds cache.<schema>__<name> from the view. A missing view
// returns db.ErrRelationNotFound without touching the metadata.
func (c *Cache) Materialize(ctx context.Context, view string) (*MaterializeResult, error) {
	schema, name := db.SplitRelation(view, DefaultViewSchema)
	source := schema + "." + name
	table := CacheTableName(schema, name)

	exists, err := db.RelationExists(ctx, c.store.DB(), schema, name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("view %s: %w", source, db.ErrRelationNotFound)
	}

	start := c.now()
	res := &MaterializeResult{View: source, CacheTable: db.SchemaCache + "." + table}

	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s AS SELECT * FROM %s",
		db.QualifiedName(db.SchemaCache, table), db.QualifiedName(schema, name))
	if _, err := c.store.DB().ExecContext(ctx, stmt); err != nil {
		err = fmt.Errorf("failed to materialize %s: %w", source, err)
		c.record(ctx, table, source, 0, db.FailedStatus(err))
		return nil, err
	}

	res.Rows, err = db.CountRows(ctx, c.store.DB(), db.SchemaCache, table)
	if err != nil {
		c.record(ctx, table, source, 0, db.FailedStatus(err))
		return nil, err
	}
	res.Duration = c.now().Sub(start)

	c.record(ctx, table, source, res.Rows, db.StatusSuccess)
	c.log.Info("view materialized",
		zap.String("view", source),
		zap.Int64("rows", res.Rows),
		zap.Duration("duration", res.Duration))
	return res, nil
}

func (c *Cache) record(ctx context.Context, name, source string, rows int64, status string) {
	err := db.UpsertMaterializedView(ctx, c.store.DB(), db.MaterializedView{
		ViewName:    name,
		SourceView:  source,
		RefreshedAt: c.now(),
		RowCount:    rows,
		Status:      status,
	})
	if err != nil {
		c.log.Warn("failed to record materialized view", zap.String("view", source), zap.Error(err))
	}
}

// RefreshAll re-materializes every view recorded in the metadata. Each
// failure is returned joined; successful refreshes are kept.
func (c *Cache) RefreshAll(ctx context.Context) ([]*MaterializeResult, error) {
	views, err := db.ListMaterializedViews(ctx, c.store.DB())
	if err != nil {
		return nil, err
	}

	var results []*MaterializeResult
	var errs []error
	for _, v := range views {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := c.Materialize(ctx, v.SourceView)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		results = append(results, res)
	}
	return results, errors.Join(errs...)
}

// Candidates lists the views that can be materialized.
func (c *Cache) Candidates(ctx context.Context) ([]db.Relation, error) {
	rels, err := db.ListRelations(ctx, c.store.DB(), db.SchemaStaging, db.SchemaBusiness, db.SchemaMetrics)
	if err != nil {
		return nil, err
	}
	var views []db.Relation
	for _, r := range rels {
		if r.IsView() {
			views = append(views, r)
		}
	}
	return views, nil
}

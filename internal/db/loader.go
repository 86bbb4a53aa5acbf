package db

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
)

// ColumnDef is a column of a table created for bulk loading.
type ColumnDef struct {
	Name string
	Type string
}

// RowSource yields rows for bulk loading. Next returns io.EOF when done.
type RowSource interface {
	Next(ctx context.Context) ([]driver.Value, error)
}

// CreateTable creates (or replaces) schema.table with the given columns.
func CreateTable(ctx context.Context, q Querier, schema, table string, cols []ColumnDef) error {
	if len(cols) == 0 {
		return fmt.Errorf("table %s.%s has no columns", schema, table)
	}
	defs := make([]string, len(cols))
	for i, c := range cols {
		defs[i] = QuoteIdent(c.Name) + " " + c.Type
	}
	stmt := fmt.Sprintf("CREATE OR REPLACE TABLE %s (%s)", QualifiedName(schema, table), strings.Join(defs, ", "))
	if _, err := q.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create %s.%s: %w", schema, table, err)
	}
	return nil
}

// DropTable drops schema.table if it exists.
func DropTable(ctx context.Context, q Querier, schema, table string) error {
	if _, err := q.ExecContext(ctx, "DROP TABLE IF EXISTS "+QualifiedName(schema, table)); err != nil {
		return fmt.Errorf("failed to drop %s.%s: %w", schema, table, err)
	}
	return nil
}

// AppendRows streams rows from src into schema.table through the DuckDB
// appender, flushing every batchSize rows. It returns the number of rows
// appended.
func (s *Store) AppendRows(ctx context.Context, schema, table string, batchSize int, src RowSource) (int64, error) {
	if s.readOnly {
		return 0, fmt.Errorf("cannot append to a read-only store")
	}
	if batchSize <= 0 {
		batchSize = 10000
	}

	conn, err := s.connector.Connect(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get native connection: %w", err)
	}
	defer conn.Close()

	appender, err := duckdb.NewAppenderFromConn(conn, schema, table)
	if err != nil {
		return 0, fmt.Errorf("failed to create appender for %s.%s: %w", schema, table, err)
	}

	var n int64
	appendErr := func() error {
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			row, err := src.Next(ctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			if err := appender.AppendRow(row...); err != nil {
				return fmt.Errorf("failed to append row %d: %w", n+1, err)
			}
			n++
			if n%int64(batchSize) == 0 {
				if err := appender.Flush(); err != nil {
					return fmt.Errorf("failed to flush batch: %w", err)
				}
				s.log.Debug("flushed batch",
					zap.String("table", schema+"."+table),
					zap.Int64("rows", n))
			}
		}
	}()

	// Close flushes whatever is left
	closeErr := appender.Close()
	if appendErr != nil {
		return n, appendErr
	}
	if closeErr != nil {
		return n, fmt.Errorf("failed to close appender: %w", closeErr)
	}
	return n, nil
}

// SwapTable replaces schema.target with schema.staging in one transaction.
// If anything fails the previous target is left in place.
func (s *Store) SwapTable(ctx context.Context, schema, staging, target string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin swap: %w", err)
	}
	defer tx.Rollback()

	if err := DropTable(ctx, tx, schema, target); err != nil {
		return err
	}
	stmt := fmt.Sprintf("ALTER TABLE %s RENAME TO %s", QualifiedName(schema, staging), QuoteIdent(target))
	if _, err := tx.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", staging, target, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit swap: %w", err)
	}
	return nil
}

package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/marcboeker/go-duckdb"
)

// ErrRelationNotFound is returned when a table or view does not exist.
var ErrRelationNotFound = errors.New("relation not found")

// Querier is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Result holds query output with the column order preserved.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Maps returns the rows keyed by column name.
func (r *Result) Maps() []map[string]any {
	out := make([]map[string]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		m := make(map[string]any, len(r.Columns))
		for i, col := range r.Columns {
			m[col] = row[i]
		}
		out = append(out, m)
	}
	return out
}

// Column returns the index of the named column, or -1.
func (r *Result) Column(name string) int {
	for i, c := range r.Columns {
		if strings.EqualFold(c, name) {
			return i
		}
	}
	return -1
}

// ExecuteQuery runs query and collects every row.
func ExecuteQuery(ctx context.Context, q Querier, query string, args ...any) (*Result, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}

	res := &Result{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i := range values {
			values[i] = normalizeValue(values[i])
		}
		res.Rows = append(res.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}
	return res, nil
}

// normalizeValue turns driver-specific values into plain Go values.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case *big.Int:
		if x == nil {
			return nil
		}
		if x.IsInt64() {
			return x.Int64()
		}
		return x.String()
	case duckdb.Decimal:
		return x.Float64()
	default:
		return v
	}
}

// FormatValue renders a value for terminal and HTML tables.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(x))
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(f float64) string {
	if f == float64(int64(f)) && f < 1e15 && f > -1e15 {
		return fmt.Sprintf("%.0f", f)
	}
	return fmt.Sprintf("%.2f", f)
}

// QuoteIdent quotes a DuckDB identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteLiteral quotes a DuckDB string literal.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QualifiedName returns schema.name with both parts quoted.
func QualifiedName(schema, name string) string {
	return QuoteIdent(schema) + "." + QuoteIdent(name)
}

// SplitRelation splits "schema.name" and applies defaultSchema when the
// schema part is missing.
func SplitRelation(relation, defaultSchema string) (string, string) {
	relation = strings.TrimSpace(relation)
	if i := strings.Index(relation, "."); i > 0 {
		return relation[:i], relation[i+1:]
	}
	return defaultSchema, relation
}

// Relation is a table or view in the store.
type Relation struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
	Type   string `json:"type"`
}

// FullName returns "schema.name" unquoted.
func (r Relation) FullName() string {
	return r.Schema + "." + r.Name
}

// IsView reports whether the relation is a view.
func (r Relation) IsView() bool {
	return r.Type == "VIEW"
}

// ColumnInfo describes one column of a relation.
type ColumnInfo struct {
	Schema   string `json:"schema"`
	Relation string `json:"relation"`
	Name     string `json:"name"`
	Type     string `json:"type"`
}

// ListRelations returns tables and views in the given schemas, ordered by
// schema and name.
func ListRelations(ctx context.Context, q Querier, schemas ...string) ([]Relation, error) {
	if len(schemas) == 0 {
		schemas = UserSchemas
	}
	query := fmt.Sprintf(`
		SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE table_schema IN (%s)
		ORDER BY table_schema, table_name
	`, placeholders(len(schemas)))

	rows, err := q.QueryContext(ctx, query, stringArgs(schemas)...)
	if err != nil {
		return nil, fmt.Errorf("failed to list relations: %w", err)
	}
	defer rows.Close()

	var relations []Relation
	for rows.Next() {
		var r Relation
		if err := rows.Scan(&r.Schema, &r.Name, &r.Type); err != nil {
			return nil, err
		}
		relations = append(relations, r)
	}
	return relations, rows.Err()
}

// DescribeColumns returns the columns of schema.name in ordinal order.
func DescribeColumns(ctx context.Context, q Querier, schema, name string) ([]ColumnInfo, error) {
	cols, err := describe(ctx, q, `table_schema = ? AND table_name = ?`, schema, name)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("%s.%s: %w", schema, name, ErrRelationNotFound)
	}
	return cols, nil
}

// DescribeSchemas returns the columns of every relation in the given schemas.
func DescribeSchemas(ctx context.Context, q Querier, schemas ...string) ([]ColumnInfo, error) {
	if len(schemas) == 0 {
		schemas = UserSchemas
	}
	return describe(ctx, q, fmt.Sprintf(`table_schema IN (%s)`, placeholders(len(schemas))), stringArgs(schemas)...)
}

func describe(ctx context.Context, q Querier, where string, args ...any) ([]ColumnInfo, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT table_schema, table_name, column_name, data_type
		FROM information_schema.columns
		WHERE `+where+`
		ORDER BY table_schema, table_name, ordinal_position
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to describe columns: %w", err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var c ColumnInfo
		if err := rows.Scan(&c.Schema, &c.Relation, &c.Name, &c.Type); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// RelationExists reports whether schema.name is a table or view.
func RelationExists(ctx context.Context, q Querier, schema, name string) (bool, error) {
	var count int64
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = ? AND table_name = ?
	`, schema, name).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check relation: %w", err)
	}
	return count > 0, nil
}

// CountRows returns the number of rows in schema.name.
func CountRows(ctx context.Context, q Querier, schema, name string) (int64, error) {
	exists, err := RelationExists(ctx, q, schema, name)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("%s.%s: %w", schema, name, ErrRelationNotFound)
	}

	var count int64
	if err := q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+QualifiedName(schema, name)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s.%s: %w", schema, name, err)
	}
	return count, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func stringArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}

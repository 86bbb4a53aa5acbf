package source

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb"
	"go.uber.org/zap"

	"github.com/semlayer/semlayer/internal/config"
)

// Column describes a source column with its SQL Server type name.
type Column struct {
	Name     string
	TypeName string
}

// ExtractRequest selects a table and an optional trailing date window.
type ExtractRequest struct {
	Table      string
	DateColumn string
	Days       int
}

// Rows is a forward-only cursor over extracted rows.
type Rows interface {
	Columns() []Column
	// Next returns the next row, or io.EOF when the cursor is exhausted.
	Next(ctx context.Context) ([]any, error)
	Close() error
}

// Source is the relational system rows are extracted from.
type Source interface {
	Ping(ctx context.Context) error
	ListTables(ctx context.Context) ([]string, error)
	CountRows(ctx context.Context, req ExtractRequest) (int64, error)
	Extract(ctx context.Context, req ExtractRequest) (Rows, error)
	Close() error
}

// ServerInfo is what a diagnostic probe learns about the server.
type ServerInfo struct {
	Server     string
	Version    string
	Database   string
	Login      string
	Schema     string
	TableCount int
}

// SQLServer reads from a SQL Server database.
type SQLServer struct {
	db  *sql.DB
	cfg config.SQLServerConfig
	log *zap.Logger
}

// DSN builds a sqlserver:// connection URL.
func DSN(cfg config.SQLServerConfig, username, password string) string {
	q := url.Values{}
	if cfg.Database != "" {
		q.Set("database", cfg.Database)
	}
	if cfg.Encrypt != "" {
		q.Set("encrypt", cfg.Encrypt)
	}
	if cfg.TrustServerCertificate {
		q.Set("TrustServerCertificate", "true")
	}
	if cfg.AppName != "" {
		q.Set("app name", cfg.AppName)
	}
	if cfg.ConnectTimeoutSeconds > 0 {
		q.Set("connection timeout", strconv.Itoa(cfg.ConnectTimeoutSeconds))
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(username, password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Open connects to SQL Server using the configured credentials and
// verifies the connection.
func Open(ctx context.Context, cfg *config.Config, log *zap.Logger) (*SQLServer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	username, password, err := cfg.Credentials()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlserver", DSN(cfg.SQLServer, username, password))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQL Server connection: %w", err)
	}

	s := &SQLServer{db: db, cfg: cfg.SQLServer, log: log}
	if err := s.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	log.Debug("connected to sql server",
		zap.String("host", cfg.SQLServer.Host),
		zap.String("database", cfg.SQLServer.Database))
	return s, nil
}

func (s *SQLServer) Ping(ctx context.Context) error {
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("failed to reach SQL Server at %s: %w", s.cfg.Host, err)
	}
	return nil
}

// Probe gathers server details for diagnostics.
func (s *SQLServer) Probe(ctx context.Context) (*ServerInfo, error) {
	info := &ServerInfo{Server: s.cfg.Host, Schema: s.cfg.Schema}

	var version, database, login sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT @@VERSION, DB_NAME(), SUSER_SNAME()").Scan(&version, &database, &login)
	if err != nil {
		return nil, fmt.Errorf("failed to read server info: %w", err)
	}
	info.Version = firstLine(version.String)
	info.Database = database.String
	info.Login = login.String

	tables, err := s.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	info.TableCount = len(tables)
	return info, nil
}

// ListTables returns the base tables of the configured schema by name.
func (s *SQLServer) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA = @p1
		ORDER BY TABLE_NAME
	`, s.cfg.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// CountRows counts the rows an extract with the same request would return.
func (s *SQLServer) CountRows(ctx context.Context, req ExtractRequest) (int64, error) {
	query, args := BuildQuery("COUNT_BIG(*)", s.cfg.Schema, req)
	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", req.Table, err)
	}
	return count, nil
}

// Extract streams the rows of a table.
func (s *SQLServer) Extract(ctx context.Context, req ExtractRequest) (Rows, error) {
	query, args := BuildQuery("*", s.cfg.Schema, req)
	s.log.Debug("extracting", zap.String("query", query))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", req.Table, err)
	}

	types, err := rows.ColumnTypes()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("failed to read column types of %s: %w", req.Table, err)
	}
	cols := make([]Column, len(types))
	for i, ct := range types {
		cols[i] = Column{Name: ct.Name(), TypeName: strings.ToUpper(ct.DatabaseTypeName())}
	}
	return &sqlRows{rows: rows, cols: cols}, nil
}

func (s *SQLServer) Close() error {
	return s.db.Close()
}

// BuildQuery returns the SELECT for an extract request and its arguments.
func BuildQuery(selectList, defaultSchema string, req ExtractRequest) (string, []any) {
	query := fmt.Sprintf("SELECT %s FROM %s", selectList, QuoteTable(req.Table, defaultSchema))
	if req.DateColumn == "" || req.Days <= 0 {
		return query, nil
	}
	query += fmt.Sprintf(" WHERE %s >= DATEADD(day, -@p1, GETDATE())", QuoteIdent(req.DateColumn))
	return query, []any{req.Days}
}

// QuoteIdent bracket-quotes a SQL Server identifier.
func QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// QuoteTable quotes a possibly schema-qualified table name. Surrounding
// quotes or brackets from configuration are removed first; a bare name is
// qualified with defaultSchema.
func QuoteTable(table, defaultSchema string) string {
	parts := splitQualified(strings.TrimSpace(table))
	if len(parts) == 1 && !strings.HasPrefix(parts[0], "[") {
		// config values like "dbo.Activity_Log" quote the whole name
		parts = splitQualified(TrimQuotes(parts[0]))
	}
	schema, name := defaultSchema, TrimQuotes(parts[len(parts)-1])
	if len(parts) > 1 {
		schema = TrimQuotes(parts[len(parts)-2])
	}
	if schema == "" {
		return QuoteIdent(name)
	}
	return QuoteIdent(schema) + "." + QuoteIdent(name)
}

// TrimQuotes strips one layer of surrounding quotes or brackets.
func TrimQuotes(name string) string {
	name = strings.TrimSpace(name)
	if len(name) >= 2 {
		first, last := name[0], name[len(name)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '[' && last == ']') {
			return name[1 : len(name)-1]
		}
	}
	return name
}

// splitQualified splits on dots outside quotes and brackets.
func splitQualified(name string) []string {
	var parts []string
	var closing byte
	start := 0
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case closing != 0:
			if c == closing {
				closing = 0
			}
		case c == '[':
			closing = ']'
		case c == '"' || c == '\'':
			closing = c
		case c == '.':
			parts = append(parts, name[start:i])
			start = i + 1
		}
	}
	return append(parts, name[start:])
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return strings.TrimSpace(s)
}

type sqlRows struct {
	rows *sql.Rows
	cols []Column
}

func (r *sqlRows) Columns() []Column {
	return r.cols
}

func (r *sqlRows) Next(ctx context.Context) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !r.rows.Next() {
		if err := r.rows.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	values := make([]any, len(r.cols))
	ptrs := make([]any, len(r.cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := r.rows.Scan(ptrs...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}
	return values, nil
}

func (r *sqlRows) Close() error {
	return r.rows.Close()
}

package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
)

// Options controls how a Store is opened.
type Options struct {
	// Path to the database file; empty or ":memory:" opens an in-memory database.
	Path        string
	ReadOnly    bool
	MemoryLimit string
	Threads     int
	Extensions  []string
	Logger      *zap.Logger
}

// Store wraps a DuckDB database shared by a database/sql pool and the
// native connections used for appends.
type Store struct {
	db        *sql.DB
	connector *duckdb.Connector
	path      string
	readOnly  bool
	log       *zap.Logger
}

// Open opens the DuckDB database described by opts. Read-write stores get
// their schemas and metadata tables created.
func Open(ctx context.Context, opts Options) (*Store, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	path := opts.Path
	if path == ":memory:" {
		path = ""
	}
	if path != "" && !opts.ReadOnly {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	if opts.ReadOnly && path == "" {
		return nil, fmt.Errorf("read-only mode requires a database file")
	}

	dsn := path
	if opts.ReadOnly {
		dsn += "?access_mode=READ_ONLY"
	}

	// DuckDB settings are database wide, so the first connection applies
	// them for the pool. Read-only stores load their extensions there and
	// then lock the database away from files and URLs.
	var (
		initMu     sync.Mutex
		configured bool
	)
	connector, err := duckdb.NewConnector(dsn, func(execer driver.ExecerContext) error {
		initMu.Lock()
		defer initMu.Unlock()
		if configured {
			return nil
		}

		exec := func(stmt string) error {
			_, err := execer.ExecContext(context.Background(), stmt, nil)
			return err
		}
		for _, stmt := range sessionSettings(opts) {
			if err := exec(stmt); err != nil {
				return fmt.Errorf("failed to apply %q: %w", stmt, err)
			}
		}
		if opts.ReadOnly {
			loadExtensions(exec, opts.Extensions, false, log)
			for _, stmt := range lockdownSettings {
				if err := exec(stmt); err != nil {
					return fmt.Errorf("failed to apply %q: %w", stmt, err)
				}
			}
		}
		configured = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	s := &Store{
		db:        sql.OpenDB(connector),
		connector: connector,
		path:      path,
		readOnly:  opts.ReadOnly,
		log:       log,
	}

	if err := s.db.PingContext(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to ping DuckDB: %w", err)
	}

	if !opts.ReadOnly {
		loadExtensions(func(stmt string) error {
			_, err := s.db.ExecContext(ctx, stmt)
			return err
		}, opts.Extensions, true, log)

		if err := CreateSchema(ctx, s.db, log); err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	log.Debug("opened duckdb",
		zap.String("path", displayPath(path)),
		zap.Bool("read_only", opts.ReadOnly))
	return s, nil
}

var extensionName = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func sessionSettings(opts Options) []string {
	var stmts []string
	if opts.MemoryLimit != "" {
		stmts = append(stmts, fmt.Sprintf("SET memory_limit = %s", QuoteLiteral(opts.MemoryLimit)))
	}
	if opts.Threads > 0 {
		stmts = append(stmts, fmt.Sprintf("SET threads = %d", opts.Threads))
	}
	return stmts
}

// lockdownSettings stop read-only queries from reaching host files or
// remote URLs through table functions and replacement scans.
var lockdownSettings = []string{
	"SET enable_external_access = false",
	"SET lock_configuration = true",
}

// loadExtensions loads, and when install is set first installs, each
// extension. Failures are logged and skipped; the store works without them.
func loadExtensions(exec func(string) error, extensions []string, install bool, log *zap.Logger) {
	for _, ext := range extensions {
		ext = strings.TrimSpace(ext)
		if !extensionName.MatchString(ext) {
			log.Warn("skipping invalid extension name", zap.String("extension", ext))
			continue
		}
		if install {
			if err := exec("INSTALL " + ext); err != nil {
				log.Warn("extension install failed", zap.String("extension", ext), zap.Error(err))
			}
		}
		if err := exec("LOAD " + ext); err != nil {
			log.Warn("extension load failed", zap.String("extension", ext), zap.Error(err))
			continue
		}
		log.Debug("extension loaded", zap.String("extension", ext))
	}
}

// DB returns the underlying connection pool.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) ReadOnly() bool {
	return s.readOnly
}

// Close closes the pool; database/sql closes the connector with it.
func (s *Store) Close() error {
	return s.db.Close()
}

func displayPath(path string) string {
	if path == "" {
		return ":memory:"
	}
	return path
}

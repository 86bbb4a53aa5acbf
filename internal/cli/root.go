package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/semlayer/semlayer/internal/config"
	"github.com/semlayer/semlayer/internal/db"
)

var (
	configPath string
	dbPath     string
	verbose    bool

	logger = zap.NewNop()
)

var (
	titleColor   = color.New(color.FgHiCyan, color.Bold)
	successColor = color.New(color.FgHiGreen)
	errorColor   = color.New(color.FgHiRed)
	warnColor    = color.New(color.FgHiYellow)
	dimColor     = color.New(color.FgHiBlack)
)

var rootCmd = &cobra.Command{
	Use:   "semlayer",
	Short: "semlayer - an analytical semantic layer over an HR SQL Server database",
	Long: `semlayer copies tables from a SQL Server HR database into an embedded
DuckDB file and builds staging, business and metrics views on top of them.

Use 'semlayer init' for a first full load, 'semlayer sync' to refresh the
raw tables and 'semlayer serve' to open the dashboard.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log, err := newLogger(verbose)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		logger = log
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "DuckDB file (overrides duckdb.database_path)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// newLogger logs to stderr; warnings and above unless verbose.
func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w\n\nRun 'semlayer config init' to write a default config", err)
	}
	if dbPath != "" {
		cfg.DuckDB.DatabasePath = dbPath
	}
	return cfg, nil
}

func openStore(ctx context.Context, cfg *config.Config, readOnly bool) (*db.Store, error) {
	if readOnly {
		if _, err := os.Stat(cfg.DuckDB.DatabasePath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database %s not found; run 'semlayer init' first", cfg.DuckDB.DatabasePath)
		}
	}
	store, err := db.Open(ctx, db.Options{
		Path:        cfg.DuckDB.DatabasePath,
		ReadOnly:    readOnly,
		MemoryLimit: cfg.DuckDB.MemoryLimit,
		Threads:     cfg.DuckDB.Threads,
		Extensions:  cfg.DuckDB.Extensions,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/semlayer/semlayer/internal/config"
	"github.com/semlayer/semlayer/internal/db"
	"github.com/semlayer/semlayer/internal/llm"
	"github.com/semlayer/semlayer/internal/source"
)

var doctorTimeout time.Duration

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the configuration and every connection",
	Long: `Diagnose a setup step by step: config file, SQL Server credentials and
connectivity, the DuckDB file and the configured LLM provider.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().DurationVar(&doctorTimeout, "timeout", 15*time.Second, "Timeout per check")
}

type checkReporter struct {
	w      io.Writer
	failed int
}

func (r *checkReporter) ok(format string, args ...any) {
	successColor.Fprintf(r.w, "  ✓ %s\n", fmt.Sprintf(format, args...))
}

func (r *checkReporter) warn(format string, args ...any) {
	warnColor.Fprintf(r.w, "  ! %s\n", fmt.Sprintf(format, args...))
}

func (r *checkReporter) fail(format string, args ...any) {
	r.failed++
	errorColor.Fprintf(r.w, "  ✗ %s\n", fmt.Sprintf(format, args...))
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	r := &checkReporter{w: cmd.OutOrStdout()}
	titleColor.Fprintln(r.w, "\n  semlayer doctor")

	cfg, err := loadConfig()
	if err != nil {
		r.fail("config: %v", err)
		return errors.New("config could not be loaded")
	}
	if _, err := os.Stat(cfg.Path()); err == nil {
		r.ok("config %s", cfg.Path())
	} else {
		r.warn("config %s not found, using defaults", cfg.Path())
	}

	checkSource(ctx, r, cfg)
	checkStore(ctx, r, cfg)
	checkLLM(ctx, r, cfg)

	fmt.Fprintln(r.w)
	if r.failed > 0 {
		return fmt.Errorf("%d checks failed", r.failed)
	}
	successColor.Fprintln(r.w, "  All checks passed")
	return nil
}

func checkSource(ctx context.Context, r *checkReporter, cfg *config.Config) {
	if _, _, err := cfg.Credentials(); err != nil {
		r.fail("credentials: %v", err)
		return
	}
	r.ok("credentials found for %s:%d", cfg.SQLServer.Host, cfg.SQLServer.Port)

	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()
	src, err := source.Open(ctx, cfg, logger)
	if err != nil {
		r.fail("sql server: %v", err)
		return
	}
	defer src.Close()

	info, err := src.Probe(ctx)
	if err != nil {
		r.fail("sql server probe: %v", err)
		return
	}
	r.ok("sql server %s, database %s as %s", info.Version, info.Database, info.Login)
	if info.TableCount == 0 {
		r.warn("schema %s has no base tables", info.Schema)
	} else {
		r.ok("schema %s has %d tables", info.Schema, info.TableCount)
	}
}

func checkStore(ctx context.Context, r *checkReporter, cfg *config.Config) {
	if _, err := os.Stat(cfg.DuckDB.DatabasePath); os.IsNotExist(err) {
		r.warn("database %s does not exist yet; run 'semlayer init'", cfg.DuckDB.DatabasePath)
		return
	}
	store, err := openStore(ctx, cfg, true)
	if err != nil {
		r.fail("duckdb: %v", err)
		return
	}
	defer store.Close()

	rels, err := db.ListRelations(ctx, store.DB(), db.UserSchemas...)
	if err != nil {
		r.fail("duckdb: %v", err)
		return
	}
	r.ok("duckdb %s with %d views and tables", cfg.DuckDB.DatabasePath, len(rels))
}

func checkLLM(ctx context.Context, r *checkReporter, cfg *config.Config) {
	if !cfg.LLM.Enabled {
		r.ok("llm disabled")
		return
	}
	client, err := llm.FromConfig(cfg)
	if err != nil {
		r.fail("llm: %v", err)
		return
	}

	ollama, ok := client.(*llm.OllamaClient)
	if !ok {
		r.ok("llm %s/%s configured", cfg.LLM.Provider, cfg.LLM.Model)
		return
	}
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()
	has, err := ollama.HasModel(ctx)
	switch {
	case err != nil:
		r.fail("ollama at %s: %v", cfg.LLM.BaseURL, err)
	case !has:
		r.fail("ollama model %s not pulled; run 'ollama pull %s'", cfg.LLM.Model, cfg.LLM.Model)
	default:
		r.ok("ollama %s has %s", cfg.LLM.BaseURL, cfg.LLM.Model)
	}
}

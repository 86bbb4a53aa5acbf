package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/semlayer/semlayer/internal/config"
	"github.com/semlayer/semlayer/internal/db"
	"github.com/semlayer/semlayer/internal/etl"
	"github.com/semlayer/semlayer/internal/source"
)

var syncCmd = &cobra.Command{
	Use:   "sync [table...]",
	Short: "Copy source tables into the raw schema",
	Long: `Extract tables from SQL Server and replace their copies in raw.*.

With no arguments every configured table is synced (or every base table of
the source schema when sync.tables is empty). A failing table keeps its
previous copy and the run moves on.

Examples:
  semlayer sync
  semlayer sync Employee Payroll`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := syncTables(ctx, cmd.OutOrStdout(), cfg, store, args...)
	if err != nil {
		return err
	}
	if failed := res.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d tables failed to sync", len(failed), res.Total)
	}
	return nil
}

// syncTables connects to the source, records the connection and runs the
// syncer over tables (all tables when empty).
func syncTables(ctx context.Context, w io.Writer, cfg *config.Config, store *db.Store, tables ...string) (*etl.RunResult, error) {
	src, err := source.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	if info, err := src.Probe(ctx); err != nil {
		logger.Warn("source probe failed", zap.Error(err))
	} else {
		conn := db.SourceConnection{
			Server:        info.Server,
			Database:      info.Database,
			Schema:        info.Schema,
			ServerVersion: info.Version,
			ConnectedAt:   time.Now(),
		}
		if err := db.RecordConnection(ctx, store.DB(), conn); err != nil {
			logger.Warn("failed to record source connection", zap.Error(err))
		}
		successColor.Fprintf(w, "  Connected to %s/%s (%d tables)\n", info.Server, info.Database, info.TableCount)
	}

	syncer := etl.NewSyncer(store, src, etl.OptionsFromConfig(cfg.Sync), logger).
		WithProgress(newSyncProgress(w))

	var res *etl.RunResult
	if len(tables) > 0 {
		res, err = syncer.RunTables(ctx, tables...)
	} else {
		res, err = syncer.Run(ctx)
	}
	if err != nil {
		return res, err
	}
	printSyncSummary(w, res)
	return res, nil
}

func printSyncSummary(w io.Writer, res *etl.RunResult) {
	fmt.Fprintln(w)
	if res.Synced == res.Total {
		successColor.Fprintf(w, "  Synced %d/%d tables\n", res.Synced, res.Total)
		return
	}
	warnColor.Fprintf(w, "  Synced %d/%d tables\n", res.Synced, res.Total)
	for _, t := range res.Failed() {
		errorColor.Fprintf(w, "    %s: %v\n", t.SourceTable, t.Err)
	}
}

// syncProgress shows a spinner per table on a terminal and plain lines
// otherwise.
type syncProgress struct {
	w       io.Writer
	spinner *spinner.Spinner
}

func newSyncProgress(w io.Writer) *syncProgress {
	p := &syncProgress{w: w}
	if w == io.Writer(os.Stdout) && term.IsTerminal(int(os.Stdout.Fd())) {
		p.spinner = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
		p.spinner.Color("cyan")
	}
	return p
}

func (p *syncProgress) TableStarted(table string, index, total int) {
	msg := fmt.Sprintf(" [%d/%d] %s", index, total, table)
	if p.spinner == nil {
		dimColor.Fprintf(p.w, " %s\n", msg)
		return
	}
	p.spinner.Suffix = msg
	p.spinner.Start()
}

func (p *syncProgress) TableFinished(res etl.TableResult) {
	if p.spinner != nil {
		p.spinner.Stop()
	}
	if res.OK() {
		successColor.Fprintf(p.w, "  ✓ %s → raw.%s (%d rows, %s)\n", res.SourceTable, res.Table, res.Rows, res.Duration.Round(time.Millisecond))
		return
	}
	errorColor.Fprintf(p.w, "  ✗ %s: %v\n", res.SourceTable, res.Err)
}

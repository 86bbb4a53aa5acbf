package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/semlayer/semlayer/internal/db"
	"github.com/semlayer/semlayer/internal/tui"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync freshness, recent imports and model builds",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().IntVarP(&statusLimit, "limit", "n", 10, "Entries per section")
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer store.Close()

	titleColor.Fprintf(w, "\n  %s\n", cfg.DuckDB.DatabasePath)
	return printStatus(ctx, w, store.DB(), statusLimit)
}

func printStatus(ctx context.Context, w io.Writer, q db.Querier, limit int) error {
	conn, err := db.LastConnection(ctx, q)
	if err != nil {
		return err
	}
	if conn != nil {
		dimColor.Fprintf(w, "  source %s/%s.%s, last connected %s\n",
			conn.Server, conn.Database, conn.Schema, conn.ConnectedAt.Format(time.DateTime))
	} else {
		dimColor.Fprintln(w, "  source never connected")
	}

	fresh, err := db.ListFreshness(ctx, q)
	if err != nil {
		return err
	}
	section(w, "Data freshness")
	table := &db.Result{Columns: []string{"table", "source", "last_sync", "rows", "status"}}
	for _, f := range fresh {
		table.Rows = append(table.Rows, []any{f.TableName, f.SourceTable, f.LastSync, f.RowCount, f.Status})
	}
	fmt.Fprintln(w, tui.RenderResult(table, 0))

	imports, err := db.RecentImportLog(ctx, q, limit)
	if err != nil {
		return err
	}
	section(w, "Recent imports")
	table = &db.Result{Columns: []string{"run", "table", "imported_at", "rows", "ms", "status"}}
	for _, e := range imports {
		table.Rows = append(table.Rows, []any{shortID(e.RunID), e.TableName, e.ImportedAt, e.RowCount, e.DurationMS, e.Status})
	}
	fmt.Fprintln(w, tui.RenderResult(table, 0))

	checks, err := db.RecentQualityChecks(ctx, q, limit)
	if err != nil {
		return err
	}
	section(w, "Quality checks")
	table = &db.Result{Columns: []string{"table", "check", "passed", "expected", "actual", "checked_at"}}
	for _, c := range checks {
		table.Rows = append(table.Rows, []any{c.TableName, c.CheckName, c.Passed, c.Expected, c.Actual, c.CheckedAt})
	}
	fmt.Fprintln(w, tui.RenderResult(table, 0))

	builds, err := db.RecentModelBuilds(ctx, q, limit)
	if err != nil {
		return err
	}
	section(w, "Model builds")
	table = &db.Result{Columns: []string{"layer", "model", "built_at", "ms", "status", "revision"}}
	for _, b := range builds {
		table.Rows = append(table.Rows, []any{b.Layer, b.Model, b.BuiltAt, b.DurationMS, b.Status, b.Revision})
	}
	fmt.Fprintln(w, tui.RenderResult(table, 0))

	views, err := db.ListMaterializedViews(ctx, q)
	if err != nil {
		return err
	}
	if len(views) > 0 {
		section(w, "Cached views")
		table = &db.Result{Columns: []string{"cache", "view", "refreshed_at", "rows", "status"}}
		for _, v := range views {
			table.Rows = append(table.Rows, []any{v.ViewName, v.SourceView, v.RefreshedAt, v.RowCount, v.Status})
		}
		fmt.Fprintln(w, tui.RenderResult(table, 0))
	}
	return nil
}

func section(w io.Writer, title string) {
	titleColor.Fprintf(w, "\n  %s\n", title)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

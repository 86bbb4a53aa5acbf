package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/semlayer/semlayer/internal/chat"
	"github.com/semlayer/semlayer/internal/db"
	"github.com/semlayer/semlayer/internal/tui"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive console to browse views and run queries",
	Long: `Opens a full-screen terminal UI over a read-only connection.

The left pane lists the staging, business, metrics and cache relations;
Enter previews one. The input box runs SQL with Ctrl+R, and Ctrl+T
switches to plain-language questions when an LLM is configured.`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

// storeBackend serves the console from a read-only store.
type storeBackend struct {
	q        db.Querier
	pipeline *chat.Pipeline
	rowLimit int
}

func (b *storeBackend) Relations(ctx context.Context) ([]db.Relation, error) {
	return db.ListRelations(ctx, b.q, db.UserSchemas...)
}

func (b *storeBackend) Query(ctx context.Context, sql string) (*db.Result, error) {
	stmt, err := db.CheckReadOnly(sql)
	if err != nil {
		return nil, err
	}
	return db.ExecuteQuery(ctx, b.q, db.LimitQuery(stmt, b.rowLimit))
}

func (b *storeBackend) Ask(ctx context.Context, question string) (*chat.Answer, error) {
	return b.pipeline.Ask(ctx, question)
}

func runConsole(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer store.Close()

	pipeline, err := newPipeline(cfg, store.DB())
	if err != nil {
		return err
	}
	backend := &storeBackend{q: store.DB(), pipeline: pipeline, rowLimit: cfg.Dashboard.RowLimit}
	return tui.RunConsole(ctx, backend, pipeline.Enabled())
}

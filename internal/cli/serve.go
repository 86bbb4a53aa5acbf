package cli

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/semlayer/semlayer/internal/dashboard"
)

var (
	serveAddr    string
	serveNoAdhoc bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analytics dashboard",
	Long: `Serve the web dashboard over a read-only connection to the store.

Pages: overview, employees, benefits, attendance, activity, SQL query and
ask. A JSON API lives under /api/v1 and Prometheus metrics under /metrics.

Examples:
  semlayer serve
  semlayer serve --addr :8080 --no-adhoc`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides dashboard.addr)")
	serveCmd.Flags().BoolVar(&serveNoAdhoc, "no-adhoc", false, "Disable the ad-hoc SQL page and endpoint")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Dashboard.Addr = serveAddr
	}
	if serveNoAdhoc {
		cfg.Dashboard.AllowAdhocSQL = false
	}

	store, err := openStore(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer store.Close()

	pipeline, err := newPipeline(cfg, store.DB())
	if err != nil {
		// the dashboard still works without questions
		logger.Warn("ask disabled", zap.Error(err))
		pipeline = nil
	}

	srv, err := dashboard.NewServer(store.DB(), dashboard.Options{
		Addr:          cfg.Dashboard.Addr,
		RowLimit:      cfg.Dashboard.RowLimit,
		CacheTTL:      cfg.CacheTTL(),
		AllowAdhocSQL: cfg.Dashboard.AllowAdhocSQL,
		Pipeline:      pipeline,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	titleColor.Fprintf(w, "\n  Dashboard on http://%s\n", cfg.Dashboard.Addr)
	dimColor.Fprintf(w, "  database %s (read-only), Ctrl+C to stop\n", cfg.DuckDB.DatabasePath)
	if pipeline == nil || !pipeline.Enabled() {
		dimColor.Fprintln(w, "  natural-language questions disabled")
	}
	return srv.Run(ctx)
}

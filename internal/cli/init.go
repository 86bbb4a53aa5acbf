package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initSkipSync bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database, load every table and build the views",
	Long: `Run a full initialization:

  1. open (or create) the DuckDB file with its schemas and metadata tables
  2. connect to SQL Server and record the connection
  3. copy every table into raw.*
  4. build the staging, business and metrics views

Examples:
  semlayer init
  semlayer init --skip-sync   # only rebuild schemas and views`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initSkipSync, "skip-sync", false, "Skip the SQL Server import")
}

func runInit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	titleColor.Fprintf(w, "\n  Initializing %s\n", cfg.DuckDB.DatabasePath)
	store, err := openStore(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer store.Close()
	successColor.Fprintln(w, "  ✓ Schemas and metadata tables ready")

	var syncFailed int
	if !initSkipSync {
		res, err := syncTables(ctx, w, cfg, store)
		if err != nil {
			return err
		}
		syncFailed = len(res.Failed())
	}

	build, err := buildModels(ctx, w, cfg, store)
	if err != nil {
		return err
	}
	_, buildFailed := build.Counts()

	fmt.Fprintln(w)
	if syncFailed+buildFailed > 0 {
		return fmt.Errorf("initialization finished with %d table and %d model failures", syncFailed, buildFailed)
	}
	successColor.Fprintln(w, "  Initialization complete. Try 'semlayer serve' or 'semlayer report examples'.")
	return nil
}

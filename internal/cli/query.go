package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semlayer/semlayer/internal/db"
	"github.com/semlayer/semlayer/internal/tui"
)

var (
	queryMaxRows int
	queryJSON    bool
)

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run a read-only SQL query against the store",
	Long: `Run a single SELECT or WITH statement and print the result.

The database is opened read-only and write statements are rejected.

Examples:
  semlayer query "SELECT * FROM business.employee_summary LIMIT 5"
  semlayer query --json "SELECT department, COUNT(*) FROM business.employee_summary GROUP BY 1"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().IntVar(&queryMaxRows, "max-rows", 100, "Rows to print (0 for all)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Print rows as JSON")
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	stmt, err := db.CheckReadOnly(strings.Join(args, " "))
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer store.Close()

	res, err := db.ExecuteQuery(ctx, store.DB(), stmt)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Maps())
	}
	fmt.Fprintln(w, tui.RenderResult(res, queryMaxRows))
	return nil
}

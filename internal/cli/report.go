package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/semlayer/semlayer/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report [set]",
	Short: "Run a canned set of analytics queries",
	Long: fmt.Sprintf(`Run a named set of queries against the views and print each result.

A failing query is reported and the set continues. Sets: %s

Examples:
  semlayer report
  semlayer report healthcare`, strings.Join(report.Names(), ", ")),
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: report.Names(),
	RunE:      runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	name := "examples"
	if len(args) == 1 {
		name = args[0]
	}
	set, ok := report.Lookup(name)
	if !ok {
		return fmt.Errorf("unknown report %q (available: %s)", name, strings.Join(report.Names(), ", "))
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

	outcomes := report.Run(ctx, store.DB(), set, logger)
	return report.Render(cmd.OutOrStdout(), set, outcomes)
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/semlayer/semlayer/internal/source"
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the base tables of the source schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		w := cmd.OutOrStdout()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		src, err := source.Open(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer src.Close()

		tables, err := src.ListTables(ctx)
		if err != nil {
			return err
		}
		titleColor.Fprintf(w, "\n  %s.%s\n", cfg.SQLServer.Database, cfg.SQLServer.Schema)
		for _, t := range tables {
			fmt.Fprintf(w, "    %s\n", t)
		}
		dimColor.Fprintf(w, "\n  %d tables\n", len(tables))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}

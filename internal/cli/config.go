package cli

import (
	"github.com/spf13/cobra"

	"github.com/semlayer/semlayer/internal/config"
	"github.com/semlayer/semlayer/internal/models"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the config file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file and model directories",
	Long: `Write a config file with the built-in defaults to --config and create
the model layer directories it names. An existing config is left alone.

Credentials are better kept in .env:

  SQL_SERVER_USERNAME=...
  SQL_SERVER_PASSWORD=...`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()

	if err := config.WriteDefault(configPath); err != nil {
		return err
	}
	successColor.Fprintf(w, "  ✓ Wrote %s\n", configPath)

	created, err := models.Scaffold(config.Default().Models)
	for _, dir := range created {
		successColor.Fprintf(w, "  ✓ Created %s\n", dir)
	}
	return err
}

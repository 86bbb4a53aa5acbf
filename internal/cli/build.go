package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/semlayer/semlayer/internal/config"
	"github.com/semlayer/semlayer/internal/db"
	"github.com/semlayer/semlayer/internal/models"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the staging, business and metrics views",
	Long: `Run the SQL files under models/<layer>/ in layer order.

Files within a layer run in lexical order. A failing model is reported and
the build continues with the next file.`,
	Args: cobra.NoArgs,
	RunE: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
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

	res, err := buildModels(ctx, cmd.OutOrStdout(), cfg, store)
	if err != nil {
		return err
	}
	if _, failed := res.Counts(); failed > 0 {
		return fmt.Errorf("%d models failed to build", failed)
	}
	return nil
}

func buildModels(ctx context.Context, w io.Writer, cfg *config.Config, store *db.Store) (*models.BuildResult, error) {
	titleColor.Fprintf(w, "\n  Building models from %s\n", cfg.Models.Dir)

	installer := models.NewInstaller(store, cfg.Models, logger).OnModel(func(mr models.ModelResult) {
		if mr.Err != nil {
			errorColor.Fprintf(w, "  ✗ %s/%s: %v\n", mr.Layer, mr.Name, mr.Err)
			return
		}
		successColor.Fprintf(w, "  ✓ %s/%s (%s)\n", mr.Layer, mr.Name, mr.Duration.Round(time.Millisecond))
	})

	res, err := installer.Build(ctx)
	if res != nil {
		for _, l := range res.Layers {
			if l.Missing {
				warnColor.Fprintf(w, "  ! layer %s has no directory, skipped\n", l.Layer)
			}
		}
	}
	if err != nil {
		return res, fmt.Errorf("build interrupted: %w", err)
	}

	ok, failed := res.Counts()
	fmt.Fprintln(w)
	if failed == 0 {
		successColor.Fprintf(w, "  Built %d models\n", ok)
	} else {
		warnColor.Fprintf(w, "  Built %d models, %d failed\n", ok, failed)
	}
	if res.Revision != "" {
		dimColor.Fprintf(w, "  revision %s\n", res.Revision)
	}
	return res, nil
}

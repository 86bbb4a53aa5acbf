package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/semlayer/semlayer/internal/models"
)

var cacheRefresh bool

var cacheCmd = &cobra.Command{
	Use:   "cache [view]",
	Short: "Materialize a view into the cache schema",
	Long: `Copy the current contents of a view into cache.<schema>__<name> for
faster reads.

A bare view name is looked up in the business schema. Without a view the
command lists the candidates to pick from; --refresh rebuilds every cache
table that has been materialized before.

Examples:
  semlayer cache business.employee_summary
  semlayer cache metrics.headcount_metrics
  semlayer cache --refresh`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCache,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.Flags().BoolVar(&cacheRefresh, "refresh", false, "Refresh all previously materialized views")
}

func runCache(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer store.Close()

	cache := models.NewCache(store, logger)

	if cacheRefresh {
		results, err := cache.RefreshAll(ctx)
		for _, r := range results {
			successColor.Fprintf(w, "  ✓ %s → %s (%d rows)\n", r.View, r.CacheTable, r.Rows)
		}
		if len(results) == 0 && err == nil {
			dimColor.Fprintln(w, "  No materialized views to refresh")
		}
		return err
	}

	var view string
	if len(args) == 1 {
		view = args[0]
	} else {
		view, err = pickView(cmd, cache)
		if err != nil {
			return err
		}
	}

	res, err := cache.Materialize(ctx, view)
	if err != nil {
		return err
	}
	successColor.Fprintf(w, "  ✓ %s → %s (%d rows, %s)\n", res.View, res.CacheTable, res.Rows, res.Duration.Round(time.Millisecond))
	return nil
}

func pickView(cmd *cobra.Command, cache *models.Cache) (string, error) {
	views, err := cache.Candidates(cmd.Context())
	if err != nil {
		return "", err
	}
	if len(views) == 0 {
		return "", errors.New("no views found; run 'semlayer build' first")
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errors.New("no view given; pass one as an argument")
	}

	names := make([]string, len(views))
	for i, v := range views {
		names[i] = v.FullName()
	}
	prompt := promptui.Select{
		Label: "View to materialize",
		Items: names,
		Size:  12,
	}
	_, choice, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("selection cancelled: %w", err)
	}
	return choice, nil
}

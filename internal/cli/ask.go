package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/semlayer/semlayer/internal/chat"
	"github.com/semlayer/semlayer/internal/config"
	"github.com/semlayer/semlayer/internal/db"
	"github.com/semlayer/semlayer/internal/llm"
	"github.com/semlayer/semlayer/internal/tui"
)

var (
	askProvider string
	askModel    string
	askBaseURL  string
	askShowSQL  bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about the HR data in plain language",
	Long: `Translate a question into SQL over the staging, business and metrics
views, run it read-only and summarize the answer.

Supported providers: ollama, openai, anthropic, gemini

Examples:
  semlayer ask "How many employees are in each department?"
  semlayer ask --provider anthropic "Which departments have the most overtime?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVar(&askProvider, "provider", "", "LLM provider (overrides llm.provider)")
	askCmd.Flags().StringVar(&askModel, "model", "", "Model to use")
	askCmd.Flags().StringVar(&askBaseURL, "base-url", "", "Custom API base URL")
	askCmd.Flags().BoolVar(&askShowSQL, "sql", true, "Print the generated SQL")
}

// applyLLMFlags overrides the llm section with command-line flags.
func applyLLMFlags(cfg *config.Config) {
	if askProvider != "" && askProvider != cfg.LLM.Provider {
		cfg.LLM.Provider = askProvider
		cfg.LLM.Model = ""
		cfg.LLM.BaseURL = ""
		cfg.LLM.APIKey = ""
	}
	if askModel != "" {
		cfg.LLM.Model = askModel
	}
	if askBaseURL != "" {
		cfg.LLM.BaseURL = askBaseURL
	}
}

func newPipeline(cfg *config.Config, q db.Querier) (*chat.Pipeline, error) {
	client, err := llm.FromConfig(cfg)
	if errors.Is(err, llm.ErrDisabled) {
		return chat.NewPipeline(nil, q, cfg.Dashboard.RowLimit, logger), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return chat.NewPipeline(client, q, cfg.Dashboard.RowLimit, logger), nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()
	question := strings.Join(args, " ")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyLLMFlags(cfg)

	store, err := openStore(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer store.Close()

	pipeline, err := newPipeline(cfg, store.DB())
	if err != nil {
		return err
	}
	if !pipeline.Enabled() {
		return chat.ErrLLMDisabled
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
	s.Suffix = " Thinking..."
	s.Start()
	ans, err := pipeline.Ask(ctx, question)
	s.Stop()

	if ans != nil && ans.SQL != "" && (askShowSQL || err != nil) {
		label := "SQL"
		if ans.Repaired {
			label = "SQL (repaired)"
		}
		dimColor.Fprintf(w, "\n  %s:\n", label)
		fmt.Fprintln(w, tui.Dim(ans.SQL))
	}
	if err != nil {
		return fmt.Errorf("failed to answer question: %w", err)
	}

	fmt.Fprintln(w, tui.RenderResult(ans.Result, 20))
	fmt.Fprintln(w, tui.RenderMarkdown(ans.Summary, 100))
	return nil
}

package cli

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/talkdata-labs/talkdata/internal/engine"
	"github.com/talkdata-labs/talkdata/internal/llm"
)

// NewAskCommand creates the ask command.
func NewAskCommand() *cobra.Command {
	var (
		format    string
		modelTier string
		showSQL   bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a one-shot question",
		Long: `Run one question through the full pipeline and print the result.

Examples:
  talkdata ask "How many orders were placed last month?"
  talkdata ask -o json "Top 5 customers by revenue"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := buildApp(ctx, cmd.Flags())
			if err != nil {
				return err
			}
			defer app.Close()

			res := app.engine.Run(ctx, engine.Request{
				Question: strings.Join(args, " "),
				Tier:     llm.Tier(modelTier),
			})
			if res.Status != "success" {
				return fmt.Errorf("%s", res.Error)
			}

			out := cmd.OutOrStdout()
			if showSQL && res.FinalSQL != "" {
				fmt.Fprintf(out, "-- %s\n%s\n\n", res.ModelUsed, res.FinalSQL)
			}
			if err := renderResult(out, res, format); err != nil {
				return err
			}
			if res.Truncated {
				fmt.Fprintln(out, "(result truncated at row limit)")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", "table", "Output format (table|json|csv|md)")
	cmd.Flags().StringVar(&modelTier, "model", "", "Force a model tier (flash|pro)")
	cmd.Flags().BoolVar(&showSQL, "sql", false, "Print the generated SQL before the result")

	return cmd
}

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newsradar/internal/logger"
	"newsradar/internal/pipeline"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Classify unanalyzed articles in batches",
	Long: `Run the LLM-assisted classification over articles that have not been
analyzed yet, in concurrent batches, and update tracked keyword counts from
the keywords the model extracts.

Example:
  newsradar analyze
  newsradar analyze --batch-size 10 --limit 100`,
	Run: func(cmd *cobra.Command, args []string) {
		batchSize, _ := cmd.Flags().GetInt("batch-size")
		limit, _ := cmd.Flags().GetInt("limit")

		if err := runAnalyze(cmd.Context(), batchSize, limit); err != nil {
			logger.Error("Analysis failed", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().Int("batch-size", 0, "articles per batch (overrides config)")
	analyzeCmd.Flags().Int("limit", 0, "maximum articles to analyze (overrides config)")
}

func runAnalyze(ctx context.Context, batchSize, limit int) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	provider, client, err := newProvider(ctx, st, "analyze")
	if err != nil {
		return err
	}
	defer client.Close()

	opts := pipelineOptions()
	if batchSize > 0 {
		opts.BatchSize = batchSize
	}
	if limit > 0 {
		opts.AnalysisLimit = limit
	}

	tally, err := pipeline.New(provider, st, opts).AnalyzeBacklog(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Analyzed %d article(s): %d succeeded, %d failed, %d skipped\n",
		tally.Total, tally.Succeeded, tally.Failed, tally.Skipped)
	for _, msg := range tally.Errors() {
		fmt.Printf("  Error: %s\n", msg)
	}
	return nil
}

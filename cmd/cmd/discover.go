package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"newsradar/internal/logger"
	"newsradar/internal/pipeline"
	"newsradar/internal/usage"
)

var discoverCmd = &cobra.Command{
	Use:   "discover [keywords...]",
	Short: "Run one discovery pass for the given keywords",
	Long: `Ask the model for recent news articles per keyword, extract structured
records from its response, filter by relevance, deduplicate by URL and store
the survivors.

When no keywords are given, the active tracked keywords are used.

Example:
  newsradar discover "mortgage rates" "housing market"
  newsradar discover --min-score 0.8 --dry-run "fed policy"`,
	Run: func(cmd *cobra.Command, args []string) {
		minScore, _ := cmd.Flags().GetFloat64("min-score")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		if err := runDiscover(cmd.Context(), args, minScore, dryRun); err != nil {
			logger.Error("Discovery failed", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().Float64("min-score", -1, "minimum relevance score (overrides config)")
	discoverCmd.Flags().Bool("dry-run", false, "estimate prompt cost without calling the model")
}

func runDiscover(ctx context.Context, keywords []string, minScore float64, dryRun bool) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if len(keywords) == 0 {
		tracked, err := st.ListActiveTrackedKeywords(ctx)
		if err != nil {
			return fmt.Errorf("failed to load tracked keywords: %w", err)
		}
		for _, entry := range tracked {
			keywords = append(keywords, entry.Keyword)
		}
	}
	if len(keywords) == 0 {
		return fmt.Errorf("no keywords given and no active tracked keywords")
	}

	opts := pipelineOptions()
	if minScore >= 0 {
		opts.MinScore = minScore
	}

	if dryRun {
		return estimateDiscovery(keywords, opts)
	}

	provider, client, err := newProvider(ctx, st, "discover")
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := pipeline.New(provider, st, opts).Discover(ctx, keywords)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s\n", summary.RunID)
	fmt.Printf("  Keywords:            %s\n", strings.Join(summary.Keywords, ", "))
	fmt.Printf("  Candidates:          %d\n", summary.TotalCandidates)
	fmt.Printf("  Inserted:            %d\n", summary.Inserted)
	fmt.Printf("  Duplicates skipped:  %d\n", summary.DuplicateSkips)
	fmt.Printf("  Low score skipped:   %d\n", summary.LowScoreSkips)
	fmt.Printf("  Validation drops:    %d\n", summary.ValidationDrops)
	fmt.Printf("  Extraction failures: %d\n", summary.ExtractionFailures)
	for _, msg := range summary.Errors {
		fmt.Printf("  Error: %s\n", msg)
	}
	return nil
}

// estimateDiscovery prices the prompts without making any model calls.
func estimateDiscovery(keywords []string, opts pipeline.Options) error {
	template := opts.PromptTemplate
	if template == "" {
		template = pipeline.DefaultPromptTemplate
	}

	var totalTokens int
	for _, keyword := range keywords {
		prompt := strings.ReplaceAll(template, pipeline.KeywordPlaceholder, keyword)
		totalTokens += usage.EstimateTokenCount(prompt)
	}
	// Assume responses roughly twice the prompt size.
	cost := usage.EstimateCost(opts.Generation.Model, totalTokens, totalTokens*2)

	fmt.Printf("Dry run: %d keyword(s), ~%d prompt tokens, estimated cost $%.4f\n",
		len(keywords), totalTokens, cost)
	return nil
}

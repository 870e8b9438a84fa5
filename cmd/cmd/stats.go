package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"newsradar/internal/logger"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store contents and accumulated usage cost",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runStats(cmd.Context()); err != nil {
			logger.Error("Failed to get stats", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(ctx context.Context) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := st.GetStats(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	fmt.Printf("Articles:       %d (%d unanalyzed)\n", stats.ArticleCount, stats.UnanalyzedCount)
	fmt.Printf("Clusters:       %d\n", stats.ClusterCount)
	fmt.Printf("Keywords:       %d\n", stats.KeywordCount)
	fmt.Printf("Model calls:    %d\n", stats.UsageCallCount)
	fmt.Printf("Estimated cost: $%.4f\n", stats.TotalCost)
	fmt.Printf("Database size:  %.1f KB\n", float64(stats.DatabaseSize)/1024)
	return nil
}

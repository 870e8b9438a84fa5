package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"newsradar/internal/core"
	"newsradar/internal/logger"
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "List tracked keywords and their match counts",
	Run: func(cmd *cobra.Command, args []string) {
		all, _ := cmd.Flags().GetBool("all")
		if err := runListKeywords(cmd.Context(), all); err != nil {
			logger.Error("Failed to list keywords", err)
			os.Exit(1)
		}
	},
}

var keywordsAddCmd = &cobra.Command{
	Use:   "add [keyword]",
	Short: "Track a new keyword",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := setKeywordStatus(cmd.Context(), args[0], core.KeywordStatusActive); err != nil {
			logger.Error("Failed to add keyword", err)
			os.Exit(1)
		}
		fmt.Printf("Tracking %q\n", args[0])
	},
}

var keywordsPauseCmd = &cobra.Command{
	Use:   "pause [keyword]",
	Short: "Pause a tracked keyword",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := setKeywordStatus(cmd.Context(), args[0], core.KeywordStatusPaused); err != nil {
			logger.Error("Failed to pause keyword", err)
			os.Exit(1)
		}
		fmt.Printf("Paused %q\n", args[0])
	},
}

var keywordsArchiveCmd = &cobra.Command{
	Use:   "archive [keyword]",
	Short: "Archive a tracked keyword",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := setKeywordStatus(cmd.Context(), args[0], core.KeywordStatusArchived); err != nil {
			logger.Error("Failed to archive keyword", err)
			os.Exit(1)
		}
		fmt.Printf("Archived %q\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(keywordsCmd)
	keywordsCmd.AddCommand(keywordsAddCmd)
	keywordsCmd.AddCommand(keywordsPauseCmd)
	keywordsCmd.AddCommand(keywordsArchiveCmd)

	keywordsCmd.Flags().Bool("all", false, "include paused and archived keywords")
}

func runListKeywords(ctx context.Context, all bool) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	var entries []core.TrackedKeyword
	if all {
		entries, err = st.ListTrackedKeywords(ctx)
	} else {
		entries, err = st.ListActiveTrackedKeywords(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to list keywords: %w", err)
	}

	if len(entries) == 0 {
		fmt.Println("No tracked keywords.")
		return nil
	}

	fmt.Printf("%-30s %-10s %8s  %s\n", "KEYWORD", "STATUS", "ARTICLES", "LAST MATCHED")
	for _, entry := range entries {
		lastMatched := "-"
		if !entry.LastMatched.IsZero() {
			lastMatched = entry.LastMatched.Format(time.DateOnly)
		}
		fmt.Printf("%-30s %-10s %8d  %s\n", entry.Keyword, entry.Status, entry.ArticleCount, lastMatched)
	}
	return nil
}

// setKeywordStatus upserts by keyword text; an existing entry keeps its
// identity and count, only the status moves.
func setKeywordStatus(ctx context.Context, keyword, status string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	return st.SaveTrackedKeyword(ctx, core.TrackedKeyword{
		ID:      uuid.New().String(),
		Keyword: keyword,
		Status:  status,
	})
}

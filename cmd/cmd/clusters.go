package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"newsradar/internal/core"
	"newsradar/internal/logger"
)

var clustersCmd = &cobra.Command{
	Use:   "clusters",
	Short: "List the active classification clusters",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runListClusters(cmd.Context()); err != nil {
			logger.Error("Failed to list clusters", err)
			os.Exit(1)
		}
	},
}

var clustersAddCmd = &cobra.Command{
	Use:   "add [primary-theme]",
	Short: "Add a cluster to the classification taxonomy",
	Long: `Add a cluster. The sub-theme and signal keywords are optional.

Example:
  newsradar clusters add "Housing" --sub "Rates" --keywords "mortgage,refinance"`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sub, _ := cmd.Flags().GetString("sub")
		keywordList, _ := cmd.Flags().GetString("keywords")

		cluster := core.Cluster{
			ID:           uuid.New().String(),
			PrimaryTheme: args[0],
			SubTheme:     sub,
			Active:       true,
		}
		for _, keyword := range strings.Split(keywordList, ",") {
			if keyword = strings.TrimSpace(keyword); keyword != "" {
				cluster.Keywords = append(cluster.Keywords, keyword)
			}
		}

		if err := runAddCluster(cmd.Context(), cluster); err != nil {
			logger.Error("Failed to add cluster", err)
			os.Exit(1)
		}
		fmt.Printf("Added cluster %q\n", cluster.Label())
	},
}

func init() {
	rootCmd.AddCommand(clustersCmd)
	clustersCmd.AddCommand(clustersAddCmd)

	clustersAddCmd.Flags().String("sub", "", "sub-theme")
	clustersAddCmd.Flags().String("keywords", "", "comma-separated signal keywords")
}

func runListClusters(ctx context.Context) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	clusters, err := st.ListActiveClusters(ctx)
	if err != nil {
		return fmt.Errorf("failed to list clusters: %w", err)
	}

	if len(clusters) == 0 {
		fmt.Println("No active clusters. Add one with: newsradar clusters add")
		return nil
	}

	for _, cluster := range clusters {
		fmt.Printf("%-40s %s\n", cluster.Label(), strings.Join(cluster.Keywords, ", "))
	}
	return nil
}

func runAddCluster(ctx context.Context, cluster core.Cluster) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	return st.SaveCluster(ctx, cluster)
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"newsradar/internal/logger"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run discovery on a cron schedule",
	Long: `Run discovery for the active tracked keywords on the configured cron
schedule (schedule.cron, default "0 6 * * *") until interrupted.

Example:
  newsradar schedule
  newsradar schedule --cron "0 */6 * * *"`,
	Run: func(cmd *cobra.Command, args []string) {
		expr, _ := cmd.Flags().GetString("cron")
		if err := runSchedule(cmd.Context(), expr); err != nil {
			logger.Error("Scheduler failed", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().String("cron", "", "cron expression (overrides config)")
}

func runSchedule(ctx context.Context, expr string) error {
	if expr == "" {
		expr = cfg.Schedule.Cron
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := cron.New()
	_, err := scheduler.AddFunc(expr, func() {
		logger.Info("Scheduled discovery starting", "cron", expr)
		if err := runDiscover(ctx, nil, -1, false); err != nil {
			logger.Error("Scheduled discovery failed", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	logger.Info("Scheduler started", "cron", expr)
	scheduler.Start()

	<-ctx.Done()
	logger.Info("Scheduler stopping")

	// Let an in-flight run finish before exiting.
	<-scheduler.Stop().Done()
	return nil
}

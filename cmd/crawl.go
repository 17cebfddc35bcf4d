package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newCrawlCmd creates the 'crawl' subcommand. It runs a single crawl
// cycle over every enabled site and exits.
func newCrawlCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Runs one crawl cycle and exits",
		Long: `Crawls every enabled source site once, recording observations
and resolving listings, then exits. Useful for cron-driven setups and
for verifying site configuration.`,
		RunE: runCrawlCommand,
	}
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	succeeded, failed := rt.scheduler.RunCycle(ctx)
	rt.logger.Info("crawl cycle finished",
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
	)
	return nil
}

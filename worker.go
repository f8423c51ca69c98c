package main

import (
	"os"

	"github.com/spf13/cobra"

	"ratiofetcher/internal/dart"
	"ratiofetcher/internal/scheduler"
)

// fetchWorkerCmd serves one job for the process executor: a JSON job on
// stdin, a JSON outcome on stdout. Logs go to stderr.
var fetchWorkerCmd = &cobra.Command{
	Use:    "fetch-worker",
	Short:  "Fetch a single target for the process executor",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		limiter := newLimiter(cfg)

		dir, _, err := loadDirectory(ctx, cfg, limiter)
		if err != nil {
			return err
		}
		client := dart.NewClient(dartOptions(cfg, limiter), dir)
		defer client.Close()

		return scheduler.ServeWorker(ctx, os.Stdin, cmd.OutOrStdout(), newWorker(cfg, client))
	},
}

func init() {
	rootCmd.AddCommand(fetchWorkerCmd)
}

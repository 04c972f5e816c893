package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/config"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/pipeline"
)

func newRunCommand(configFlag *string) *cobra.Command {
	var opts pipeline.Options

	cmd := &cobra.Command{
		Use:   "run <slug>",
		Short: "Process one feed end to end",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := args[0]
			cfg, err := config.LoadFeed(*configFlag, slug)
			if err != nil {
				return err
			}
			logger, err := buildLogger(cfg)
			if err != nil {
				return err
			}

			release, err := acquireRunLock(cfg, slug)
			if err != nil {
				return err
			}
			defer release()

			manager, cleanup, err := buildManager(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			report, runErr := manager.Run(cmd.Context(), opts)
			printReport(cmd, report)
			return runErr
		},
	}

	cmd.Flags().BoolVar(&opts.FullRescan, "full-rescan", false, "Treat every entry as a candidate regardless of stored state")
	cmd.Flags().BoolVar(&opts.RetryFailed, "retry-failed", false, "Re-attempt entries whose last attempt failed at the same revision")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Override the configured max entries for this run")
	cmd.Flags().BoolVar(&opts.SkipDeploy, "skip-deploy", false, "Leave the pending-deploy flag untouched")

	return cmd
}

func printReport(cmd *cobra.Command, report *pipeline.RunReport) {
	if report == nil {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Feed %s: %d entries, %d candidates\n", report.Slug, report.Entries, report.Candidates)
	fmt.Fprintf(out, "  processed %d, restored %d, failed %d, skipped %d\n",
		report.Processed, report.Restored, report.Failed, report.Skipped)
	fmt.Fprintf(out, "  characters this run %d, cumulative %d\n",
		report.Characters, report.CumulativeCharacters)
	if report.DeployAttempted {
		status := "failed"
		if report.DeploySucceeded {
			status = "succeeded"
		}
		fmt.Fprintf(out, "  deploy %s\n", status)
	}
	fmt.Fprintf(out, "  duration %s\n", report.Finished.Sub(report.Started).Round(time.Millisecond))
}

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/config"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/logging"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/pipeline"
)

func newDaemonCommand(configFlag *string) *cobra.Command {
	var schedule string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run all configured feeds on a cron schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(*configFlag)
			if err != nil {
				return err
			}
			if len(cfg.Daemon.Feeds) == 0 {
				return fmt.Errorf("daemon.feeds is empty; nothing to schedule")
			}
			logger, err := buildLogger(cfg)
			if err != nil {
				return err
			}
			spec := cfg.Daemon.Schedule
			if schedule != "" {
				spec = schedule
			}

			ctx := cmd.Context()
			runAll := func() {
				for _, slug := range cfg.Daemon.Feeds {
					if ctx.Err() != nil {
						return
					}
					runFeed(cmd, configFlag, slug)
				}
			}

			scheduler := cron.New()
			if _, err := scheduler.AddFunc(spec, runAll); err != nil {
				return fmt.Errorf("invalid schedule %q: %w", spec, err)
			}

			logger.Info("daemon started",
				logging.String("schedule", spec),
				logging.Int("feeds", len(cfg.Daemon.Feeds)))
			runAll()
			scheduler.Start()
			defer scheduler.Stop()

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case s := <-sig:
				logger.Info("daemon stopping", logging.String("signal", s.String()))
				return nil
			}
		},
	}

	cmd.Flags().StringVar(&schedule, "schedule", "", "Cron schedule override (default from config)")
	return cmd
}

// runFeed executes one feed inside the daemon loop. Failures are reported and
// swallowed so one broken feed cannot stall the schedule.
func runFeed(cmd *cobra.Command, configFlag *string, slug string) {
	cfg, err := config.LoadFeed(*configFlag, slug)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "feed %s: %v\n", slug, err)
		return
	}
	logger, err := buildLogger(cfg)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "feed %s: %v\n", slug, err)
		return
	}

	release, err := acquireRunLock(cfg, slug)
	if err != nil {
		logger.Warn("skipping scheduled run", logging.Error(err))
		return
	}
	defer release()

	manager, cleanup, err := buildManager(cfg, logger)
	if err != nil {
		logger.Error("pipeline setup failed", logging.Error(err))
		return
	}
	defer cleanup()

	if _, err := manager.Run(cmd.Context(), pipeline.Options{}); err != nil {
		logger.Error("scheduled run failed", logging.Error(err))
	}
}

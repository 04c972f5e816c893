package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/config"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services/usage"
)

func newUsageCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "usage",
		Short: "Show month-to-date synthesis billing from the provider export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, _, err := config.Load(*configFlag)
			if err != nil {
				return err
			}
			reporter, err := usage.NewReporter(cfg)
			if err != nil {
				return err
			}
			report, err := reporter.Collect(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			groups := table.NewWriter()
			groups.SetOutputMirror(out)
			groups.SetTitle("Usage since %s (total %d characters)", report.MonthStart, report.Total)
			groups.AppendHeader(table.Row{"Voice group", "Characters", "Free tier", "Remaining"})
			for _, g := range report.ByGroup {
				groups.AppendRow(table.Row{g.Group, g.Characters, g.FreeTier, g.Remaining})
			}
			groups.Render()

			if len(report.Daily) > 0 {
				daily := table.NewWriter()
				daily.SetOutputMirror(out)
				daily.AppendHeader(table.Row{"Day", "Characters"})
				for _, d := range report.Daily {
					daily.AppendRow(table.Row{d.Date, d.Characters})
				}
				daily.Render()
			}
			return nil
		},
	}
}

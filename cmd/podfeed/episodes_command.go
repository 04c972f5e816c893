package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/catalog"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/config"
)

func newEpisodesCommand(configFlag *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "episodes <slug>",
		Short: "List locally cataloged episodes for a feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := args[0]
			cfg, err := config.LoadFeed(*configFlag, slug)
			if err != nil {
				return err
			}
			store, err := catalog.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			episodes, err := store.List(cmd.Context(), slug)
			if err != nil {
				return err
			}
			if len(episodes) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No cataloged episodes for feed %q\n", slug)
				return nil
			}
			if limit > 0 && len(episodes) > limit {
				episodes = episodes[:limit]
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Published", "Title", "Chars", "Generated", "Identifier"})
			for _, ep := range episodes {
				t.AppendRow(table.Row{ep.PubUTC, truncateTitle(ep.Title), ep.Characters, ep.Generated, ep.Identifier})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Show at most this many episodes")
	return cmd
}

func truncateTitle(title string) string {
	runes := []rune(title)
	if len(runes) <= 48 {
		return title
	}
	return string(runes[:47]) + "…"
}

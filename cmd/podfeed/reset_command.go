package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/catalog"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/config"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/feed"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/state"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/statestore"
)

func newResetCommand(configFlag *string) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "reset <slug> <article-link>",
		Short: "Forget an entry so the next run reprocesses it",
		Long: `Reset removes an entry from the durable state document and deletes its
local MP3, sidecar, and catalog row. The next run treats the article as new.
Remote audio is left in place; the re-run overwrites it under the same
identifier.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug, link := args[0], args[1]
			cfg, err := config.LoadFeed(*configFlag, slug)
			if err != nil {
				return err
			}
			logger, err := buildLogger(cfg)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			identifier := feed.Identifier(slug, link)
			fmt.Fprintf(out, "Entry identifier: %s\n", identifier)

			store, err := statestore.NewClient(cfg, logger)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			stateKey := cfg.FeedStateKey()
			data, found, err := store.Get(ctx, stateKey)
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintln(out, "No state document exists for this feed.")
			} else {
				fs, err := state.Decode(data)
				if err != nil {
					return err
				}
				if !fs.Remove(identifier) {
					fmt.Fprintln(out, "Entry not present in state document.")
				} else if dryRun {
					fmt.Fprintln(out, "Would remove entry from state document.")
				} else {
					encoded, err := fs.Encode()
					if err != nil {
						return err
					}
					if err := store.Put(ctx, stateKey, encoded); err != nil {
						return err
					}
					fmt.Fprintln(out, "Removed entry from state document.")
				}
			}

			cat, err := catalog.Open(cfg)
			if err != nil {
				fmt.Fprintf(out, "Catalog unavailable: %v\n", err)
				return nil
			}
			defer cat.Close()

			ep, ok, err := cat.Get(ctx, identifier)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(out, "No catalog row for this entry.")
				return nil
			}
			for _, path := range []string{ep.MP3Path, ep.SidecarPath} {
				if path == "" {
					continue
				}
				if dryRun {
					fmt.Fprintf(out, "Would delete %s\n", path)
					continue
				}
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					fmt.Fprintf(out, "Could not delete %s: %v\n", path, err)
				} else {
					fmt.Fprintf(out, "Deleted %s\n", path)
				}
			}
			if dryRun {
				fmt.Fprintln(out, "Would delete catalog row.")
				return nil
			}
			if err := cat.Delete(ctx, identifier); err != nil {
				return err
			}
			fmt.Fprintln(out, "Deleted catalog row.")
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be removed without changing anything")
	return cmd
}

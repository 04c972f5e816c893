package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/config"
)

func newConfigCommand(configFlag *string) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(configFlag))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Add a per-feed file under feeds/<slug>.toml before running podfeed run.")
			return nil
		},
	}

	cmd.Flags().StringVar(&targetPath, "path", "", "Destination path for the sample config")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func newConfigShowCommand(configFlag *string) *cobra.Command {
	var slug string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if slug != "" {
				cfg, err := config.LoadFeed(*configFlag, slug)
				if err != nil {
					return err
				}
				printConfig(out, cfg, slug)
				return nil
			}

			cfg, path, exists, err := config.Load(*configFlag)
			if err != nil {
				return err
			}
			if !exists {
				fmt.Fprintf(out, "No config file found; showing defaults (would load %s)\n\n", path)
			} else {
				fmt.Fprintf(out, "Loaded %s\n\n", path)
			}
			printConfig(out, cfg, "")
			return nil
		},
	}

	cmd.Flags().StringVar(&slug, "feed", "", "Overlay the per-feed config for this slug")
	return cmd
}

func printConfig(out io.Writer, cfg *config.Config, slug string) {
	if slug != "" {
		fmt.Fprintf(out, "feed: %s (%s)\n", cfg.Feed.Slug, cfg.Feed.RSSURL)
		fmt.Fprintf(out, "state key: %s\n", cfg.FeedStateKey())
		fmt.Fprintf(out, "feed file: %s\n", cfg.FeedPath())
	}
	fmt.Fprintf(out, "output dir: %s\n", cfg.Paths.OutputDir)
	fmt.Fprintf(out, "public dir: %s\n", cfg.Paths.PublicDir)
	fmt.Fprintf(out, "catalog db: %s\n", cfg.Paths.CatalogDB)
	fmt.Fprintf(out, "voice: %s (%s)\n", cfg.TTS.Voice, cfg.TTS.Language)
	fmt.Fprintf(out, "byte budget: %d, chunk chars: %d\n", cfg.TTS.ByteBudget, cfg.TTS.ChunkChars)
	fmt.Fprintf(out, "kv namespace: %s\n", nonEmpty(cfg.KV.NamespaceID, cfg.KV.NamespaceName))
	fmt.Fprintf(out, "pages project: %s\n", nonEmpty(cfg.Deploy.PagesProject, "(deploys disabled)"))
	fmt.Fprintf(out, "keep last: %d\n", cfg.Workflow.KeepLast)
}

func nonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

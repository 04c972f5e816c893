package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/catalog"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/config"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/deploy"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/feed"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/logging"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/pipeline"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/rss"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services/archive"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services/content"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services/tts"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/statestore"
)

func buildLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})
}

// acquireRunLock takes the per-feed lock so overlapping runs cannot interleave
// state writes. The caller must invoke the returned release func.
func acquireRunLock(cfg *config.Config, slug string) (func(), error) {
	if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lock := flock.New(filepath.Join(cfg.Paths.LogDir, "run-"+slug+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another run for feed %q is already in progress", slug)
	}
	return func() { _ = lock.Unlock() }, nil
}

// buildManager wires the full pipeline for one feed. The returned cleanup
// closes the catalog handle.
func buildManager(cfg *config.Config, logger *slog.Logger) (*pipeline.Manager, func(), error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, nil, err
	}

	store, err := statestore.NewClient(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	ttsClient, err := tts.NewClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	uploader, err := archive.NewUploader(cfg, logger)
	if err != nil {
		return nil, nil, err
	}

	httpClient := pipeline.DefaultHTTPClient(cfg)
	cleanup := func() {}
	var cat pipeline.Catalog
	if catStore, catErr := catalog.Open(cfg); catErr != nil {
		logger.Warn("episode catalog unavailable", logging.Error(catErr))
	} else {
		cat = catStore
		cleanup = func() { _ = catStore.Close() }
	}

	manager := pipeline.NewManager(cfg, pipeline.Deps{
		Store:    store,
		Source:   feed.NewSource(cfg.Feed.RSSURL, httpClient),
		Resolver: content.NewResolver(httpClient, cfg.Feed.MinWords, cfg.Feed.AllowFetch, logger),
		Synth:    tts.NewSynthesizer(ttsClient, cfg.Paths.OutputDir, logger),
		Uploader: uploader,
		Writer:   rss.NewWriter(cfg, logger),
		Deployer: deploy.New(cfg, logger),
		Catalog:  cat,
	}, logger)
	return manager, cleanup, nil
}

package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test
// and placeholder credentials, so collaborators that validate configuration
// can be constructed without touching real services.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.OutputDir = filepath.Join(base, "out")
	cfg.Paths.PublicDir = filepath.Join(base, "public")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.CatalogDB = filepath.Join(base, "catalog.db")
	cfg.Feed.Slug = "testfeed"
	cfg.Feed.RSSURL = "https://example.com/feed.xml"
	cfg.TTS.APIKey = "test"
	cfg.KV.AccountID = "test-account"
	cfg.KV.APIToken = "test-token"
	cfg.KV.NamespaceID = "test-namespace"
	cfg.Archive.AccessKey = "test-access"
	cfg.Archive.SecretKey = "test-secret"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithFeed overrides the feed slug and source URL on the test config.
func WithFeed(slug, rssURL string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Feed.Slug = slug
		cfg.Feed.RSSURL = rssURL
	}
}

// WithKeepLast sets the feed retention cap on the test config.
func WithKeepLast(n int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.KeepLast = n
	}
}

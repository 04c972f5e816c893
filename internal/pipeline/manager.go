// Package pipeline coordinates a feed run: fetch entries, diff against
// durable state, and drive each candidate through resolve, segment,
// synthesize, upload, and publish. State is persisted after every entry; a
// state write failure aborts the run because unpersisted progress would
// re-bill synthesis on the next attempt.
package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/catalog"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/config"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/deploy"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/feed"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/logging"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/rss"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services/archive"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services/content"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services/tts"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/ssml"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/statestore"
)

// Source fetches normalized feed entries.
type Source interface {
	Fetch(ctx context.Context, limit int) ([]feed.Entry, error)
}

// Resolver turns entry HTML into narration text.
type Resolver interface {
	Resolve(ctx context.Context, entry feed.Entry) (*content.Article, error)
}

// Synthesizer renders a segmented document to an MP3 file.
type Synthesizer interface {
	Synthesize(ctx context.Context, doc *ssml.Document, filename string) (*tts.Result, error)
}

// Uploader stores episode audio remotely and probes for prior uploads.
type Uploader interface {
	Upload(ctx context.Context, identifier, mp3Path string, meta archive.Metadata) (string, error)
	Exists(ctx context.Context, identifier string) (bool, error)
}

// FeedWriter maintains the published feed file.
type FeedWriter interface {
	Upsert(ctx context.Context, ep rss.Episode) error
	Path() string
}

// Catalog records generated episodes locally. Optional; failures are logged,
// never fatal.
type Catalog interface {
	Upsert(ctx context.Context, ep catalog.Episode) error
}

// Manager wires the collaborators for one feed.
type Manager struct {
	cfg      *config.Config
	store    statestore.Store
	source   Source
	resolver Resolver
	synth    Synthesizer
	uploader Uploader
	writer   FeedWriter
	deployer deploy.Deployer
	catalog  Catalog
	limits   ssml.Limits
	logger   *slog.Logger
}

// Deps carries the collaborators for NewManager. Nil Catalog disables local
// cataloging.
type Deps struct {
	Store    statestore.Store
	Source   Source
	Resolver Resolver
	Synth    Synthesizer
	Uploader Uploader
	Writer   FeedWriter
	Deployer deploy.Deployer
	Catalog  Catalog
}

// NewManager builds a pipeline manager.
func NewManager(cfg *config.Config, deps Deps, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		store:    deps.Store,
		source:   deps.Source,
		resolver: deps.Resolver,
		synth:    deps.Synth,
		uploader: deps.Uploader,
		writer:   deps.Writer,
		deployer: deps.Deployer,
		catalog:  deps.Catalog,
		limits: ssml.Limits{
			ByteBudget: cfg.TTS.ByteBudget,
			ChunkChars: cfg.TTS.ChunkChars,
		},
		logger: logging.NewComponentLogger(logger, "pipeline"),
	}
}

// DefaultHTTPClient returns the shared client for feed and page fetches.
func DefaultHTTPClient(cfg *config.Config) *http.Client {
	return &http.Client{Timeout: time.Duration(cfg.Workflow.HTTPTimeoutSeconds) * time.Second}
}

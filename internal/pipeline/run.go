package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/catalog"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/feed"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/logging"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/rss"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services/archive"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services/content"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services/tts"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/sidecar"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/ssml"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/state"
)

// Options tunes a single run.
type Options struct {
	// FullRescan treats every entry as a candidate regardless of state.
	FullRescan bool
	// RetryFailed re-attempts entries whose last attempt at the same
	// publication timestamp failed. Without it such entries wait for an
	// upstream edit or an explicit rescan.
	RetryFailed bool
	// Limit overrides feed.max_entries for this run when positive.
	Limit int
	// SkipDeploy leaves the pending-deploy flag untouched.
	SkipDeploy bool
}

// errStatePersist marks a mid-entry state write failure. Always fatal:
// progress that is not durable would re-bill synthesis on the next run.
var errStatePersist = errors.New("state not persisted")

// RunReport summarizes one run.
type RunReport struct {
	Slug       string
	Entries    int
	Candidates int
	Processed  int
	Restored   int
	Failed     int
	Skipped    int

	// Characters synthesized during this run; excludes restores and cache
	// replays.
	Characters           int
	CumulativeCharacters int64

	DeployAttempted bool
	DeploySucceeded bool

	Started  time.Time
	Finished time.Time
}

// Run executes one full pass over the configured feed.
func (m *Manager) Run(ctx context.Context, opts Options) (*RunReport, error) {
	runID := uuid.NewString()
	ctx = services.WithRequestID(ctx, runID)
	ctx = services.WithFeed(ctx, m.cfg.Feed.Slug)
	logger := logging.WithContext(ctx, m.logger)

	report := &RunReport{Slug: m.cfg.Feed.Slug, Started: time.Now().UTC()}
	defer func() { report.Finished = time.Now().UTC() }()

	stateKey := m.cfg.FeedStateKey()
	data, _, err := m.store.Get(ctx, stateKey)
	if err != nil {
		return report, fmt.Errorf("load state: %w", err)
	}
	fs, err := state.Decode(data)
	if err != nil {
		return report, fmt.Errorf("load state: %w", err)
	}

	limit := m.cfg.Feed.MaxEntries
	if opts.Limit > 0 {
		limit = opts.Limit
	}
	entries, err := m.source.Fetch(ctx, limit)
	if err != nil {
		return report, fmt.Errorf("fetch feed: %w", err)
	}
	report.Entries = len(entries)

	candidates := feed.Candidates(m.cfg.Feed.Slug, entries, fs, feed.DiffOptions{FullRescan: opts.FullRescan})
	report.Candidates = len(candidates)
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_started"),
		logging.Int("entries", len(entries)),
		logging.Int("candidates", len(candidates)),
		logging.Bool("full_rescan", opts.FullRescan))

	for _, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if cand.Identifier == "" {
			logger.Warn("entry has no link, skipping",
				logging.String("title", cand.Entry.Title))
			report.Skipped++
			continue
		}

		entryCtx := services.WithEntryID(ctx, cand.Identifier)
		entryLog := logging.WithContext(entryCtx, m.logger)
		entry := fs.Ensure(cand.Identifier, cand.Entry.Title, cand.Entry.Link, cand.Entry.PubUTC)

		if entry.FailedFor(cand.Entry.PubUTC) && !opts.RetryFailed && !opts.FullRescan {
			entryLog.Info("previous attempt failed at this revision, waiting for retry flag or edit",
				logging.String(logging.FieldStep, entry.Failure.Step))
			report.Skipped++
			continue
		}
		entry.ClearFailure()

		outcome, step, procErr := m.processEntry(entryCtx, fs, cand, entry, entryLog)
		if procErr != nil {
			if services.IsRunFatal(procErr) || errors.Is(procErr, errStatePersist) {
				return report, fmt.Errorf("entry %s: %w", cand.Identifier, procErr)
			}
			entryLog.Error("entry failed",
				logging.String(logging.FieldStep, step),
				logging.Error(procErr))
			fs.MarkFailed(cand.Identifier, entry, cand.Entry.Link, step,
				cand.Entry.PubUTC, procErr, m.cfg.Workflow.FailureMaxBytes)
			report.Failed++
		} else {
			report.Characters += outcome.synthesizedChars
			if outcome.restored {
				report.Restored++
			} else {
				report.Processed++
			}
		}

		// Persist-or-abort: unpersisted progress would re-bill synthesis next
		// run.
		if err := m.persist(ctx, stateKey, fs); err != nil {
			return report, fmt.Errorf("persist state: %w", err)
		}
	}

	if fs.PendingDeploy && !opts.SkipDeploy {
		attempted, deployErr := m.deployer.Deploy(ctx)
		report.DeployAttempted = attempted
		switch {
		case deployErr != nil:
			logger.Warn("deploy failed, will retry next run", logging.Error(deployErr))
		case attempted:
			report.DeploySucceeded = true
			fs.PendingDeploy = false
			if err := m.persist(ctx, stateKey, fs); err != nil {
				return report, fmt.Errorf("persist state: %w", err)
			}
		}
	}

	report.CumulativeCharacters = fs.Usage.CumulativeCharacters
	logger.Info("run finished",
		logging.String(logging.FieldEventType, "run_finished"),
		logging.Int("processed", report.Processed),
		logging.Int("restored", report.Restored),
		logging.Int("failed", report.Failed),
		logging.Int("skipped", report.Skipped),
		logging.Int("characters", report.Characters),
		logging.Int64("cumulative_characters", report.CumulativeCharacters))
	return report, nil
}

type entryOutcome struct {
	restored         bool
	synthesizedChars int
}

// processEntry drives one candidate through the full lifecycle. The returned
// step names where a failure happened for the state failure record.
func (m *Manager) processEntry(ctx context.Context, fs *state.FeedState, cand feed.Candidate, entry *state.EntryState, logger *slog.Logger) (entryOutcome, string, error) {
	var outcome entryOutcome
	pubUTC := cand.Entry.PubUTC

	article, err := m.resolver.Resolve(ctx, cand.Entry)
	if err != nil {
		return outcome, "resolve", err
	}

	filename := tts.Filename(pubUTC, cand.Entry.Link)
	mp3Path := filepath.Join(m.cfg.Paths.OutputDir, filename)
	uploadedURL := ""
	synthesized := false
	characters := 0

	switch {
	case entry.UploadedURL != "" && entry.ArticlePubUTC == pubUTC:
		// Audio for this revision already stored; only the feed write is
		// missing.
		uploadedURL = entry.UploadedURL
		characters = entry.TTSCharacters
		logger.Info("audio already uploaded, resuming at feed write")

	case entry.LastPubUTC == "" && m.remoteExists(ctx, cand.Identifier, logger):
		// Restore shortcut: the audio outlived the state document. Adopt it
		// without re-synthesizing and write a synthetic sidecar so the local
		// artifacts match.
		uploadedURL = archive.PublicURL(cand.Identifier)
		outcome.restored = true
		sc := buildSidecar(cand.Entry, article, filename, mp3Path, 0, false)
		if err := sc.Save(mp3Path); err != nil {
			logger.Warn("synthetic sidecar write failed", logging.Error(err))
		}
		logger.Info("restored from remote audio", logging.String("url", uploadedURL))

	default:
		doc, segErr := ssml.Segment(article.Title, article.Paragraphs, m.limits)
		if segErr != nil {
			return outcome, "segment", segErr
		}
		characters = doc.Characters

		result, synthErr := m.synth.Synthesize(ctx, &doc, filename)
		if synthErr != nil {
			return outcome, "tts", synthErr
		}
		synthesized = result.Generated
		mp3Path = result.Path

		sc := buildSidecar(cand.Entry, article, filename, mp3Path, characters, result.Generated)
		if err := sc.Save(mp3Path); err != nil {
			return outcome, "tts", fmt.Errorf("write sidecar: %w", err)
		}

		uploadedURL, err = m.uploader.Upload(ctx, cand.Identifier, mp3Path, archive.Metadata{
			Title:    article.Title,
			Creator:  cand.Entry.Author,
			Date:     pubUTC,
			External: cand.Entry.Link,
		})
		if err != nil {
			return outcome, "upload", err
		}

		// Make the upload durable before the feed write. Billing is counted
		// here too: these characters were synthesized whether or not the rest
		// of the pass succeeds.
		fs.MarkUploaded(entry, pubUTC, uploadedURL, characters, synthesized)
		if err := m.persist(ctx, m.cfg.FeedStateKey(), fs); err != nil {
			return outcome, "persist", fmt.Errorf("%w: %w", errStatePersist, err)
		}

		// The archive copy is now the only one; never keep both.
		if err := os.Remove(mp3Path); err != nil && !os.IsNotExist(err) {
			logger.Warn("local audio cleanup failed",
				logging.String("path", mp3Path), logging.Error(err))
		}
	}

	episode := rss.Episode{
		Title:       article.Title,
		Subtitle:    article.Subtitle,
		SummaryHTML: article.SummaryHTML,
		Link:        cand.Entry.Link,
		Author:      cand.Entry.Author,
		PubUTC:      pubUTC,
		AudioURL:    uploadedURL,
		ImageURL:    article.ImageURL,
	}
	if err := m.writer.Upsert(ctx, episode); err != nil {
		return outcome, "rss", err
	}

	// Usage was already accumulated at upload time; MarkPublished must not
	// count it again.
	fs.MarkPublished(entry, pubUTC, uploadedURL, state.Content{
		Title:       article.Title,
		Summary:     article.SummaryText,
		SummaryHTML: article.SummaryHTML,
		Subtitle:    article.Subtitle,
		ImageURL:    article.ImageURL,
	}, characters, false)
	if synthesized {
		outcome.synthesizedChars = characters
	}

	if m.catalog != nil {
		catErr := m.catalog.Upsert(ctx, catalog.Episode{
			Identifier:  cand.Identifier,
			Slug:        m.cfg.Feed.Slug,
			Link:        cand.Entry.Link,
			Title:       article.Title,
			PubUTC:      pubUTC,
			MP3Path:     mp3Path,
			SidecarPath: sidecar.PathFor(mp3Path),
			UploadedURL: uploadedURL,
			Characters:  characters,
			Generated:   synthesized,
		})
		if catErr != nil {
			logger.Warn("catalog update failed", logging.Error(catErr))
		}
	}
	return outcome, "", nil
}

// remoteExists probes for previously uploaded audio. Probe failures are
// treated as absence: re-uploading is safe, silently skipping work is not.
func (m *Manager) remoteExists(ctx context.Context, identifier string, logger *slog.Logger) bool {
	exists, err := m.uploader.Exists(ctx, identifier)
	if err != nil {
		logger.Warn("remote audio probe failed, assuming absent", logging.Error(err))
		return false
	}
	return exists
}

func buildSidecar(entry feed.Entry, article *content.Article, filename, mp3Path string, characters int, generated bool) *sidecar.Sidecar {
	return &sidecar.Sidecar{
		ArticleTitle:   article.Title,
		ArticleSummary: article.SummaryText,
		ArticleLink:    entry.Link,
		ArticleAuthor:  entry.Author,
		ArticlePubUTC:  entry.PubUTC,
		MP3Filename:    filename,
		MP3LocalPath:   mp3Path,
		TTSCharacters:  characters,
		TTSGenerated:   generated,
		SummaryHTML:    article.SummaryHTML,
		Subtitle:       article.Subtitle,
		ImageURL:       article.ImageURL,
	}
}

func (m *Manager) persist(ctx context.Context, key string, fs *state.FeedState) error {
	data, err := fs.Encode()
	if err != nil {
		return err
	}
	return m.store.Put(ctx, key, data)
}

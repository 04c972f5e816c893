package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/config"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/deploy"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/feed"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/logging"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/rss"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services/archive"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services/content"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services/tts"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/sidecar"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/ssml"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/state"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/testsupport"
)

type fakeSource struct {
	entries []feed.Entry
	err     error
}

func (s *fakeSource) Fetch(context.Context, int) ([]feed.Entry, error) {
	return s.entries, s.err
}

type fakeResolver struct {
	failLink string
}

func (r *fakeResolver) Resolve(_ context.Context, entry feed.Entry) (*content.Article, error) {
	if r.failLink != "" && entry.Link == r.failLink {
		return nil, errors.New("extraction blew up")
	}
	return &content.Article{
		Title:       entry.Title,
		Paragraphs:  []string{"Body for " + entry.Link},
		SummaryText: "Summary for " + entry.Link,
		SummaryHTML: "<p>Summary for " + entry.Link + "</p>",
	}, nil
}

type fakeSynth struct {
	t         testing.TB
	outputDir string
	calls     int
	lastDoc   *ssml.Document
	err       error
}

func (s *fakeSynth) Synthesize(_ context.Context, doc *ssml.Document, filename string) (*tts.Result, error) {
	s.calls++
	s.lastDoc = doc
	if s.err != nil {
		return nil, s.err
	}
	path := filepath.Join(s.outputDir, filename)
	testsupport.WriteFile(s.t, path, 32)
	return &tts.Result{
		Path:      path,
		Filename:  filename,
		Generated: true,
	}, nil
}

type fakeUploader struct {
	remote  map[string]bool
	uploads int
	err     error
}

func (u *fakeUploader) Upload(_ context.Context, identifier, _ string, _ archive.Metadata) (string, error) {
	u.uploads++
	if u.err != nil {
		return "", u.err
	}
	return archive.PublicURL(identifier), nil
}

func (u *fakeUploader) Exists(_ context.Context, identifier string) (bool, error) {
	return u.remote[identifier], nil
}

type fakeWriter struct {
	episodes []rss.Episode
	err      error
}

func (w *fakeWriter) Upsert(_ context.Context, ep rss.Episode) error {
	if w.err != nil {
		return w.err
	}
	w.episodes = append(w.episodes, ep)
	return nil
}

func (w *fakeWriter) Path() string { return "feed.xml" }

type fakeDeployer struct {
	calls int
	err   error
}

func (d *fakeDeployer) Deploy(context.Context) (bool, error) {
	d.calls++
	return true, d.err
}

type harness struct {
	cfg      *config.Config
	store    *testsupport.MemoryStateStore
	source   *fakeSource
	resolver *fakeResolver
	synth    *fakeSynth
	uploader *fakeUploader
	writer   *fakeWriter
	deployer *fakeDeployer
	manager  *Manager
}

func newHarness(t *testing.T, entries ...feed.Entry) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	h := &harness{
		cfg:      cfg,
		store:    testsupport.NewMemoryStateStore(),
		source:   &fakeSource{entries: entries},
		resolver: &fakeResolver{},
		synth:    &fakeSynth{t: t, outputDir: cfg.Paths.OutputDir},
		uploader: &fakeUploader{remote: map[string]bool{}},
		writer:   &fakeWriter{},
		deployer: &fakeDeployer{},
	}
	h.manager = NewManager(cfg, Deps{
		Store:    h.store,
		Source:   h.source,
		Resolver: h.resolver,
		Synth:    h.synth,
		Uploader: h.uploader,
		Writer:   h.writer,
		Deployer: h.deployer,
	}, logging.NewNop())
	return h
}

func (h *harness) loadState(t *testing.T) *state.FeedState {
	t.Helper()
	data, _, err := h.store.Get(context.Background(), h.cfg.FeedStateKey())
	if err != nil {
		t.Fatalf("load state: %v", err)
	}
	fs, err := state.Decode(data)
	if err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return fs
}

func newsEntry(link, pub string) feed.Entry {
	return feed.Entry{Title: "Article " + link, Link: link, PubUTC: pub}
}

func TestRunProcessesNewEntry(t *testing.T) {
	h := newHarness(t, newsEntry("https://ex.com/a", "2026-01-01T00:00:00Z"))

	report, err := h.manager.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Processed != 1 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}
	if h.synth.calls != 1 || h.uploader.uploads != 1 || len(h.writer.episodes) != 1 {
		t.Fatalf("collaborator calls: synth=%d upload=%d rss=%d",
			h.synth.calls, h.uploader.uploads, len(h.writer.episodes))
	}
	if report.Characters == 0 || report.CumulativeCharacters == 0 {
		t.Fatalf("characters not accounted: %+v", report)
	}
	if h.deployer.calls != 1 || !report.DeploySucceeded {
		t.Fatalf("deploy not run: calls=%d report=%+v", h.deployer.calls, report)
	}

	fs := h.loadState(t)
	id := feed.Identifier(h.cfg.Feed.Slug, "https://ex.com/a")
	if !fs.Items[id].Done("2026-01-01T00:00:00Z") {
		t.Fatalf("entry not done in persisted state: %+v", fs.Items[id])
	}
	if fs.PendingDeploy {
		t.Fatal("pending deploy not cleared after successful deploy")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	h := newHarness(t, newsEntry("https://ex.com/a", "2026-01-01T00:00:00Z"))

	if _, err := h.manager.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	report, err := h.manager.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.Candidates != 0 || report.Processed != 0 {
		t.Fatalf("second run reprocessed: %+v", report)
	}
	if h.synth.calls != 1 || h.uploader.uploads != 1 {
		t.Fatalf("second run re-billed: synth=%d upload=%d", h.synth.calls, h.uploader.uploads)
	}
}

func TestRunRestoreShortcut(t *testing.T) {
	h := newHarness(t, newsEntry("https://ex.com/a", "2026-01-01T00:00:00Z"))
	id := feed.Identifier(h.cfg.Feed.Slug, "https://ex.com/a")
	h.uploader.remote[id] = true

	report, err := h.manager.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Restored != 1 || report.Processed != 0 {
		t.Fatalf("report = %+v", report)
	}
	if h.synth.calls != 0 || h.uploader.uploads != 0 {
		t.Fatalf("restore must not synthesize or upload: synth=%d upload=%d",
			h.synth.calls, h.uploader.uploads)
	}
	if report.Characters != 0 {
		t.Fatalf("restore billed %d characters", report.Characters)
	}

	fs := h.loadState(t)
	if fs.Usage.CumulativeCharacters != 0 {
		t.Fatalf("restore inflated cumulative usage: %d", fs.Usage.CumulativeCharacters)
	}
	if !fs.Items[id].Done("2026-01-01T00:00:00Z") {
		t.Fatal("restored entry not marked done")
	}
	if got := fs.Items[id].UploadedURL; !strings.Contains(got, id) {
		t.Fatalf("restored URL %q does not reference identifier", got)
	}
}

func TestRunFailureIsolation(t *testing.T) {
	h := newHarness(t,
		newsEntry("https://ex.com/bad", "2026-01-01T00:00:00Z"),
		newsEntry("https://ex.com/good", "2026-01-02T00:00:00Z"),
	)
	h.resolver.failLink = "https://ex.com/bad"

	report, err := h.manager.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Failed != 1 || report.Processed != 1 {
		t.Fatalf("report = %+v", report)
	}

	fs := h.loadState(t)
	badID := feed.Identifier(h.cfg.Feed.Slug, "https://ex.com/bad")
	goodID := feed.Identifier(h.cfg.Feed.Slug, "https://ex.com/good")
	if !fs.Items[badID].FailedFor("2026-01-01T00:00:00Z") {
		t.Fatalf("failure not recorded: %+v", fs.Items[badID])
	}
	if fs.Items[badID].Failure.Step != "resolve" {
		t.Fatalf("failure step = %q", fs.Items[badID].Failure.Step)
	}
	if !fs.Items[goodID].Done("2026-01-02T00:00:00Z") {
		t.Fatal("good entry blocked by bad entry")
	}
}

func TestRunFailedEntryWaitsForRetryFlag(t *testing.T) {
	h := newHarness(t, newsEntry("https://ex.com/a", "2026-01-01T00:00:00Z"))
	h.resolver.failLink = "https://ex.com/a"

	if _, err := h.manager.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	report, err := h.manager.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.Skipped != 1 || report.Failed != 0 {
		t.Fatalf("failed entry not parked: %+v", report)
	}

	h.resolver.failLink = ""
	report, err = h.manager.Run(context.Background(), Options{RetryFailed: true})
	if err != nil {
		t.Fatalf("retry run: %v", err)
	}
	if report.Processed != 1 {
		t.Fatalf("retry flag did not reprocess: %+v", report)
	}
	fs := h.loadState(t)
	id := feed.Identifier(h.cfg.Feed.Slug, "https://ex.com/a")
	if fs.Items[id].Failure != nil {
		t.Fatal("failure marker survived successful retry")
	}
}

func TestRunAbortsWhenStatePersistFails(t *testing.T) {
	h := newHarness(t, newsEntry("https://ex.com/a", "2026-01-01T00:00:00Z"))
	h.store.PutErr = errors.New("kv is down")

	_, err := h.manager.Run(context.Background(), Options{})
	if err == nil {
		t.Fatal("run must abort when state cannot be persisted")
	}
	if !strings.Contains(err.Error(), "persist") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunPendingDeployStaysSticky(t *testing.T) {
	h := newHarness(t, newsEntry("https://ex.com/a", "2026-01-01T00:00:00Z"))
	h.deployer.err = errors.New("pages unavailable")

	report, err := h.manager.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.DeploySucceeded {
		t.Fatal("failed deploy reported success")
	}
	if h.loadState(t).PendingDeploy != true {
		t.Fatal("pending deploy cleared despite failure")
	}

	// Next run has nothing new to process but still owes a deploy.
	h.deployer.err = nil
	report, err = h.manager.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.Candidates != 0 {
		t.Fatalf("unexpected candidates: %+v", report)
	}
	if !report.DeploySucceeded {
		t.Fatal("sticky pending deploy not retried")
	}
	if h.loadState(t).PendingDeploy {
		t.Fatal("pending deploy not cleared after success")
	}
}

func TestRunSkipDeployFlag(t *testing.T) {
	h := newHarness(t, newsEntry("https://ex.com/a", "2026-01-01T00:00:00Z"))

	report, err := h.manager.Run(context.Background(), Options{SkipDeploy: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.deployer.calls != 0 || report.DeployAttempted {
		t.Fatalf("deploy ran despite --skip-deploy: %+v", report)
	}
	if !h.loadState(t).PendingDeploy {
		t.Fatal("pending deploy flag lost")
	}
}

func TestRunLinklessEntrySkipped(t *testing.T) {
	h := newHarness(t, feed.Entry{Title: "no link", PubUTC: "2026-01-01T00:00:00Z"})

	report, err := h.manager.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Skipped != 1 || report.Processed != 0 {
		t.Fatalf("report = %+v", report)
	}
}

func TestRunResumesAfterUploadWithoutResynthesis(t *testing.T) {
	h := newHarness(t, newsEntry("https://ex.com/a", "2026-01-01T00:00:00Z"))
	h.writer.err = errors.New("disk full")

	if _, err := h.manager.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if h.synth.calls != 1 || h.uploader.uploads != 1 {
		t.Fatalf("first run calls: synth=%d upload=%d", h.synth.calls, h.uploader.uploads)
	}

	h.writer.err = nil
	report, err := h.manager.Run(context.Background(), Options{RetryFailed: true})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if report.Processed != 1 {
		t.Fatalf("resume did not complete: %+v", report)
	}
	if h.synth.calls != 1 || h.uploader.uploads != 1 {
		t.Fatalf("resume re-billed: synth=%d upload=%d", h.synth.calls, h.uploader.uploads)
	}
}

func TestRunSynthesizesSegmentedDocument(t *testing.T) {
	h := newHarness(t, newsEntry("https://ex.com/a", "2026-01-01T00:00:00Z"))

	report, err := h.manager.Run(context.Background(), Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	doc := h.synth.lastDoc
	if doc == nil || len(doc.Payloads) == 0 {
		t.Fatalf("synthesizer did not receive a segmented document: %+v", doc)
	}
	if doc.Characters != report.Characters {
		t.Fatalf("billed characters %d do not match document estimate %d",
			report.Characters, doc.Characters)
	}
}

func TestRunRemovesLocalAudioAfterUpload(t *testing.T) {
	h := newHarness(t, newsEntry("https://ex.com/a", "2026-01-01T00:00:00Z"))

	if _, err := h.manager.Run(context.Background(), Options{}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.uploader.uploads != 1 {
		t.Fatalf("uploads = %d", h.uploader.uploads)
	}

	mp3Path := filepath.Join(h.cfg.Paths.OutputDir, tts.Filename("2026-01-01T00:00:00Z", "https://ex.com/a"))
	if _, err := os.Stat(mp3Path); !os.IsNotExist(err) {
		t.Fatalf("local MP3 still present after confirmed upload: %s (stat err %v)", mp3Path, err)
	}
	if _, err := os.Stat(sidecar.PathFor(mp3Path)); err != nil {
		t.Fatalf("sidecar must survive audio cleanup: %v", err)
	}
}

func TestRunFetchErrorIsFatal(t *testing.T) {
	h := newHarness(t)
	h.source.err = errors.New("upstream down")

	if _, err := h.manager.Run(context.Background(), Options{}); err == nil {
		t.Fatal("fetch failure must abort the run")
	}
}

var _ deploy.Deployer = (*fakeDeployer)(nil)

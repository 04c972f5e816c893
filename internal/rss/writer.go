package rss

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/config"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/logging"
)

// DefaultKeepLast caps how many items the published feed retains.
const DefaultKeepLast = 200

// Episode is the publishable form of a processed entry.
type Episode struct {
	Title       string
	Subtitle    string
	SummaryHTML string
	Link        string
	Author      string
	PubUTC      string
	AudioURL    string
	ImageURL    string
}

// Writer maintains one podcast feed file.
type Writer struct {
	path     string
	podcast  config.Podcast
	keepLast int
	client   *http.Client
	logger   *slog.Logger
}

// NewWriter builds a feed writer for the configured feed path.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	keep := cfg.Workflow.KeepLast
	if keep <= 0 {
		keep = DefaultKeepLast
	}
	return &Writer{
		path:     cfg.FeedPath(),
		podcast:  cfg.Podcast,
		keepLast: keep,
		client:   &http.Client{Timeout: time.Duration(cfg.Workflow.HTTPTimeoutSeconds) * time.Second},
		logger:   logging.NewComponentLogger(logger, "rss"),
	}
}

// Path returns the feed file location.
func (w *Writer) Path() string {
	return w.path
}

// Upsert inserts or replaces the episode in the feed and rewrites the file.
// Items beyond the retention cap fall off the old end.
func (w *Writer) Upsert(ctx context.Context, ep Episode) error {
	doc, err := w.load()
	if err != nil {
		return err
	}

	item := w.buildItem(ctx, ep)
	key := item.guidValue()

	replaced := false
	for i, existing := range doc.Channel.Items {
		if existing.guidValue() == key {
			doc.Channel.Items[i] = item
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Channel.Items = append([]*Item{item}, doc.Channel.Items...)
	}
	if len(doc.Channel.Items) > w.keepLast {
		doc.Channel.Items = doc.Channel.Items[:w.keepLast]
	}

	if err := w.save(doc); err != nil {
		return err
	}
	w.logger.Info("feed updated",
		logging.String("guid", key),
		logging.Bool("replaced", replaced),
		logging.Int("items", len(doc.Channel.Items)))
	return nil
}

// load reads the existing feed or starts a fresh one, then reapplies channel
// metadata from configuration so config edits propagate on the next publish.
func (w *Writer) load() (*document, error) {
	doc, err := parseFile(w.path)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = &document{Channel: &channel{}}
	}
	doc.Version = "2.0"
	doc.ItunesXMLNS = itunesNS
	doc.AtomXMLNS = "http://www.w3.org/2005/Atom"

	ch := doc.Channel
	ch.Title = w.podcast.Title
	ch.Link = w.podcast.Site
	ch.Description = w.podcast.Description
	ch.Language = w.podcast.Language
	ch.ItunesAuthor = w.podcast.Author
	ch.ItunesExplicit = "false"
	if w.podcast.Author != "" && w.podcast.Email != "" {
		ch.ItunesOwner = &itunesOwner{Name: w.podcast.Author, Email: w.podcast.Email}
	}
	if w.podcast.ImageURL != "" {
		ch.ItunesImage = &itunesImage{Href: w.podcast.ImageURL}
	}
	if w.podcast.Category != "" {
		ch.ItunesCategory = &itunesCategory{Text: w.podcast.Category}
	}
	if w.podcast.FeedURL != "" {
		ch.AtomLink = &atomLink{Href: w.podcast.FeedURL, Rel: "self", Type: "application/rss+xml"}
	}
	return doc, nil
}

func (w *Writer) buildItem(ctx context.Context, ep Episode) *Item {
	item := &Item{
		Title:       ep.Title,
		Link:        ep.Link,
		Description: &description{Text: buildDescription(ep)},
		GUID:        &guid{IsPermaLink: "false", Value: EpisodeGUID(ep.AudioURL, ep.Link)},
		PubDate:     pubDate(ep.PubUTC),
		Enclosure: &enclosure{
			URL:    ep.AudioURL,
			Length: w.enclosureLength(ctx, ep.AudioURL),
			Type:   "audio/mpeg",
		},
		ItunesAuthor: ep.Author,
	}
	if item.ItunesAuthor == "" {
		item.ItunesAuthor = w.podcast.Author
	}
	if ep.ImageURL != "" {
		item.ItunesImage = &itunesImage{Href: ep.ImageURL}
	}
	return item
}

// buildDescription assembles the item HTML: bold subtitle, summary body, and
// a link back to the original article.
func buildDescription(ep Episode) string {
	out := ""
	if ep.Subtitle != "" {
		out += "<p><strong>" + html.EscapeString(ep.Subtitle) + "</strong></p>\n"
	}
	if ep.SummaryHTML != "" {
		out += ep.SummaryHTML + "\n"
	}
	if ep.Link != "" {
		escaped := html.EscapeString(ep.Link)
		out += fmt.Sprintf(`<p>Original: <a href="%s">%s</a></p>`, escaped, escaped)
	}
	return out
}

// enclosureLength asks the audio host for the byte size. Zero is legal in the
// enclosure tag when the host refuses to answer.
func (w *Writer) enclosureLength(ctx context.Context, audioURL string) int64 {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, audioURL, nil)
	if err != nil {
		return 0
	}
	resp, err := w.client.Do(req)
	if err != nil {
		w.logger.Warn("enclosure length probe failed",
			logging.String("url", audioURL), logging.Error(err))
		return 0
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.ContentLength < 0 {
		return 0
	}
	return resp.ContentLength
}

func (w *Writer) save(doc *document) error {
	doc.Channel.LastBuildDate = time.Now().UTC().Format(time.RFC1123Z)
	data, err := doc.encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return fmt.Errorf("create feed dir: %w", err)
	}
	tmp := w.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write feed: %w", err)
	}
	if err := os.Rename(tmp, w.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize feed: %w", err)
	}
	return nil
}

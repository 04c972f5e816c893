package feed

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/services"
)

// Source fetches and normalizes the upstream RSS/Atom feed.
type Source struct {
	url    string
	parser *gofeed.Parser
}

// NewSource builds a feed source for the given URL.
func NewSource(url string, client *http.Client) *Source {
	parser := gofeed.NewParser()
	if client != nil {
		parser.Client = client
	}
	return &Source{url: url, parser: parser}
}

// Fetch downloads the feed and returns its entries sorted oldest publication
// first. A feed with zero entries is an error: an empty upstream response
// usually means a transient outage, and processing "nothing" against stale
// state would be indistinguishable from every article having vanished.
func (s *Source) Fetch(ctx context.Context, limit int) ([]Entry, error) {
	parsed, err := s.parser.ParseURLWithContext(s.url, ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "fetch", "parse feed", s.url, err)
	}
	if len(parsed.Items) == 0 {
		return nil, services.Wrap(services.ErrValidation, "fetch", "parse feed", "feed has no entries", nil)
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		entries = append(entries, normalizeItem(item))
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].PubUTC < entries[j].PubUTC
	})

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

func normalizeItem(item *gofeed.Item) Entry {
	link := item.Link
	if link == "" {
		link = item.GUID
	}
	title := item.Title
	if title == "" {
		title = link
	}

	contentHTML := item.Content
	if contentHTML == "" {
		contentHTML = item.Description
	}

	author := ""
	if item.Author != nil {
		author = item.Author.Name
	}
	if author == "" && len(item.Authors) > 0 && item.Authors[0] != nil {
		author = item.Authors[0].Name
	}

	return Entry{
		Title:           title,
		Link:            link,
		Summary:         item.Description,
		Author:          author,
		PubUTC:          NormalizePubUTC(item.PublishedParsed, item.UpdatedParsed),
		ContentHTML:     contentHTML,
		ImageCandidates: imageCandidates(item),
	}
}

// NormalizePubUTC converts feed timestamps to the canonical RFC3339 UTC form
// used for all state comparisons. Entries without any parseable timestamp get
// the current time, matching first-sight semantics.
func NormalizePubUTC(published, updated *time.Time) string {
	ts := published
	if ts == nil {
		ts = updated
	}
	if ts == nil {
		now := time.Now().UTC()
		ts = &now
	}
	return ts.UTC().Format(time.RFC3339)
}

func imageCandidates(item *gofeed.Item) []string {
	var urls []string
	if item.Image != nil && item.Image.URL != "" {
		urls = append(urls, item.Image.URL)
	}
	for _, enc := range item.Enclosures {
		if enc != nil && enc.URL != "" {
			urls = append(urls, enc.URL)
		}
	}
	if media, ok := item.Extensions["media"]; ok {
		for _, key := range []string{"content", "thumbnail"} {
			for _, ext := range media[key] {
				if url := ext.Attrs["url"]; url != "" {
					urls = append(urls, url)
				}
			}
		}
	}
	return urls
}

// String implements fmt.Stringer for log-friendly source descriptions.
func (s *Source) String() string {
	return fmt.Sprintf("feed source %s", s.url)
}

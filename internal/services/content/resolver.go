// Package content turns feed entry HTML into clean narration text. It prefers
// the content shipped in the feed and only fetches the article page when the
// feed copy is too short to narrate. Resolution never fails an entry outright;
// it degrades to the best text available.
package content

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/feed"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/logging"
)

// strippedSelector removes everything that is noise when read aloud: media,
// captions, embeds, navigation, and script payloads.
const strippedSelector = "script, style, noscript, iframe, form, figure, figcaption, img, picture, video, audio, svg, nav, aside, footer"

var (
	wordpressFooterRe = regexp.MustCompile(`(?i)^the post .+ appeared first on .+\.?$`)
	bareURLRe         = regexp.MustCompile(`^https?://\S+$`)
)

// Article is the narration-ready form of an entry.
type Article struct {
	Title       string
	Subtitle    string
	Paragraphs  []string
	SummaryText string
	SummaryHTML string
	ImageURL    string
}

// Resolver extracts article text from feed content, optionally upgrading to a
// full page fetch.
type Resolver struct {
	client     *http.Client
	minWords   int
	allowFetch bool
	logger     *slog.Logger
}

// NewResolver builds a resolver. minWords below which a page fetch is
// attempted; allowFetch gates the network entirely.
func NewResolver(client *http.Client, minWords int, allowFetch bool, logger *slog.Logger) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &Resolver{
		client:     client,
		minWords:   minWords,
		allowFetch: allowFetch,
		logger:     logging.NewComponentLogger(logger, "content"),
	}
}

// Resolve produces the narration text for an entry.
func (r *Resolver) Resolve(ctx context.Context, entry feed.Entry) (*Article, error) {
	extracted, err := Extract(entry.ContentHTML)
	if err != nil {
		return nil, fmt.Errorf("extract feed content: %w", err)
	}

	if r.allowFetch && entry.Link != "" && wordCount(extracted.Paragraphs) < r.minWords {
		page, fetchErr := r.fetchPage(ctx, entry.Link)
		if fetchErr != nil {
			r.logger.Warn("page fetch failed, keeping feed content",
				logging.String(logging.FieldLink, entry.Link),
				logging.Error(fetchErr))
		} else if wordCount(page.Paragraphs) > wordCount(extracted.Paragraphs) {
			page.ImageURL = firstNonEmpty(extracted.ImageURL, page.ImageURL)
			extracted = page
		}
	}

	summaryText, summaryHTML := summarize(entry.Summary, extracted.Paragraphs)

	imageURL := extracted.ImageURL
	if imageURL == "" {
		imageURL = pickImage(entry.ImageCandidates)
	}

	return &Article{
		Title:       entry.Title,
		Subtitle:    extracted.Subtitle,
		Paragraphs:  extracted.Paragraphs,
		SummaryText: summaryText,
		SummaryHTML: summaryHTML,
		ImageURL:    imageURL,
	}, nil
}

// Extracted is the raw result of HTML extraction before summary assembly.
type Extracted struct {
	Subtitle   string
	Paragraphs []string
	ImageURL   string
}

// Extract converts an HTML fragment into clean paragraphs, picking up a
// subtitle heading and a lead image along the way.
func Extract(fragment string) (*Extracted, error) {
	if strings.TrimSpace(fragment) == "" {
		return &Extracted{}, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return nil, err
	}

	imageURL := leadImage(doc)
	subtitle := leadSubtitle(doc)
	doc.Find(strippedSelector).Remove()

	var paragraphs []string
	blocks := doc.Find("p, h2, h3, h4, li, blockquote")
	if blocks.Length() == 0 {
		paragraphs = splitPlainText(doc.Text())
	} else {
		blocks.Each(func(_ int, sel *goquery.Selection) {
			if sel.Children().Filter("p").Length() > 0 {
				return
			}
			text := collapseSpace(sel.Text())
			if keepParagraph(text) && text != subtitle {
				paragraphs = append(paragraphs, text)
			}
		})
	}

	return &Extracted{
		Subtitle:   subtitle,
		Paragraphs: paragraphs,
		ImageURL:   imageURL,
	}, nil
}

// leadSubtitle returns the first secondary heading that appears before any
// body paragraph. Headings buried mid-article are section titles, not
// subtitles.
func leadSubtitle(doc *goquery.Document) string {
	subtitle := ""
	doc.Find("p, h2, h3, h4").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := collapseSpace(sel.Text())
		if text == "" {
			return true
		}
		if goquery.NodeName(sel) != "p" {
			subtitle = text
		}
		return false
	})
	return subtitle
}

// leadImage returns the first http(s) jpg/png image referenced by the
// fragment, looking at src, data-src, and srcset in that order.
func leadImage(doc *goquery.Document) string {
	found := ""
	doc.Find("img").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		for _, attr := range []string{"src", "data-src"} {
			if url, ok := sel.Attr(attr); ok && usableImage(url) {
				found = url
				return false
			}
		}
		if srcset, ok := sel.Attr("srcset"); ok {
			for _, part := range strings.Split(srcset, ",") {
				url := strings.Fields(strings.TrimSpace(part))
				if len(url) > 0 && usableImage(url[0]) {
					found = url[0]
					return false
				}
			}
		}
		return true
	})
	return found
}

func usableImage(url string) bool {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return false
	}
	trimmed := url
	if idx := strings.IndexAny(trimmed, "?#"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	lower := strings.ToLower(trimmed)
	return strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg") ||
		strings.HasSuffix(lower, ".png")
}

// keepParagraph filters out lines that add nothing to narration: empty text,
// bare URLs, and WordPress syndication footers.
func keepParagraph(text string) bool {
	if text == "" {
		return false
	}
	if bareURLRe.MatchString(text) {
		return false
	}
	if wordpressFooterRe.MatchString(text) {
		return false
	}
	return true
}

func (r *Resolver) fetchPage(ctx context.Context, link string) (*Extracted, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "podfeed/1.0")
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, err
	}

	// Prefer semantic article containers; fall back to the whole body.
	root := doc.Find("article").First()
	if root.Length() == 0 {
		root = doc.Find("main").First()
	}
	if root.Length() == 0 {
		root = doc.Find("body")
	}
	inner, err := root.Html()
	if err != nil {
		return nil, err
	}
	return Extract(inner)
}

// summarize derives the summary pair: plain text for the sidecar and HTML for
// the feed description. Feed-provided summaries win; otherwise the first body
// paragraph stands in.
func summarize(feedSummary string, paragraphs []string) (text, htmlOut string) {
	text = collapseSpace(stripTags(feedSummary))
	if !keepParagraph(text) {
		text = ""
	}
	if text == "" && len(paragraphs) > 0 {
		text = paragraphs[0]
	}
	htmlOut = TextToHTML(text)
	return text, htmlOut
}

// TextToHTML wraps plain-text paragraphs in <p> tags, escaping content.
func TextToHTML(text string) string {
	var parts []string
	for _, para := range strings.Split(text, "\n\n") {
		para = collapseSpace(para)
		if para == "" {
			continue
		}
		parts = append(parts, "<p>"+html.EscapeString(para)+"</p>")
	}
	return strings.Join(parts, "\n")
}

func stripTags(fragment string) string {
	if !strings.Contains(fragment, "<") {
		return html.UnescapeString(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}
	doc.Find(strippedSelector).Remove()
	return doc.Text()
}

func splitPlainText(text string) []string {
	var out []string
	for _, block := range strings.Split(text, "\n") {
		block = collapseSpace(block)
		if keepParagraph(block) {
			out = append(out, block)
		}
	}
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func wordCount(paragraphs []string) int {
	total := 0
	for _, p := range paragraphs {
		total += len(strings.Fields(p))
	}
	return total
}

func pickImage(candidates []string) string {
	for _, url := range candidates {
		if usableImage(url) {
			return url
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

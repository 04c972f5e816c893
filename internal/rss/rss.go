// Package rss maintains the published podcast feed file. Writes are
// idempotent: each episode is keyed by a GUID derived from its audio URL and
// article link, so re-running a publish replaces the item in place instead of
// duplicating it.
package rss

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"os"
	"time"
)

const itunesNS = "http://www.itunes.com/dtds/podcast-1.0.dtd"

// document is the marshaled feed. The itunes: prefixed tags are literal
// element names; the namespace is declared on the rss element.
type document struct {
	XMLName     xml.Name `xml:"rss"`
	Version     string   `xml:"version,attr"`
	ItunesXMLNS string   `xml:"xmlns:itunes,attr"`
	AtomXMLNS   string   `xml:"xmlns:atom,attr"`
	Channel     *channel `xml:"channel"`
}

type channel struct {
	Title         string `xml:"title"`
	Link          string `xml:"link"`
	Description   string `xml:"description"`
	Language      string `xml:"language,omitempty"`
	LastBuildDate string `xml:"lastBuildDate,omitempty"`

	AtomLink *atomLink `xml:"atom:link,omitempty"`

	ItunesAuthor   string          `xml:"itunes:author,omitempty"`
	ItunesExplicit string          `xml:"itunes:explicit,omitempty"`
	ItunesOwner    *itunesOwner    `xml:"itunes:owner,omitempty"`
	ItunesImage    *itunesImage    `xml:"itunes:image,omitempty"`
	ItunesCategory *itunesCategory `xml:"itunes:category,omitempty"`

	Items []*Item `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type itunesOwner struct {
	Name  string `xml:"itunes:name"`
	Email string `xml:"itunes:email"`
}

type itunesImage struct {
	Href string `xml:"href,attr"`
}

type itunesCategory struct {
	Text string `xml:"text,attr"`
}

// Item is one feed episode.
type Item struct {
	Title       string       `xml:"title"`
	Link        string       `xml:"link,omitempty"`
	Description *description `xml:"description"`
	GUID        *guid        `xml:"guid"`
	PubDate     string       `xml:"pubDate,omitempty"`
	Enclosure   *enclosure   `xml:"enclosure"`

	ItunesAuthor string       `xml:"itunes:author,omitempty"`
	ItunesImage  *itunesImage `xml:"itunes:image,omitempty"`

	// ParsedAuthor and ParsedImage catch namespaced elements on unmarshal,
	// which the prefixed tags above cannot match. normalize folds them back.
	ParsedAuthor string       `xml:"author,omitempty"`
	ParsedImage  *itunesImage `xml:"image,omitempty"`
}

type description struct {
	Text string `xml:",cdata"`
}

type guid struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type enclosure struct {
	URL    string `xml:"url,attr"`
	Length int64  `xml:"length,attr"`
	Type   string `xml:"type,attr"`
}

// EpisodeGUID derives the stable item key from the audio URL and article
// link. The pair survives title edits and re-uploads to the same identifier.
func EpisodeGUID(audioURL, articleLink string) string {
	sum := sha1.Sum([]byte(audioURL + articleLink))
	return hex.EncodeToString(sum[:])
}

func (it *Item) normalize() {
	if it.ItunesAuthor == "" {
		it.ItunesAuthor = it.ParsedAuthor
	}
	if it.ItunesImage == nil {
		it.ItunesImage = it.ParsedImage
	}
	it.ParsedAuthor = ""
	it.ParsedImage = nil
}

func (it *Item) guidValue() string {
	if it.GUID == nil {
		return ""
	}
	return it.GUID.Value
}

func parseFile(path string) (*document, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	var doc document
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", path, err)
	}
	if doc.Channel == nil {
		doc.Channel = &channel{}
	}
	for _, item := range doc.Channel.Items {
		item.normalize()
	}
	return &doc, nil
}

func (d *document) encode() ([]byte, error) {
	body, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode feed: %w", err)
	}
	return append([]byte(xml.Header), append(body, '\n')...), nil
}

// pubDate converts the canonical RFC3339 UTC timestamp to the RFC1123Z form
// RSS readers expect. Unparseable input falls back to the current time.
func pubDate(pubUTC string) string {
	ts, err := time.Parse(time.RFC3339, pubUTC)
	if err != nil {
		ts = time.Now().UTC()
	}
	return ts.UTC().Format(time.RFC1123Z)
}

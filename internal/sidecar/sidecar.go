// Package sidecar reads and writes the per-episode metadata JSON stored next
// to each generated MP3. The sidecar is the local source of truth the feed
// writer publishes from; remote state only records that publication happened.
package sidecar

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Extension is appended to the MP3 filename to form the sidecar path.
const Extension = ".rssmeta.json"

// Sidecar carries the article and synthesis metadata for one episode.
type Sidecar struct {
	ArticleTitle   string `json:"article_title"`
	ArticleSummary string `json:"article_summary"`
	ArticleLink    string `json:"article_link"`
	ArticleAuthor  string `json:"article_author"`
	ArticlePubUTC  string `json:"article_pub_utc"`
	MP3Filename    string `json:"mp3_filename"`
	MP3LocalPath   string `json:"mp3_local_path"`
	TTSCharacters  int    `json:"tts_characters"`
	TTSGenerated   bool   `json:"tts_generated"`

	SummaryHTML string `json:"article_summary_html,omitempty"`
	Subtitle    string `json:"article_subtitle,omitempty"`
	ImageURL    string `json:"article_image_url,omitempty"`
}

// PathFor returns the sidecar path for an MP3 path.
func PathFor(mp3Path string) string {
	return mp3Path + Extension
}

// Load reads the sidecar for the given MP3, reporting presence separately
// from read errors.
func Load(mp3Path string) (*Sidecar, bool, error) {
	data, err := os.ReadFile(PathFor(mp3Path))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read sidecar: %w", err)
	}
	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, false, fmt.Errorf("decode sidecar %s: %w", PathFor(mp3Path), err)
	}
	return &sc, true, nil
}

// Save writes the sidecar next to its MP3 atomically.
func (sc *Sidecar) Save(mp3Path string) error {
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	path := PathFor(mp3Path)
	tmp := path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create sidecar dir: %w", err)
	}
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("finalize sidecar: %w", err)
	}
	return nil
}

package state

import (
	"encoding/json"
	"fmt"
	"time"
)

// FailureRecord marks an entry whose last processing attempt failed. All
// fields are absent on healthy entries; a later successful pass clears the
// whole record atomically with the success update.
type FailureRecord struct {
	FailedUTC    string `json:"failed_utc"`
	FailedPubUTC string `json:"failed_pub_utc,omitempty"`
	Step         string `json:"step,omitempty"`
	Error        string `json:"error,omitempty"`
	Identifier   string `json:"identifier,omitempty"`
	Link         string `json:"link,omitempty"`
}

// EntryState is the per-article lifecycle record.
type EntryState struct {
	ArticleTitle       string `json:"article_title,omitempty"`
	ArticleLink        string `json:"article_link,omitempty"`
	ArticlePubUTC      string `json:"article_pub_utc,omitempty"`
	ArticleSummary     string `json:"article_summary,omitempty"`
	ArticleSummaryHTML string `json:"article_summary_html,omitempty"`
	ArticleSubtitle    string `json:"article_subtitle,omitempty"`
	ArticleImageURL    string `json:"article_image_url,omitempty"`
	TTSCharacters      int    `json:"tts_characters,omitempty"`
	UploadedURL        string `json:"uploaded_url,omitempty"`
	RSSAdded           bool   `json:"rss_added,omitempty"`
	LastPubUTC         string `json:"last_pub_utc,omitempty"`

	Failure *FailureRecord `json:"failure,omitempty"`
}

// Usage tracks characters sent to the synthesis provider across all runs.
type Usage struct {
	CumulativeCharacters int64 `json:"cumulative_characters"`
}

// FeedState is the whole-feed JSON state document.
type FeedState struct {
	Items map[string]*EntryState `json:"items"`
	Usage Usage                  `json:"usage"`

	// PendingDeploy stays set until a deploy attempt succeeds, surviving
	// crashed or failed deploys across runs.
	PendingDeploy bool `json:"pending_deploy,omitempty"`

	// Legacy top-level mirror of the most recently published entry. Derived,
	// non-authoritative; kept for older readers of the state blob.
	LastPubUTC  string `json:"last_pub_utc,omitempty"`
	RSSAdded    bool   `json:"rss_added,omitempty"`
	UploadedURL string `json:"uploaded_url,omitempty"`
}

// New returns an empty feed state.
func New() *FeedState {
	return &FeedState{Items: make(map[string]*EntryState)}
}

// Decode parses a stored state document. A nil or empty payload yields a
// fresh state.
func Decode(data []byte) (*FeedState, error) {
	if len(data) == 0 {
		return New(), nil
	}
	var fs FeedState
	if err := json.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("decode feed state: %w", err)
	}
	if fs.Items == nil {
		fs.Items = make(map[string]*EntryState)
	}
	return &fs, nil
}

// Encode serializes the state document for storage.
func (f *FeedState) Encode() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("encode feed state: %w", err)
	}
	return data, nil
}

// Done reports whether the entry is fully processed for the given publication
// timestamp: audio stored remotely, feed rewritten, and no upstream edit
// since.
func (e *EntryState) Done(pubUTC string) bool {
	if e == nil {
		return false
	}
	return e.UploadedURL != "" && e.RSSAdded && e.LastPubUTC == pubUTC
}

// FailedFor reports whether the entry carries a failure marker recorded at
// the given publication timestamp.
func (e *EntryState) FailedFor(pubUTC string) bool {
	return e != nil && e.Failure != nil && e.Failure.FailedPubUTC == pubUTC
}

// LatestPubUTC returns the feed-wide most recent successfully processed
// publication timestamp, or "" when nothing has been processed.
func (f *FeedState) LatestPubUTC() string {
	latest := ""
	for _, item := range f.Items {
		if item.LastPubUTC > latest {
			latest = item.LastPubUTC
		}
	}
	if latest == "" {
		latest = f.LastPubUTC
	}
	return latest
}

// NowUTC returns the canonical timestamp format used throughout the state
// document.
func NowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

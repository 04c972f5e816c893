package state

import (
	"strings"
	"unicode/utf8"
)

// DefaultFailureMaxBytes bounds stored failure messages so the state document
// stays small.
const DefaultFailureMaxBytes = 500

// Ensure returns the entry record for identifier, creating it when first
// seen. Newly created entries adopt the legacy top-level mirror when its
// publication timestamp matches, so state blobs written before per-entry
// tracking keep their completion status.
func (f *FeedState) Ensure(identifier, title, link, pubUTC string) *EntryState {
	if f.Items == nil {
		f.Items = make(map[string]*EntryState)
	}
	entry, ok := f.Items[identifier]
	if !ok {
		entry = &EntryState{}
		if f.LastPubUTC != "" && f.LastPubUTC == pubUTC {
			entry.LastPubUTC = f.LastPubUTC
			entry.RSSAdded = f.RSSAdded
			entry.UploadedURL = f.UploadedURL
		}
		f.Items[identifier] = entry
	}
	if entry.ArticleTitle == "" {
		entry.ArticleTitle = title
	}
	if entry.ArticleLink == "" {
		entry.ArticleLink = link
	}
	if entry.ArticlePubUTC == "" {
		entry.ArticlePubUTC = pubUTC
	}
	return entry
}

// Content carries the refreshed extraction results applied on a successful
// pass.
type Content struct {
	Title       string
	Summary     string
	SummaryHTML string
	Subtitle    string
	ImageURL    string
}

// MarkPublished records a fully processed entry: audio stored at uploadedURL,
// feed rewritten, content fields refreshed, failure markers cleared, and the
// feed flagged for deploy. Characters are added to the cumulative usage
// counter only when synthesized is true; restores and cache replays must not
// inflate the billing estimate.
func (f *FeedState) MarkPublished(entry *EntryState, pubUTC, uploadedURL string, content Content, characters int, synthesized bool) {
	entry.UploadedURL = uploadedURL
	entry.RSSAdded = true
	entry.LastPubUTC = pubUTC
	entry.ArticlePubUTC = pubUTC
	if content.Title != "" {
		entry.ArticleTitle = content.Title
	}
	if content.Summary != "" {
		entry.ArticleSummary = content.Summary
	}
	if content.SummaryHTML != "" {
		entry.ArticleSummaryHTML = content.SummaryHTML
	}
	entry.ArticleSubtitle = content.Subtitle
	entry.ArticleImageURL = content.ImageURL
	if characters > 0 {
		entry.TTSCharacters = characters
	}
	entry.Failure = nil
	if synthesized && characters > 0 {
		f.Usage.CumulativeCharacters += int64(characters)
	}
	f.PendingDeploy = true
	f.RefreshLatest()
}

// MarkUploaded records remote audio storage before the feed write, so a crash
// between upload and publish resumes without re-synthesizing. Usage is
// accumulated here, at the moment characters were actually billed.
func (f *FeedState) MarkUploaded(entry *EntryState, pubUTC, uploadedURL string, characters int, synthesized bool) {
	entry.UploadedURL = uploadedURL
	entry.ArticlePubUTC = pubUTC
	if characters > 0 {
		entry.TTSCharacters = characters
	}
	if synthesized && characters > 0 {
		f.Usage.CumulativeCharacters += int64(characters)
	}
}

// MarkFailed records a failure marker for the entry without touching its
// completion fields, so a previously published version stays listed while the
// new revision retries on a later run.
func (f *FeedState) MarkFailed(identifier string, entry *EntryState, link, step, pubUTC string, err error, maxBytes int) {
	if maxBytes <= 0 {
		maxBytes = DefaultFailureMaxBytes
	}
	msg := ""
	if err != nil {
		msg = truncate(err.Error(), maxBytes)
	}
	entry.Failure = &FailureRecord{
		FailedUTC:    NowUTC(),
		FailedPubUTC: pubUTC,
		Step:         step,
		Error:        msg,
		Identifier:   identifier,
		Link:         link,
	}
	f.RefreshLatest()
}

// ClearFailure removes a stale failure marker before a fresh attempt.
func (e *EntryState) ClearFailure() {
	e.Failure = nil
}

// Remove drops an entry from the state document (manual reset tooling). When
// the map empties, the legacy mirror is cleared too.
func (f *FeedState) Remove(identifier string) bool {
	if _, ok := f.Items[identifier]; !ok {
		return false
	}
	delete(f.Items, identifier)
	if len(f.Items) == 0 {
		f.LastPubUTC = ""
		f.RSSAdded = false
		f.UploadedURL = ""
	}
	f.RefreshLatest()
	return true
}

// RefreshLatest recomputes the legacy top-level mirror from the entry with
// the newest successfully processed publication timestamp.
func (f *FeedState) RefreshLatest() {
	var latest *EntryState
	for _, item := range f.Items {
		if item.LastPubUTC == "" {
			continue
		}
		if latest == nil || item.LastPubUTC > latest.LastPubUTC {
			latest = item
		}
	}
	if latest == nil {
		return
	}
	f.LastPubUTC = latest.LastPubUTC
	f.RSSAdded = latest.RSSAdded
	f.UploadedURL = latest.UploadedURL
}

// truncate shortens a message to at most maxBytes without splitting a rune.
func truncate(msg string, maxBytes int) string {
	msg = strings.TrimSpace(msg)
	if len(msg) <= maxBytes {
		return msg
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

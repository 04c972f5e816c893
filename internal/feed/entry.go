package feed

// Entry is one normalized article from the source feed.
type Entry struct {
	Title   string
	Link    string
	Summary string
	Author  string
	// PubUTC is the publication timestamp in canonical RFC3339 UTC form.
	PubUTC string
	// ContentHTML is the richest HTML snippet the feed offered for this
	// entry (full content when present, summary otherwise).
	ContentHTML string
	// ImageCandidates lists media URLs attached to the feed entry, used as
	// lead-image fallbacks when the article body has none.
	ImageCandidates []string
}

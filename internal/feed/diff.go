package feed

import (
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/state"
)

// DiffOptions tunes candidate selection.
type DiffOptions struct {
	// FullRescan bypasses all completion checks and treats every entry as a
	// candidate. Used for recovery and backfill.
	FullRescan bool
}

// Candidate is an entry the pipeline should attempt this run.
type Candidate struct {
	Entry Entry
	// Identifier is empty when the entry has no link; such entries cannot
	// be deduplicated and the pipeline warns and skips them.
	Identifier string
}

// Candidates returns the subset of entries needing work this run, preserving
// the oldest-first input order.
//
// An entry is a candidate when it has no stored state yet, its stored state
// has not reached the feed file, or its publication timestamp is strictly
// newer than the feed-wide last processed timestamp (an upstream edit).
// Entries already done for their current publication timestamp are never
// candidates outside a full rescan.
func Candidates(slug string, entries []Entry, fs *state.FeedState, opts DiffOptions) []Candidate {
	latest := fs.LatestPubUTC()

	var out []Candidate
	for _, entry := range entries {
		if entry.Link == "" {
			out = append(out, Candidate{Entry: entry})
			continue
		}
		id := Identifier(slug, entry.Link)
		if opts.FullRescan {
			out = append(out, Candidate{Entry: entry, Identifier: id})
			continue
		}

		stored, ok := fs.Items[id]
		if stored.Done(entry.PubUTC) {
			continue
		}
		switch {
		case !ok:
			out = append(out, Candidate{Entry: entry, Identifier: id})
		case !stored.RSSAdded:
			out = append(out, Candidate{Entry: entry, Identifier: id})
		case entry.PubUTC > latest:
			out = append(out, Candidate{Entry: entry, Identifier: id})
		}
	}
	return out
}

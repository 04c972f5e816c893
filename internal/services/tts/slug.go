package tts

import (
	"net/url"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/feed"
)

// asciiFold strips diacritics so "café" slugs to "cafe" instead of losing the
// rune entirely.
var asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// LinkSlug derives a filesystem-safe slug from an article link, preferring the
// last path segment. Links that fold to nothing (non-Latin scripts, bare
// domains) fall back to the link hash so filenames stay unique.
func LinkSlug(link string) string {
	segment := link
	if parsed, err := url.Parse(link); err == nil && parsed.Path != "" {
		trimmed := strings.Trim(parsed.Path, "/")
		if trimmed != "" {
			parts := strings.Split(trimmed, "/")
			segment = parts[len(parts)-1]
		}
	}

	if folded, _, err := transform.String(asciiFold, segment); err == nil {
		segment = folded
	}

	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(segment) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		case !lastDash:
			b.WriteByte('-')
			lastDash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 60 {
		slug = strings.Trim(slug[:60], "-")
	}
	if slug == "" {
		slug = feed.LinkHash(link)[:16]
	}
	return slug
}

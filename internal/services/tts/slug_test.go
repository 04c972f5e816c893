package tts

import (
	"strings"
	"testing"
)

func TestLinkSlugUsesLastPathSegment(t *testing.T) {
	got := LinkSlug("https://example.com/2026/01/some-article-title/")
	if got != "some-article-title" {
		t.Fatalf("LinkSlug = %q", got)
	}
}

func TestLinkSlugFoldsDiacritics(t *testing.T) {
	got := LinkSlug("https://example.com/café-société")
	if got != "cafe-societe" {
		t.Fatalf("LinkSlug = %q", got)
	}
}

func TestLinkSlugNonLatinFallsBackToHash(t *testing.T) {
	got := LinkSlug("https://example.com/כתבה-בעברית")
	if len(got) != 16 {
		t.Fatalf("expected 16-char hash fallback, got %q", got)
	}
	for _, r := range got {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Fatalf("fallback slug not hex: %q", got)
		}
	}
}

func TestLinkSlugDeterministic(t *testing.T) {
	link := "https://example.com/some-article"
	if LinkSlug(link) != LinkSlug(link) {
		t.Fatal("slug not stable")
	}
}

func TestLinkSlugCapsLength(t *testing.T) {
	got := LinkSlug("https://example.com/" + strings.Repeat("verylongsegment-", 10))
	if len(got) > 60 {
		t.Fatalf("slug length %d exceeds cap", len(got))
	}
}

func TestFilenameFormat(t *testing.T) {
	got := Filename("2026-01-15T08:30:45Z", "https://example.com/some-article")
	if got != "20260115-083045-some-article.mp3" {
		t.Fatalf("Filename = %q", got)
	}
}

func TestFilenameDeterministic(t *testing.T) {
	a := Filename("2026-01-15T08:30:45Z", "https://example.com/a")
	b := Filename("2026-01-15T08:30:45Z", "https://example.com/a")
	if a != b {
		t.Fatal("filename not stable")
	}
}

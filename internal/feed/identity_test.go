package feed

import (
	"strings"
	"testing"
)

func TestIdentifierShape(t *testing.T) {
	id := Identifier("news", "https://example.com/article")
	if !strings.HasPrefix(id, "tts-news-") {
		t.Fatalf("identifier prefix wrong: %s", id)
	}
	hash := strings.TrimPrefix(id, "tts-news-")
	if len(hash) != 16 {
		t.Fatalf("hash fragment length = %d, want 16", len(hash))
	}
}

func TestIdentifierDeterministic(t *testing.T) {
	a := Identifier("news", "https://example.com/article")
	b := Identifier("news", "https://example.com/article")
	if a != b {
		t.Fatalf("identifier not stable: %s vs %s", a, b)
	}
	if a == Identifier("news", "https://example.com/other") {
		t.Fatal("different links collided")
	}
	if a == Identifier("tech", "https://example.com/article") {
		t.Fatal("different slugs collided")
	}
}

package sidecar

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	mp3 := filepath.Join(t.TempDir(), "episode.mp3")
	sc := &Sidecar{
		ArticleTitle:   "Title",
		ArticleSummary: "Summary",
		ArticleLink:    "https://ex.com/a",
		ArticleAuthor:  "Reporter",
		ArticlePubUTC:  "2026-01-15T08:00:00Z",
		MP3Filename:    "episode.mp3",
		MP3LocalPath:   mp3,
		TTSCharacters:  1234,
		TTSGenerated:   true,
	}
	if err := sc.Save(mp3); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, ok, err := Load(mp3)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !ok {
		t.Fatal("sidecar not found after save")
	}
	if *loaded != *sc {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", loaded, sc)
	}
}

func TestLoadMissingReportsAbsence(t *testing.T) {
	_, ok, err := Load(filepath.Join(t.TempDir(), "nothing.mp3"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("missing sidecar reported present")
	}
}

func TestSidecarFieldNames(t *testing.T) {
	mp3 := filepath.Join(t.TempDir(), "episode.mp3")
	sc := &Sidecar{ArticleTitle: "T", TTSCharacters: 1, TTSGenerated: true}
	if err := sc.Save(mp3); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, err := os.ReadFile(PathFor(mp3))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	for _, field := range []string{
		`"article_title"`, `"mp3_filename"`, `"tts_characters"`, `"tts_generated"`,
	} {
		if !strings.Contains(string(data), field) {
			t.Fatalf("sidecar missing field %s: %s", field, data)
		}
	}
}

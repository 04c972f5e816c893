package catalog_test

import (
	"context"
	"testing"

	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/catalog"
	"github.com/CopyPasteFail/articles-rss-to-podcast/internal/testsupport"
)

func testEpisode(identifier, pub string) catalog.Episode {
	return catalog.Episode{
		Identifier:  identifier,
		Slug:        "testfeed",
		Link:        "https://ex.com/" + identifier,
		Title:       "Title " + identifier,
		PubUTC:      pub,
		MP3Path:     "/tmp/" + identifier + ".mp3",
		SidecarPath: "/tmp/" + identifier + ".mp3.rssmeta.json",
		UploadedURL: "https://archive.org/download/" + identifier + "/episode.mp3",
		Characters:  100,
		Generated:   true,
	}
}

func TestUpsertAndGet(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()

	ep := testEpisode("tts-testfeed-aaaa", "2026-01-01T00:00:00Z")
	if err := store.Upsert(ctx, ep); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, ok, err := store.Get(ctx, ep.Identifier)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("episode not found after upsert")
	}
	if got.Title != ep.Title || got.Characters != 100 || !got.Generated {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()

	ep := testEpisode("tts-testfeed-aaaa", "2026-01-01T00:00:00Z")
	if err := store.Upsert(ctx, ep); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	ep.Title = "Updated title"
	if err := store.Upsert(ctx, ep); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	episodes, err := store.List(ctx, "testfeed")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(episodes) != 1 {
		t.Fatalf("upsert duplicated row: %d rows", len(episodes))
	}
	if episodes[0].Title != "Updated title" {
		t.Fatalf("title not refreshed: %q", episodes[0].Title)
	}
}

func TestListNewestFirst(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for _, ep := range []catalog.Episode{
		testEpisode("tts-testfeed-old", "2026-01-01T00:00:00Z"),
		testEpisode("tts-testfeed-new", "2026-02-01T00:00:00Z"),
	} {
		if err := store.Upsert(ctx, ep); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	episodes, err := store.List(ctx, "testfeed")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(episodes) != 2 || episodes[0].Identifier != "tts-testfeed-new" {
		t.Fatalf("ordering wrong: %+v", episodes)
	}
}

func TestDeleteRemovesRow(t *testing.T) {
	store := testsupport.MustOpenCatalog(t, testsupport.NewConfig(t))
	ctx := context.Background()

	ep := testEpisode("tts-testfeed-aaaa", "2026-01-01T00:00:00Z")
	if err := store.Upsert(ctx, ep); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := store.Delete(ctx, ep.Identifier); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, ok, err := store.Get(ctx, ep.Identifier)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("episode still present after delete")
	}
	if err := store.Delete(ctx, ep.Identifier); err != nil {
		t.Fatalf("deleting a missing row must not error: %v", err)
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeGlobalConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func writeFeedConfig(t *testing.T, dir, slug, body string) {
	t.Helper()
	feedDir := filepath.Join(dir, "feeds")
	if err := os.MkdirAll(feedDir, 0o755); err != nil {
		t.Fatalf("create feeds dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(feedDir, slug+".toml"), []byte(body), 0o644); err != nil {
		t.Fatalf("write feed config: %v", err)
	}
}

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"CF_ACCOUNT_ID", "CLOUDFLARE_API_TOKEN", "GCP_TTS_API_KEY",
		"IA_ACCESS_KEY", "IA_SECRET_KEY", "BILLING_API_TOKEN",
	} {
		t.Setenv(key, "")
	}
}

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	if cfg.TTS.ByteBudget != 4500 {
		t.Fatalf("byte budget = %d", cfg.TTS.ByteBudget)
	}
	if cfg.TTS.Voice != "en-US-Standard-C" {
		t.Fatalf("voice = %q", cfg.TTS.Voice)
	}
	if cfg.KV.PutRetries != 4 {
		t.Fatalf("put retries = %d", cfg.KV.PutRetries)
	}
	if cfg.Workflow.KeepLast != 200 {
		t.Fatalf("keep last = %d", cfg.Workflow.KeepLast)
	}
	if cfg.Podcast.Language != "en" || cfg.Podcast.Category != "News" {
		t.Fatalf("podcast defaults = %q/%q", cfg.Podcast.Language, cfg.Podcast.Category)
	}
}

func TestLoadExplicitFile(t *testing.T) {
	clearCredentialEnv(t)
	dir := t.TempDir()
	path := writeGlobalConfig(t, dir, `
[paths]
output_dir = "`+filepath.Join(dir, "out")+`"

[tts]
voice = "he-IL-Wavenet-A"
byte_budget = 3000
`)

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("resolved %q exists=%v", resolved, exists)
	}
	if cfg.TTS.ByteBudget != 3000 {
		t.Fatalf("byte budget not overridden: %d", cfg.TTS.ByteBudget)
	}
	if cfg.TTS.Language != "he-IL" {
		t.Fatalf("language not derived from voice: %q", cfg.TTS.Language)
	}
	if cfg.Paths.OutputDir != filepath.Join(dir, "out") {
		t.Fatalf("output dir = %q", cfg.Paths.OutputDir)
	}
	if !filepath.IsAbs(cfg.Paths.LogDir) {
		t.Fatalf("log dir not expanded: %q", cfg.Paths.LogDir)
	}
}

func TestLoadMissingExplicitPathKeepsDefaults(t *testing.T) {
	clearCredentialEnv(t)
	path := filepath.Join(t.TempDir(), "nothing.toml")
	cfg, _, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("missing file reported as existing")
	}
	if cfg.TTS.ByteBudget != 4500 {
		t.Fatalf("defaults not applied: %d", cfg.TTS.ByteBudget)
	}
}

func TestLoadFeedOverlayWins(t *testing.T) {
	clearCredentialEnv(t)
	dir := t.TempDir()
	path := writeGlobalConfig(t, dir, `
[kv]
account_id = "acct"
api_token = "token"
namespace_id = "ns"

[tts]
voice = "en-US-Standard-C"
`)
	writeFeedConfig(t, dir, "mysite", `
[feed]
slug = "mysite"
rss_url = "https://mysite.example/feed.xml"

[tts]
voice = "he-IL-Wavenet-A"
`)

	cfg, err := LoadFeed(path, "mysite")
	if err != nil {
		t.Fatalf("LoadFeed: %v", err)
	}
	if cfg.TTS.Voice != "he-IL-Wavenet-A" {
		t.Fatalf("feed overlay lost: voice = %q", cfg.TTS.Voice)
	}
	if cfg.Feed.RSSURL != "https://mysite.example/feed.xml" {
		t.Fatalf("rss url = %q", cfg.Feed.RSSURL)
	}
	if got := cfg.FeedStateKey(); got != "feed:mysite" {
		t.Fatalf("FeedStateKey = %q", got)
	}
	want := filepath.Join(cfg.Paths.PublicDir, "feeds", "mysite.xml")
	if got := cfg.FeedPath(); got != want {
		t.Fatalf("FeedPath = %q, want %q", got, want)
	}
}

func TestLoadFeedSlugMismatch(t *testing.T) {
	clearCredentialEnv(t)
	dir := t.TempDir()
	path := writeGlobalConfig(t, dir, `
[kv]
account_id = "acct"
api_token = "token"
`)
	writeFeedConfig(t, dir, "mysite", `
[feed]
slug = "othersite"
rss_url = "https://mysite.example/feed.xml"
`)

	_, err := LoadFeed(path, "mysite")
	if err == nil || !strings.Contains(err.Error(), "othersite") {
		t.Fatalf("expected slug mismatch error, got %v", err)
	}
}

func TestLoadFeedMissingFeedFile(t *testing.T) {
	clearCredentialEnv(t)
	dir := t.TempDir()
	path := writeGlobalConfig(t, dir, "")

	_, err := LoadFeed(path, "ghost")
	if err == nil || !strings.Contains(err.Error(), "missing feed config") {
		t.Fatalf("expected missing feed config error, got %v", err)
	}
}

func TestLoadFeedRequiresKVCredentials(t *testing.T) {
	clearCredentialEnv(t)
	dir := t.TempDir()
	path := writeGlobalConfig(t, dir, "")
	writeFeedConfig(t, dir, "mysite", `
[feed]
slug = "mysite"
rss_url = "https://mysite.example/feed.xml"
`)

	_, err := LoadFeed(path, "mysite")
	if err == nil || !strings.Contains(err.Error(), "kv.account_id") {
		t.Fatalf("expected credential error, got %v", err)
	}
}

func TestCredentialEnvFallbacks(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("CF_ACCOUNT_ID", "env-acct")
	t.Setenv("CLOUDFLARE_API_TOKEN", "env-token")

	dir := t.TempDir()
	path := writeGlobalConfig(t, dir, "")
	writeFeedConfig(t, dir, "mysite", `
[feed]
slug = "mysite"
rss_url = "https://mysite.example/feed.xml"
`)

	cfg, err := LoadFeed(path, "mysite")
	if err != nil {
		t.Fatalf("LoadFeed: %v", err)
	}
	if cfg.KV.AccountID != "env-acct" || cfg.KV.APIToken != "env-token" {
		t.Fatalf("env fallbacks not applied: %+v", cfg.KV)
	}
}

func TestFeedPathHonorsAbsoluteOverride(t *testing.T) {
	cfg := Default()
	cfg.Feed.Slug = "mysite"
	cfg.Podcast.File = "/srv/www/podcast.xml"
	if got := cfg.FeedPath(); got != "/srv/www/podcast.xml" {
		t.Fatalf("FeedPath = %q", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero byte budget", func(c *Config) { c.TTS.ByteBudget = 0 }, "byte_budget"},
		{"speaking rate", func(c *Config) { c.TTS.SpeakingRate = 9 }, "speaking_rate"},
		{"pitch", func(c *Config) { c.TTS.Pitch = 30 }, "pitch"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"log level", func(c *Config) { c.Logging.Level = "verbose" }, "logging.level"},
		{"keep last", func(c *Config) { c.Workflow.KeepLast = 0 }, "keep_last"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestSampleConfigParses(t *testing.T) {
	clearCredentialEnv(t)
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, _, err := Load(path); err != nil {
		t.Fatalf("sample config does not load: %v", err)
	}
}

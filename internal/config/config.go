package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	PublicDir string `toml:"public_dir"`
	LogDir    string `toml:"log_dir"`
	CatalogDB string `toml:"catalog_db"`
}

// Feed describes the upstream article feed being narrated.
type Feed struct {
	Slug       string `toml:"slug"`
	RSSURL     string `toml:"rss_url"`
	MaxEntries int    `toml:"max_entries"`
	AllowFetch bool   `toml:"allow_fetch"`
	MinWords   int    `toml:"min_words"`
}

// Podcast contains the published channel metadata.
type Podcast struct {
	Title       string `toml:"title"`
	Author      string `toml:"author"`
	Description string `toml:"description"`
	Site        string `toml:"site"`
	Email       string `toml:"email"`
	Language    string `toml:"language"`
	Category    string `toml:"category"`
	ImageURL    string `toml:"image_url"`
	FeedURL     string `toml:"feed_url"`
	File        string `toml:"file"`
}

// TTS contains configuration for the speech-synthesis provider.
type TTS struct {
	APIKey         string  `toml:"api_key"`
	Voice          string  `toml:"voice"`
	Language       string  `toml:"language"`
	SpeakingRate   float64 `toml:"speaking_rate"`
	Pitch          float64 `toml:"pitch"`
	ByteBudget     int     `toml:"byte_budget"`
	ChunkChars     int     `toml:"chunk_chars"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// KV contains configuration for the durable state store (Cloudflare KV).
type KV struct {
	AccountID      string `toml:"account_id"`
	APIToken       string `toml:"api_token"`
	NamespaceID    string `toml:"namespace_id"`
	NamespaceName  string `toml:"namespace_name"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	PutRetries     int    `toml:"put_retries"`
}

// Archive contains Internet Archive upload credentials.
type Archive struct {
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	UploadRetries  int    `toml:"upload_retries"`
}

// Deploy contains configuration for republishing the public directory.
type Deploy struct {
	PagesProject string `toml:"pages_project"`
	WranglerBin  string `toml:"wrangler_bin"`
}

// Usage contains configuration for the billing cross-check.
type Usage struct {
	Project          string `toml:"project"`
	BillingTable     string `toml:"billing_table"`
	Token            string `toml:"token"`
	FreeTierStandard int64  `toml:"free_tier_standard"`
	FreeTierPremium  int64  `toml:"free_tier_premium"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// Workflow contains pipeline tuning knobs.
type Workflow struct {
	KeepLast           int `toml:"keep_last"`
	HTTPTimeoutSeconds int `toml:"http_timeout_seconds"`
	FailureMaxBytes    int `toml:"failure_max_bytes"`
}

// Daemon contains scheduling configuration for long-running mode.
type Daemon struct {
	Schedule string   `toml:"schedule"`
	Feeds    []string `toml:"feeds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all configuration values for podfeed.
//
// Configuration sections by subsystem:
//   - Paths: output, public, log, and catalog locations
//   - Feed: upstream RSS/Atom source (usually set per feed file)
//   - Podcast: published channel metadata
//   - TTS: speech-synthesis voice and segmentation budgets
//   - KV: durable state store credentials
//   - Archive: audio upload credentials
//   - Deploy: static publishing via wrangler
//   - Usage: billing export cross-check
//   - Workflow: retention and timeout tuning
//   - Daemon: cron schedule for unattended runs
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Feed     Feed     `toml:"feed"`
	Podcast  Podcast  `toml:"podcast"`
	TTS      TTS      `toml:"tts"`
	KV       KV       `toml:"kv"`
	Archive  Archive  `toml:"archive"`
	Deploy   Deploy   `toml:"deploy"`
	Usage    Usage    `toml:"usage"`
	Workflow Workflow `toml:"workflow"`
	Daemon   Daemon   `toml:"daemon"`
	Logging  Logging  `toml:"logging"`

	configDir string
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/podfeed/config.toml")
}

// Load locates, parses, and validates the global configuration file. The
// returned config has all path fields expanded and normalized. The boolean
// reports whether a file existed at the resolved path.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		if err := decodeFile(resolvedPath, &cfg); err != nil {
			return nil, "", false, err
		}
	}
	cfg.configDir = filepath.Dir(resolvedPath)

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// LoadFeed loads the global configuration and overlays the per-feed file at
// feeds/<slug>.toml under the config directory. Values present in the feed
// file win; everything else keeps the global value.
func LoadFeed(path, slug string) (*Config, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := decodeFile(resolvedPath, &cfg); err != nil {
			return nil, err
		}
	}
	cfg.configDir = filepath.Dir(resolvedPath)

	feedPath := filepath.Join(cfg.configDir, "feeds", slug+".toml")
	if _, err := os.Stat(feedPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: missing feed config %s", slug, feedPath)
		}
		return nil, fmt.Errorf("stat feed config: %w", err)
	}
	if err := decodeFile(feedPath, &cfg); err != nil {
		return nil, err
	}

	if cfg.Feed.Slug == "" {
		cfg.Feed.Slug = slug
	}
	if cfg.Feed.Slug != slug {
		return nil, fmt.Errorf("feed config %s declares slug %q", feedPath, cfg.Feed.Slug)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ValidateFeed(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	decoder := toml.NewDecoder(file)
	if err := decoder.Decode(cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("podfeed.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// ConfigDir returns the directory containing the resolved config file.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// FeedStateKey returns the durable-state key for the configured feed.
func (c *Config) FeedStateKey() string {
	return "feed:" + c.Feed.Slug
}

// FeedPath returns the absolute path of the published podcast XML file.
func (c *Config) FeedPath() string {
	file := strings.TrimSpace(c.Podcast.File)
	if file == "" {
		file = filepath.Join("feeds", c.Feed.Slug+".xml")
	}
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(c.Paths.PublicDir, file)
}

// EnsureDirectories creates required directories for a pipeline run.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.PublicDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

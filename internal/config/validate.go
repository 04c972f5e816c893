package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the global configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTTS(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

// ValidateFeed ensures the per-feed sections required by a pipeline run are
// present. Called only after a feed overlay is applied.
func (c *Config) ValidateFeed() error {
	if c.Feed.Slug == "" {
		return errors.New("feed.slug must be set")
	}
	if strings.ContainsAny(c.Feed.Slug, " /\\") {
		return fmt.Errorf("feed.slug %q must not contain spaces or slashes", c.Feed.Slug)
	}
	if c.Feed.RSSURL == "" {
		return errors.New("feed.rss_url must be set")
	}
	if c.KV.AccountID == "" || c.KV.APIToken == "" {
		return errors.New("kv.account_id and kv.api_token are required (or set CF_ACCOUNT_ID / CLOUDFLARE_API_TOKEN)")
	}
	return nil
}

func (c *Config) validateTTS() error {
	if c.TTS.ByteBudget <= 0 {
		return errors.New("tts.byte_budget must be positive")
	}
	if c.TTS.ChunkChars <= 0 {
		return errors.New("tts.chunk_chars must be positive")
	}
	if c.TTS.SpeakingRate < 0.25 || c.TTS.SpeakingRate > 4.0 {
		return fmt.Errorf("tts.speaking_rate %.2f outside provider range [0.25, 4.0]", c.TTS.SpeakingRate)
	}
	if c.TTS.Pitch < -20 || c.TTS.Pitch > 20 {
		return fmt.Errorf("tts.pitch %.2f outside provider range [-20, 20]", c.TTS.Pitch)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "auto", "console", "json":
	default:
		return fmt.Errorf("logging.format must be auto, console, or json (got %q)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error (got %q)", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.KeepLast < 1 {
		return errors.New("workflow.keep_last must be at least 1")
	}
	return nil
}

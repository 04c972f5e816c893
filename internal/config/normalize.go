package config

import (
	"os"
	"strings"
)

// normalize expands paths, applies environment fallbacks, and trims
// credential whitespace so the rest of the program never re-sanitizes.
func (c *Config) normalize() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return err
	}
	if c.Paths.PublicDir, err = expandPath(c.Paths.PublicDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Paths.CatalogDB, err = expandPath(c.Paths.CatalogDB); err != nil {
		return err
	}

	c.Feed.Slug = strings.TrimSpace(c.Feed.Slug)
	c.Feed.RSSURL = strings.TrimSpace(c.Feed.RSSURL)

	c.KV.AccountID = fallbackEnv(c.KV.AccountID, "CF_ACCOUNT_ID")
	c.KV.APIToken = fallbackEnv(c.KV.APIToken, "CLOUDFLARE_API_TOKEN")
	c.KV.NamespaceID = strings.TrimSpace(c.KV.NamespaceID)
	c.KV.NamespaceName = strings.TrimSpace(c.KV.NamespaceName)

	c.TTS.APIKey = fallbackEnv(c.TTS.APIKey, "GCP_TTS_API_KEY")
	c.TTS.Voice = strings.TrimSpace(c.TTS.Voice)
	c.TTS.Language = strings.TrimSpace(c.TTS.Language)
	if c.TTS.Language == "" {
		c.TTS.Language = languageFromVoice(c.TTS.Voice)
	}

	c.Archive.AccessKey = fallbackEnv(c.Archive.AccessKey, "IA_ACCESS_KEY")
	c.Archive.SecretKey = fallbackEnv(c.Archive.SecretKey, "IA_SECRET_KEY")

	c.Deploy.PagesProject = strings.TrimSpace(c.Deploy.PagesProject)
	c.Deploy.WranglerBin = strings.TrimSpace(c.Deploy.WranglerBin)
	if c.Deploy.WranglerBin == "" {
		c.Deploy.WranglerBin = defaultWranglerBin
	}

	c.Usage.Token = fallbackEnv(c.Usage.Token, "BILLING_API_TOKEN")
	c.Usage.Project = strings.TrimSpace(c.Usage.Project)
	c.Usage.BillingTable = strings.TrimSpace(c.Usage.BillingTable)

	if c.Workflow.KeepLast <= 0 {
		c.Workflow.KeepLast = defaultKeepLast
	}
	if c.Workflow.HTTPTimeoutSeconds <= 0 {
		c.Workflow.HTTPTimeoutSeconds = defaultHTTPTimeoutSeconds
	}
	if c.Workflow.FailureMaxBytes <= 0 {
		c.Workflow.FailureMaxBytes = defaultFailureMaxBytes
	}
	if c.KV.PutRetries <= 0 {
		c.KV.PutRetries = defaultKVPutRetries
	}
	if c.KV.TimeoutSeconds <= 0 {
		c.KV.TimeoutSeconds = defaultKVTimeoutSeconds
	}
	if c.Archive.TimeoutSeconds <= 0 {
		c.Archive.TimeoutSeconds = defaultArchiveTimeout
	}
	if c.Archive.UploadRetries <= 0 {
		c.Archive.UploadRetries = defaultArchiveRetries
	}
	if c.TTS.TimeoutSeconds <= 0 {
		c.TTS.TimeoutSeconds = defaultTTSTimeoutSeconds
	}
	if c.TTS.SpeakingRate <= 0 {
		c.TTS.SpeakingRate = defaultSpeakingRate
	}
	if c.Feed.MinWords <= 0 {
		c.Feed.MinWords = defaultMinWords
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}

	return nil
}

func fallbackEnv(value, envKey string) string {
	value = strings.TrimSpace(value)
	if value != "" {
		return value
	}
	return strings.TrimSpace(os.Getenv(envKey))
}

// languageFromVoice derives a language code from a voice name like
// "he-IL-Wavenet-A" -> "he-IL".
func languageFromVoice(voice string) string {
	parts := strings.Split(voice, "-")
	if len(parts) >= 2 {
		return parts[0] + "-" + parts[1]
	}
	return "en-US"
}

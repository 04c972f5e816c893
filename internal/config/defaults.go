package config

const (
	defaultOutputDir          = "~/.local/share/podfeed/out"
	defaultPublicDir          = "~/.local/share/podfeed/public"
	defaultLogDir             = "~/.local/share/podfeed/logs"
	defaultCatalogDB          = "~/.local/share/podfeed/catalog.db"
	defaultVoice              = "en-US-Standard-C"
	defaultSpeakingRate       = 1.0
	defaultByteBudget         = 4500
	defaultChunkChars         = 1000
	defaultTTSTimeoutSeconds  = 60
	defaultKVNamespaceName    = "tts-podcast-state"
	defaultKVTimeoutSeconds   = 15
	defaultKVPutRetries       = 4
	defaultArchiveTimeout     = 300
	defaultArchiveRetries     = 3
	defaultWranglerBin        = "wrangler"
	defaultFreeTierStandard   = 4_000_000
	defaultFreeTierPremium    = 1_000_000
	defaultUsageTimeout       = 30
	defaultKeepLast           = 200
	defaultHTTPTimeoutSeconds = 15
	defaultFailureMaxBytes    = 500
	defaultDaemonSchedule     = "0 * * * *"
	defaultLogLevel           = "info"
	defaultLogFormat          = "auto"
	defaultMinWords           = 80
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: defaultOutputDir,
			PublicDir: defaultPublicDir,
			LogDir:    defaultLogDir,
			CatalogDB: defaultCatalogDB,
		},
		Feed: Feed{
			MinWords: defaultMinWords,
		},
		Podcast: Podcast{
			Title:       "TTS Podcast",
			Description: "Auto-generated TTS episodes",
			Site:        "https://example.com",
			Language:    "en",
			Category:    "News",
		},
		TTS: TTS{
			Voice:          defaultVoice,
			SpeakingRate:   defaultSpeakingRate,
			ByteBudget:     defaultByteBudget,
			ChunkChars:     defaultChunkChars,
			TimeoutSeconds: defaultTTSTimeoutSeconds,
		},
		KV: KV{
			NamespaceName:  defaultKVNamespaceName,
			TimeoutSeconds: defaultKVTimeoutSeconds,
			PutRetries:     defaultKVPutRetries,
		},
		Archive: Archive{
			TimeoutSeconds: defaultArchiveTimeout,
			UploadRetries:  defaultArchiveRetries,
		},
		Deploy: Deploy{
			WranglerBin: defaultWranglerBin,
		},
		Usage: Usage{
			FreeTierStandard: defaultFreeTierStandard,
			FreeTierPremium:  defaultFreeTierPremium,
			TimeoutSeconds:   defaultUsageTimeout,
		},
		Workflow: Workflow{
			KeepLast:           defaultKeepLast,
			HTTPTimeoutSeconds: defaultHTTPTimeoutSeconds,
			FailureMaxBytes:    defaultFailureMaxBytes,
		},
		Daemon: Daemon{
			Schedule: defaultDaemonSchedule,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

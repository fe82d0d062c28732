package config

const (
	defaultSegmentMode     = "text"
	defaultNumType         = "ENDNOTE"
	defaultIDPolicy        = "attribute"
	defaultDiagnosticsDir  = "~/.local/share/hwpxkit/diagnostics"
	defaultBundleCodec     = "xz"
	defaultImageMaxWidth   = 1600
	defaultImageQuality    = 85
	defaultImageWorkers    = 4
	defaultRenderEndpoint  = "http://127.0.0.1:5050/render"
	defaultRenderTimeout   = 120
	defaultStyleMode       = "preserve"
	defaultSessionIdle     = 1800
	defaultSessionReap     = 300
	defaultSessionCacheTTL = 600
	defaultJournalPath     = "~/.local/share/hwpxkit/journal.db"
	defaultLogFormat       = "auto"
	defaultLogLevel        = "info"
	defaultConfigPath      = "~/.config/hwpxkit/config.toml"
	projectConfigName      = "hwpxkit.toml"
)

var (
	defaultPatterns          = []string{"{n}.", "({n})", "[{n}]"}
	defaultAnswerLabels      = []string{"정답", "답"}
	defaultPayloadExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp", ".tif", ".tiff", ".wmf", ".emf", ".svg"}
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Segment: Segment{
			Mode:         defaultSegmentMode,
			Patterns:     append([]string(nil), defaultPatterns...),
			NumType:      defaultNumType,
			TrimTrailing: false,
			AnswerLabels: append([]string(nil), defaultAnswerLabels...),
		},
		Resources: Resources{
			IDPolicy:          defaultIDPolicy,
			PayloadExtensions: append([]string(nil), defaultPayloadExtensions...),
		},
		Build: Build{
			DiagnosticsDir:    defaultDiagnosticsDir,
			BundleCompression: defaultBundleCodec,
		},
		Images: Images{
			MaxWidth: defaultImageMaxWidth,
			Quality:  defaultImageQuality,
			Workers:  defaultImageWorkers,
		},
		Render: Render{
			Endpoint:       defaultRenderEndpoint,
			TimeoutSeconds: defaultRenderTimeout,
		},
		Merge: Merge{
			StyleMode: defaultStyleMode,
		},
		Session: Session{
			IdleTimeoutSeconds:  defaultSessionIdle,
			ReapIntervalSeconds: defaultSessionReap,
			CacheTTLSeconds:     defaultSessionCacheTTL,
		},
		Journal: Journal{
			Enabled: true,
			Path:    defaultJournalPath,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

package config

const (
	defaultDataDir             = "~/.local/share/quill/data"
	defaultLogDir              = "~/.local/share/quill/logs"
	defaultPortalTimeout       = 30
	defaultSourceSystem        = "quill"
	defaultSourceVersion       = "dev"
	defaultFlagThreshold       = 0.7
	defaultMaxAutoRetries      = 3
	defaultRetryBaseDelay      = 1
	defaultDrainInterval       = 60
	defaultDrainConcurrency    = 4
	defaultNotifyTimeout       = 10
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Portal: Portal{
			RequestTimeout: defaultPortalTimeout,
			SourceSystem:   defaultSourceSystem,
			SourceVersion:  defaultSourceVersion,
		},
		Validation: Validation{
			FlagThreshold: defaultFlagThreshold,
		},
		Submission: Submission{
			MaxAutoRetries:   defaultMaxAutoRetries,
			RetryBaseDelay:   defaultRetryBaseDelay,
			DrainInterval:    defaultDrainInterval,
			DrainConcurrency: defaultDrainConcurrency,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Review:         true,
			Submission:     true,
			Errors:         true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

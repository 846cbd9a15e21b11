package testsupport

import (
	"path/filepath"
	"testing"

	"quill/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t   testing.TB
	cfg *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Portal.BaseURL = "http://127.0.0.1:0"
	cfgVal.Portal.SourceSystem = "quill-test"
	cfgVal.Portal.SourceVersion = "0.0.0"
	cfgVal.Submission.RetryBaseDelay = 0

	builder := &configBuilder{t: t, cfg: &cfgVal}
	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithFlagThreshold overrides the confidence flagging threshold.
func WithFlagThreshold(threshold float64) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Validation.FlagThreshold = threshold
	}
}

// WithMaxAutoRetries overrides the automatic retry bound.
func WithMaxAutoRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Submission.MaxAutoRetries = n
	}
}

// WithDrainConcurrency overrides the offline drain worker limit.
func WithDrainConcurrency(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Submission.DrainConcurrency = n
	}
}

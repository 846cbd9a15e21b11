package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
	SchemaPath string `toml:"schema_path"`
}

// Portal contains configuration for the external record portal.
type Portal struct {
	BaseURL        string `toml:"base_url"`
	APIToken       string `toml:"api_token"`
	RequestTimeout int    `toml:"request_timeout"`
	SourceSystem   string `toml:"source_system"`
	SourceVersion  string `toml:"source_version"`
}

// Validation contains review thresholds.
type Validation struct {
	// FlagThreshold is the extraction confidence below which an AI-extracted
	// field is flagged for clinician review. Single global value; per-category
	// tuning would live here if it is ever needed.
	FlagThreshold float64 `toml:"flag_threshold"`
}

// Submission contains retry and offline-drain settings.
type Submission struct {
	MaxAutoRetries   int `toml:"max_auto_retries"`
	RetryBaseDelay   int `toml:"retry_base_delay"`
	DrainInterval    int `toml:"drain_interval"`
	DrainConcurrency int `toml:"drain_concurrency"`
}

// Notifications contains configuration for ntfy push notifications.
// Messages carry session and attempt identifiers only, never field content.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Review         bool   `toml:"review"`
	Submission     bool   `toml:"submission"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for quill.
//
// Sections by subsystem:
//   - Paths: data directory (SQLite store), log directory, schema override
//   - Portal: external record portal endpoint and credentials
//   - Validation: confidence flagging threshold
//   - Submission: automatic retry bounds and offline drain cadence
//   - Notifications: ntfy push settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Portal        Portal        `toml:"portal"`
	Validation    Validation    `toml:"validation"`
	Submission    Submission    `toml:"submission"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/quill/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
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

	projectPath, err := filepath.Abs("quill.toml")
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

// SampleConfig returns the embedded sample configuration file contents.
func SampleConfig() string {
	return sampleConfig
}

// WriteSample writes the sample configuration to the given path, creating
// parent directories as needed. It refuses to overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// EnsureDirectories creates the data and log directories if they are missing.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

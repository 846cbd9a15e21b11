package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validatePortal(); err != nil {
		return err
	}
	if err := c.validateValidation(); err != nil {
		return err
	}
	if err := c.validateSubmission(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validatePortal() error {
	if c.Portal.RequestTimeout <= 0 {
		return errors.New("portal.request_timeout must be positive")
	}
	if c.Portal.BaseURL != "" && !strings.HasPrefix(c.Portal.BaseURL, "https://") && !strings.HasPrefix(c.Portal.BaseURL, "http://") {
		return fmt.Errorf("portal.base_url %q must be an http(s) URL", c.Portal.BaseURL)
	}
	return nil
}

func (c *Config) validateValidation() error {
	if c.Validation.FlagThreshold < 0 || c.Validation.FlagThreshold > 1 {
		return errors.New("validation.flag_threshold must be between 0 and 1")
	}
	return nil
}

func (c *Config) validateSubmission() error {
	if c.Submission.MaxAutoRetries < 0 {
		return errors.New("submission.max_auto_retries must not be negative")
	}
	if c.Submission.RetryBaseDelay <= 0 {
		return errors.New("submission.retry_base_delay must be positive")
	}
	if c.Submission.DrainInterval <= 0 {
		return errors.New("submission.drain_interval must be positive")
	}
	if c.Submission.DrainConcurrency <= 0 {
		return errors.New("submission.drain_concurrency must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	return nil
}

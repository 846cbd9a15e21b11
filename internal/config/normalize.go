package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Paths.SchemaPath != "" {
		if c.Paths.SchemaPath, err = expandPath(c.Paths.SchemaPath); err != nil {
			return err
		}
	}
	c.Portal.BaseURL = strings.TrimRight(strings.TrimSpace(c.Portal.BaseURL), "/")
	c.Portal.APIToken = strings.TrimSpace(c.Portal.APIToken)
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		trimmed = filepath.Join(home, trimmed[2:])
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", path, err)
	}
	return abs, nil
}

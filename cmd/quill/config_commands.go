package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"quill/internal/config"
)

func newConfigCommand(cmdCtx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand())
	configCmd.AddCommand(newConfigShowCommand(cmdCtx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}
			if err := config.WriteSample(target); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set portal.base_url and portal.api_token before submitting.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load("")
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "data_dir:          %s\n", cfg.Paths.DataDir)
			fmt.Fprintf(out, "log_dir:           %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "schema_path:       %s\n", orDefault(cfg.Paths.SchemaPath, "(embedded)"))
			fmt.Fprintf(out, "portal.base_url:   %s\n", orDefault(cfg.Portal.BaseURL, "(unset)"))
			fmt.Fprintf(out, "portal.api_token:  %s\n", maskToken(cfg.Portal.APIToken))
			fmt.Fprintf(out, "flag_threshold:    %.2f\n", cfg.Validation.FlagThreshold)
			fmt.Fprintf(out, "max_auto_retries:  %d\n", cfg.Submission.MaxAutoRetries)
			fmt.Fprintf(out, "drain_interval:    %ds\n", cfg.Submission.DrainInterval)
			fmt.Fprintf(out, "drain_concurrency: %d\n", cfg.Submission.DrainConcurrency)
			fmt.Fprintf(out, "ntfy_topic:        %s\n", orDefault(cfg.Notifications.NtfyTopic, "(disabled)"))
			fmt.Fprintf(out, "logging:           %s/%s\n", cfg.Logging.Format, cfg.Logging.Level)
			return nil
		},
	}
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func maskToken(token string) string {
	if token == "" {
		return "(unset)"
	}
	if len(token) <= 4 {
		return "****"
	}
	return token[:2] + strings.Repeat("*", len(token)-4) + token[len(token)-2:]
}

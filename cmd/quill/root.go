package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var actorFlag string

	ctx := newCommandContext(&configFlag, &actorFlag)

	rootCmd := &cobra.Command{
		Use:           "quill",
		Short:         "Assessment validation and submission CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "Actor recorded in the audit trail (defaults to the OS user)")

	rootCmd.AddCommand(newIngestCommand(ctx))
	rootCmd.AddCommand(newSessionsCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newExtractCommand(ctx))
	rootCmd.AddCommand(newReExtractCommand(ctx))
	rootCmd.AddCommand(newEditCommand(ctx))
	rootCmd.AddCommand(newAssignCommand(ctx))
	rootCmd.AddCommand(newValidateCommand(ctx))
	rootCmd.AddCommand(newUnvalidateCommand(ctx))
	rootCmd.AddCommand(newCommitCommand(ctx))
	rootCmd.AddCommand(newReopenCommand(ctx))
	rootCmd.AddCommand(newSubmitCommand(ctx))
	rootCmd.AddCommand(newRetryCommand(ctx))
	rootCmd.AddCommand(newDrainCommand(ctx))
	rootCmd.AddCommand(newQueueCommand(ctx))
	rootCmd.AddCommand(newTestNotifyCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

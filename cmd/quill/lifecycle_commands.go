package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"quill/internal/record"
)

func newCommitCommand(cmdCtx *commandContext) *cobra.Command {
	var clinicianID string

	cmd := &cobra.Command{
		Use:   "commit <session-id>",
		Short: "Commit a fully validated session for submission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withPipeline(cmd, func(ctx context.Context, env *environment) error {
				committer := strings.TrimSpace(clinicianID)
				if committer == "" {
					committer = cmdCtx.actor()
				}
				err := env.coord.CommitForSubmission(ctx, args[0], committer)
				var incomplete *record.IncompleteValidationError
				if errors.As(err, &incomplete) {
					out := cmd.OutOrStdout()
					fmt.Fprintln(out, "Cannot commit; the following fields still need review:")
					for _, fieldID := range incomplete.FieldIDs {
						fmt.Fprintf(out, "  - %s\n", fieldLabel(env.coord.Registry(), fieldID))
					}
					return err
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s committed for submission by %s\n", args[0], committer)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&clinicianID, "clinician", "", "Clinician committing the validation (defaults to --actor)")
	return cmd
}

func newReopenCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reopen <session-id>",
		Short: "Reopen a validated or failed session for editing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withPipeline(cmd, func(ctx context.Context, env *environment) error {
				if err := env.coord.ReopenForEditing(ctx, args[0], cmdCtx.actor()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Session %s reopened for editing\n", args[0])
				return nil
			})
		},
	}
}

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"quill/internal/session"
)

func newSubmitCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "submit <session-id>",
		Short: "Submit a validated session to the portal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdCtx.requirePortal(); err != nil {
				return err
			}
			return cmdCtx.withPipeline(cmd, func(ctx context.Context, env *environment) error {
				attempt, err := env.coord.Submit(ctx, args[0], cmdCtx.actor())
				return reportAttempt(cmd, attempt, err)
			})
		},
	}
}

func newRetryCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <session-id>",
		Short: "Manually retry a failed submission with a fresh snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdCtx.requirePortal(); err != nil {
				return err
			}
			return cmdCtx.withPipeline(cmd, func(ctx context.Context, env *environment) error {
				attempt, err := env.coord.RetrySubmission(ctx, args[0], cmdCtx.actor())
				return reportAttempt(cmd, attempt, err)
			})
		},
	}
}

func reportAttempt(cmd *cobra.Command, attempt *session.Attempt, err error) error {
	out := cmd.OutOrStdout()
	if attempt != nil {
		switch attempt.Status {
		case session.AttemptSuccess:
			fmt.Fprintf(out, "Submitted; portal record %s\n", attempt.PortalRecordID)
			return nil
		case session.AttemptPending:
			fmt.Fprintln(out, "Portal unreachable; payload queued for offline delivery")
			return nil
		case session.AttemptFailure:
			fmt.Fprintf(out, "Submission failed after %d retries: %s\n", attempt.RetryCount, attempt.LastError)
		}
	}
	return err
}

func newDrainCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "drain",
		Short: "Replay the offline submission queue now",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmdCtx.requirePortal(); err != nil {
				return err
			}
			return cmdCtx.withPipeline(cmd, func(ctx context.Context, env *environment) error {
				result, err := env.coord.Drain(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Drained offline queue: %d delivered, %d failed\n",
					result.Delivered, result.Failed)
				return nil
			})
		},
	}
}

func newQueueCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show offline queue depth and session mode counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withPipeline(cmd, func(ctx context.Context, env *environment) error {
				depth, err := env.coord.OfflineDepth(ctx)
				if err != nil {
					return err
				}
				counts, err := env.coord.ModeCounts(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Offline queue depth: %d\n", depth)
				for _, mode := range session.AllModes() {
					if count := counts[mode]; count > 0 {
						fmt.Fprintf(out, "  %-18s %d\n", string(mode)+":", count)
					}
				}
				return nil
			})
		},
	}
}

package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"quill/internal/session"
)

func newSessionsCommand(cmdCtx *commandContext) *cobra.Command {
	var modeFilter string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions and their lifecycle modes",
		RunE: func(cmd *cobra.Command, args []string) error {
			var modes []session.Mode
			if trimmed := strings.TrimSpace(modeFilter); trimmed != "" {
				mode, ok := session.ParseMode(trimmed)
				if !ok {
					return fmt.Errorf("unknown mode %q (known: %v)", trimmed, session.AllModes())
				}
				modes = append(modes, mode)
			}

			return cmdCtx.withPipeline(cmd, func(ctx context.Context, env *environment) error {
				sessions, err := env.coord.Sessions(ctx, modes...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(sessions) == 0 {
					fmt.Fprintln(out, "No sessions found")
					return nil
				}

				rows := make([][]string, 0, len(sessions))
				for _, sess := range sessions {
					validatedBy := sess.ValidatedBy
					if validatedBy == "" {
						validatedBy = "-"
					}
					rows = append(rows, []string{
						sess.ID,
						sess.ClinicianID,
						string(sess.Mode),
						validatedBy,
						sess.UpdatedAt.Local().Format(time.RFC3339),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "CLINICIAN", "MODE", "VALIDATED BY", "UPDATED"},
					rows,
					nil,
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&modeFilter, "mode", "", "Only show sessions in the given mode")
	return cmd
}

func newShowCommand(cmdCtx *commandContext) *cobra.Command {
	var showTranscript bool

	cmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a session's fields, validation status, and attempts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := args[0]
			return cmdCtx.withPipeline(cmd, func(ctx context.Context, env *environment) error {
				sess, err := env.coord.Session(ctx, sessionID)
				if err != nil {
					return err
				}
				status, err := env.coord.Status(ctx, sessionID)
				if err != nil {
					return err
				}
				fields, err := env.coord.Fields(ctx, sessionID)
				if err != nil {
					return err
				}
				attempts, err := env.coord.Attempts(ctx, sessionID)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Session:   %s\n", sess.ID)
				fmt.Fprintf(out, "Clinician: %s\n", sess.ClinicianID)
				fmt.Fprintf(out, "Mode:      %s\n", renderMode(sess.Mode, shouldColorize(out)))
				if sess.ValidatedBy != "" && sess.ValidatedAt != nil {
					fmt.Fprintf(out, "Validated: by %s at %s\n", sess.ValidatedBy, sess.ValidatedAt.Local().Format(time.RFC3339))
				}
				fmt.Fprintf(out, "Progress:  %d/%d validated, %d flagged, ready: %s\n",
					status.ValidatedFields, status.TotalFields, status.FlaggedFields, yesNo(status.ReadyForSubmission))
				if len(status.UnvalidatedFieldIDs) > 0 {
					fmt.Fprintf(out, "Awaiting:  %s\n", strings.Join(status.UnvalidatedFieldIDs, ", "))
				}

				if len(fields) > 0 {
					rows := make([][]string, 0, len(fields))
					for _, field := range fields {
						rows = append(rows, []string{
							fieldLabel(env.coord.Registry(), field.ID),
							truncate(field.Value, 48),
							strconv.FormatFloat(field.Confidence, 'f', 2, 64),
							string(field.Origin),
							yesNo(field.Flagged),
							yesNo(field.Validated),
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"FIELD", "VALUE", "CONF", "ORIGIN", "FLAGGED", "VALIDATED"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignRight},
					))
				}

				if len(attempts) > 0 {
					rows := make([][]string, 0, len(attempts))
					for _, attempt := range attempts {
						portalID := attempt.PortalRecordID
						if portalID == "" {
							portalID = "-"
						}
						rows = append(rows, []string{
							attempt.ID,
							string(attempt.Status),
							strconv.Itoa(attempt.RetryCount),
							portalID,
							truncate(attempt.LastError, 40),
						})
					}
					fmt.Fprintln(out, renderTable(
						[]string{"ATTEMPT", "STATUS", "RETRIES", "PORTAL RECORD", "LAST ERROR"},
						rows,
						[]columnAlignment{alignLeft, alignLeft, alignRight},
					))
				}

				if showTranscript {
					segments, err := env.coord.Transcript(ctx, sessionID)
					if err != nil {
						return err
					}
					for _, seg := range segments {
						fmt.Fprintf(out, "[%s] %s (%.1fs-%.1fs): %s\n", seg.ID, seg.Speaker, seg.Start, seg.End, seg.Text)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&showTranscript, "transcript", false, "Also print the session transcript")
	return cmd
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"quill/internal/record"
)

type extractionInput struct {
	Value          string   `json:"value"`
	Confidence     float64  `json:"confidence"`
	SourceSegments []string `json:"source_segments"`
}

func newExtractCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <session-id> <results.json>",
		Short: "Apply a whole-record extraction batch to a draft session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sessionID := args[0]
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read extraction results: %w", err)
			}
			var inputs map[string]extractionInput
			if err := json.Unmarshal(data, &inputs); err != nil {
				return fmt.Errorf("parse extraction results: %w", err)
			}
			results := make(map[string]record.Extraction, len(inputs))
			for fieldID, in := range inputs {
				results[fieldID] = record.Extraction{
					Value:          in.Value,
					Confidence:     in.Confidence,
					SourceSegments: in.SourceSegments,
				}
			}

			return cmdCtx.withPipeline(cmd, func(ctx context.Context, env *environment) error {
				if err := env.coord.ApplyExtraction(ctx, sessionID, results, cmdCtx.actor()); err != nil {
					return err
				}
				status, err := env.coord.Status(ctx, sessionID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d extraction results (%d flagged for review)\n",
					len(results), status.FlaggedFields)
				return nil
			})
		},
	}
}

func newReExtractCommand(cmdCtx *commandContext) *cobra.Command {
	var value string
	var confidence float64
	var segments []string

	cmd := &cobra.Command{
		Use:   "reextract <session-id> <field-id>",
		Short: "Apply a targeted single-field re-extraction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withPipeline(cmd, func(ctx context.Context, env *environment) error {
				ex := record.Extraction{
					Value:          value,
					Confidence:     confidence,
					SourceSegments: segments,
				}
				if err := env.coord.ReExtractField(ctx, args[0], args[1], ex, cmdCtx.actor()); err != nil {
					return err
				}
				field, err := env.coord.Field(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Re-extracted %s (flagged: %s)\n", args[1], yesNo(field.Flagged))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&value, "value", "", "Extracted value")
	cmd.Flags().Float64Var(&confidence, "confidence", 0, "Extraction confidence in [0, 1]")
	cmd.Flags().StringSliceVar(&segments, "segments", nil, "Source transcript segment IDs")
	return cmd
}

func newEditCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <session-id> <field-id> <value>",
		Short: "Edit a field value; the edit counts as clinician review",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withPipeline(cmd, func(ctx context.Context, env *environment) error {
				if err := env.coord.EditField(ctx, args[0], args[1], args[2], cmdCtx.actor()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Edited %s\n", args[1])
				return nil
			})
		},
	}
}

func newAssignCommand(cmdCtx *commandContext) *cobra.Command {
	var segments []string
	var value string

	cmd := &cobra.Command{
		Use:   "assign <session-id> <field-id>",
		Short: "Manually assign transcript segments to a field",
		Long: "Manually assign transcript segments to a field. The field takes the\n" +
			"joined segment text unless --value overrides it, and comes out validated\n" +
			"at full confidence.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(segments) == 0 {
				return fmt.Errorf("--segments is required")
			}
			return cmdCtx.withPipeline(cmd, func(ctx context.Context, env *environment) error {
				if err := env.coord.AssignSegments(ctx, args[0], args[1], segments, value, cmdCtx.actor()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Assigned %s to %s\n", strings.Join(segments, ", "), args[1])
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&segments, "segments", nil, "Transcript segment IDs to assign")
	cmd.Flags().StringVar(&value, "value", "", "Field value (defaults to the joined segment text)")
	return cmd
}

func newValidateCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <session-id> <field-id>",
		Short: "Confirm a field value as reviewed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withPipeline(cmd, func(ctx context.Context, env *environment) error {
				if err := env.coord.MarkValidated(ctx, args[0], args[1], cmdCtx.actor()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Validated %s\n", args[1])
				return nil
			})
		},
	}
}

func newUnvalidateCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "unvalidate <session-id> <field-id>",
		Short: "Withdraw confirmation from a field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdCtx.withPipeline(cmd, func(ctx context.Context, env *environment) error {
				if err := env.coord.MarkUnvalidated(ctx, args[0], args[1], cmdCtx.actor()); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unvalidated %s\n", args[1])
				return nil
			})
		},
	}
}

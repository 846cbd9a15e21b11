package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"quill/internal/transcript"
)

type segmentInput struct {
	ID         string  `json:"id"`
	Speaker    string  `json:"speaker"`
	Text       string  `json:"text"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
}

func newIngestCommand(cmdCtx *commandContext) *cobra.Command {
	var clinicianID string

	cmd := &cobra.Command{
		Use:   "ingest <transcript.json>",
		Short: "Create a draft session from a finalized transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(clinicianID) == "" {
				return fmt.Errorf("--clinician is required")
			}
			segments, err := readSegments(args[0])
			if err != nil {
				return err
			}

			return cmdCtx.withPipeline(cmd, func(ctx context.Context, env *environment) error {
				sess, err := env.coord.CreateSession(ctx, clinicianID, segments)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created session %s with %d segments\n", sess.ID, len(segments))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&clinicianID, "clinician", "", "Clinician who conducted the consultation")
	return cmd
}

func readSegments(path string) ([]transcript.Segment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	var inputs []segmentInput
	if err := json.Unmarshal(data, &inputs); err != nil {
		return nil, fmt.Errorf("parse transcript: %w", err)
	}
	segments := make([]transcript.Segment, 0, len(inputs))
	for _, in := range inputs {
		segments = append(segments, transcript.Segment{
			ID:         in.ID,
			Speaker:    transcript.ParseRole(in.Speaker),
			Text:       in.Text,
			Start:      in.Start,
			End:        in.End,
			Confidence: in.Confidence,
		})
	}
	return segments, nil
}

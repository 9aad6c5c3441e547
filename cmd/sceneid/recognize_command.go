package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sceneid/internal/api"
)

func newRecognizeCommand(ctx *commandContext) *cobra.Command {
	var sceneContext string
	var priority int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "recognize <media-ref>",
		Short: "Identify the title a clip belongs to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.RecognizeRequest{
				MediaRef:     strings.TrimSpace(args[0]),
				RequesterID:  "cli",
				Priority:     priority,
				SceneContext: sceneContext,
			}
			var resp api.RecognizeResponse
			if err := ctx.postJSON(cmd.Context(), "/api/recognize", req, &resp); err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			if asJSON {
				encoded, err := json.MarshalIndent(resp.Result, "", "  ")
				if err != nil {
					return fmt.Errorf("encode result: %w", err)
				}
				fmt.Fprintln(stdout, string(encoded))
				return nil
			}

			for _, line := range renderResultLines(resp.Result, shouldColorize(stdout)) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&sceneContext, "context", "", "Free-text scene context (aids actor verification)")
	cmd.Flags().IntVar(&priority, "priority", 0, "Admission priority (higher admits first)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the raw JSON result")
	return cmd
}

func renderResultLines(result api.RecognitionResult, colorize bool) []string {
	lines := make([]string, 0, 8)

	if !result.Identified {
		kind := statusError
		detail := result.Outcome
		if result.DiagnosticID != "" {
			detail = fmt.Sprintf("%s (diagnostic %s)", result.Outcome, result.DiagnosticID)
		}
		lines = append(lines, renderStatusLine("Outcome", kind, detail, colorize))
		for _, alt := range result.Alternates {
			lines = append(lines, renderStatusLine("Candidate", statusInfo, formatAlternate(alt), colorize))
		}
		return lines
	}

	title := result.Title
	if result.Year > 0 {
		title = fmt.Sprintf("%s (%d)", result.Title, result.Year)
	}
	kind := statusOK
	if result.LowConfidence {
		kind = statusWarn
	}
	lines = append(lines, renderStatusLine("Title", kind, title, colorize))
	lines = append(lines, renderStatusLine("Confidence", kind, fmt.Sprintf("%.0f%% (%s)", result.Confidence*100, result.Outcome), colorize))
	if result.MediaType != "" {
		lines = append(lines, renderStatusLine("Media type", statusInfo, result.MediaType, colorize))
	}
	if len(result.ContributingKinds) > 0 {
		lines = append(lines, renderStatusLine("Signals", statusInfo, strings.Join(result.ContributingKinds, ", "), colorize))
	}
	if result.Explanation != "" {
		lines = append(lines, renderStatusLine("Why", statusInfo, result.Explanation, colorize))
	}
	for _, alt := range result.Alternates {
		lines = append(lines, renderStatusLine("Also considered", statusInfo, formatAlternate(alt), colorize))
	}
	return lines
}

func formatAlternate(alt api.Alternate) string {
	if alt.Year > 0 {
		return fmt.Sprintf("%s (%d) at %.0f%%", alt.Title, alt.Year, alt.Confidence*100)
	}
	return fmt.Sprintf("%s at %.0f%%", alt.Title, alt.Confidence*100)
}

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sceneid/internal/api"
)

func newAuditsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audits",
		Short: "Show recent recognition outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.AuditListResponse
			path := "/api/audits?limit=" + strconv.Itoa(limit)
			if err := ctx.getJSON(cmd.Context(), path, &resp); err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			if len(resp.Entries) == 0 {
				fmt.Fprintln(stdout, "No recognitions recorded yet")
				return nil
			}

			rows := make([][]string, 0, len(resp.Entries))
			for _, entry := range resp.Entries {
				confidence := fmt.Sprintf("%.0f%%", entry.Confidence*100)
				if entry.LowConfidence {
					confidence += " (low)"
				}
				rows = append(rows, []string{
					entry.RequestID,
					entry.Outcome,
					confidence,
					entry.CreatedAt,
				})
			}
			fmt.Fprintln(stdout, renderTable([]tableColumn{
				{title: "Request"},
				{title: "Outcome"},
				{title: "Confidence", numeric: true},
				{title: "When"},
			}, rows))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of entries to show")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sceneid/internal/api"
)

func newAdminCommand(ctx *commandContext) *cobra.Command {
	adminCmd := &cobra.Command{
		Use:   "admin",
		Short: "Operator maintenance commands",
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Force-clear admission state (drops active slots, rejects queued requests)",
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp api.ResetResponse
			if err := ctx.postJSON(cmd.Context(), "/api/admin/reset", struct{}{}, &resp); err != nil {
				return err
			}
			if !resp.Reset {
				return fmt.Errorf("daemon did not confirm the reset")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Admission state cleared")
			return nil
		},
	}

	adminCmd.AddCommand(resetCmd)
	return adminCmd
}

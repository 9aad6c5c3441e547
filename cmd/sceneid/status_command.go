package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"sceneid/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, admission, and capability status",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status api.DaemonStatus
			if err := ctx.getJSON(cmd.Context(), "/api/status", &status); err != nil {
				return err
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			runningKind := statusError
			runningDetail := "stopped"
			if status.Running {
				runningKind = statusOK
				runningDetail = fmt.Sprintf("pid %d", status.PID)
			}
			fmt.Fprintln(stdout, renderStatusLine("Running", runningKind, runningDetail, colorize))
			fmt.Fprintln(stdout, renderStatusLine("Database", statusInfo, status.DatabasePath, colorize))
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Capabilities", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, capability := range status.Capabilities {
				fmt.Fprintln(stdout, renderStatusLine(capability.Name, capabilityKind(capability), capabilityDetail(capability), colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Admission", colorize) {
				fmt.Fprintln(stdout, line)
			}
			admission := status.Admission
			fmt.Fprintln(stdout, renderStatusLine("Active", statusInfo,
				fmt.Sprintf("%d of %d (queued %d of %d)", admission.Active, admission.MaxConcurrent, admission.Queued, admission.MaxQueueSize), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Lifetime", statusInfo,
				fmt.Sprintf("admitted %d, completed %d, rejected %d, timed out %d", admission.Admitted, admission.Completed, admission.RejectedFull, admission.TimedOut), colorize))
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Rate Limits", colorize) {
				fmt.Fprintln(stdout, line)
			}
			rows := make([][]string, 0, len(status.RateLimits))
			for _, usage := range status.RateLimits {
				rows = append(rows, []string{
					usage.Capability,
					fmt.Sprintf("%d/%d", usage.Current, usage.Max),
					fmt.Sprintf("%ds", usage.WindowSeconds),
				})
			}
			fmt.Fprintln(stdout, renderTable([]tableColumn{
				{title: "Capability"},
				{title: "In Window", numeric: true},
				{title: "Window", numeric: true},
			}, rows))

			for _, line := range renderSectionHeader("Store", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout, renderStatusLine("Media records", statusInfo, strconv.Itoa(status.Store.MediaRecords), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Subtitle lines", statusInfo, strconv.Itoa(status.Store.SubtitleLines), colorize))
			fmt.Fprintln(stdout, renderStatusLine("Audit rows", statusInfo, strconv.Itoa(status.Store.AuditRows), colorize))
			return nil
		},
	}
}

func capabilityKind(capability api.CapabilityHealth) statusKind {
	switch {
	case !capability.Configured:
		return statusWarn
	case capability.Healthy:
		return statusOK
	default:
		return statusError
	}
}

func capabilityDetail(capability api.CapabilityHealth) string {
	if capability.Healthy {
		return "ready"
	}
	if capability.Detail != "" {
		return capability.Detail
	}
	return "unavailable"
}

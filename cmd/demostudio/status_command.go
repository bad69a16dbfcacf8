package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"demostudio/internal/api"
	"demostudio/internal/client"
	"demostudio/internal/preflight"
)

var laneTitle = cases.Title(language.English)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, queue, and host health",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			var status api.DaemonStatus
			err := ctx.withClient(func(c *client.Client) error {
				var fetchErr error
				status, fetchErr = c.Status(cmd.Context())
				return fetchErr
			})
			daemonUp := err == nil
			if err != nil && !errors.Is(err, client.ErrDaemonUnavailable) {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, map[string]any{
					"daemonRunning": daemonUp && status.Running,
					"daemon":        status,
				})
			}

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(out, line)
			}
			if daemonUp {
				fmt.Fprintln(out, renderStatusLine("Running", statusOK, fmt.Sprintf("pid %d", status.PID), colorize))
				fmt.Fprintln(out, renderStatusLine("Queue database", statusInfo, status.QueueDBPath, colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Running", statusError, "daemon unreachable", colorize))
			}

			if daemonUp {
				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Lanes", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderLaneTable(status.Lanes))

				fmt.Fprintln(out)
				for _, line := range renderSectionHeader("Dependencies", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, dep := range status.Dependencies {
					kind := statusOK
					message := dep.Command
					if !dep.Available {
						kind = statusError
						if dep.Optional {
							kind = statusWarn
						}
						message = dep.Detail
					}
					fmt.Fprintln(out, renderStatusLine(dep.Name, kind, message, colorize))
				}
			}

			fmt.Fprintln(out)
			for _, line := range renderSectionHeader("Host checks", colorize) {
				fmt.Fprintln(out, line)
			}
			cfg, cfgErr := ctx.ensureConfig()
			if cfgErr != nil {
				return cfgErr
			}
			for _, result := range preflight.RunAll(context.Background(), cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable output")
	return cmd
}

func renderLaneTable(lanes map[string]api.LaneStats) string {
	names := make([]string, 0, len(lanes))
	for name := range lanes {
		names = append(names, name)
	}
	sort.Strings(names)

	rows := make([][]string, 0, len(names))
	for _, name := range names {
		stats := lanes[name]
		rows = append(rows, []string{
			laneTitle.String(name),
			fmt.Sprintf("%d", stats.Waiting),
			fmt.Sprintf("%d", stats.Active),
			fmt.Sprintf("%d", stats.Completed),
			fmt.Sprintf("%d", stats.Failed),
		})
	}
	return renderTable(
		[]string{"Lane", "Waiting", "Active", "Completed", "Failed"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignRight},
	)
}

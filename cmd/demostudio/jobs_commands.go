package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"demostudio/internal/api"
	"demostudio/internal/client"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the job queue",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsStatsCommand(ctx))
	jobsCmd.AddCommand(newJobsRetryCommand(ctx))
	jobsCmd.AddCommand(newJobsClearCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var lanes []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, optionally filtered by lane",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				jobs, err := c.Jobs(cmd.Context(), lanes...)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.JobListResponse{Jobs: jobs})
				}

				out := cmd.OutOrStdout()
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs queued.")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						job.ID,
						job.Lane,
						job.Kind,
						job.State,
						fmt.Sprintf("%d/%d", job.Attempts, job.MaxAttempts),
						fmt.Sprintf("%.0f%%", job.Progress),
						truncate(job.Error, 48),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Lane", "Kind", "State", "Attempts", "Progress", "Error"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&lanes, "lane", nil, "Restrict to one or more lanes (transform, voice, export)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable output")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				job, err := c.Job(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %s not found", args[0])
				}
				if jsonOutput {
					return writeJSON(cmd, api.JobResponse{Job: *job})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:          %s\n", job.ID)
				fmt.Fprintf(out, "Lane:        %s\n", job.Lane)
				fmt.Fprintf(out, "Kind:        %s\n", job.Kind)
				fmt.Fprintf(out, "State:       %s\n", job.State)
				fmt.Fprintf(out, "Attempts:    %d/%d\n", job.Attempts, job.MaxAttempts)
				fmt.Fprintf(out, "Progress:    %.0f%%\n", job.Progress)
				if job.CreatedAt != "" {
					fmt.Fprintf(out, "Created:     %s\n", job.CreatedAt)
				}
				if job.StartedAt != "" {
					fmt.Fprintf(out, "Started:     %s\n", job.StartedAt)
				}
				if job.FinishedAt != "" {
					fmt.Fprintf(out, "Finished:    %s\n", job.FinishedAt)
				}
				if job.Result != "" {
					fmt.Fprintf(out, "Result:      %s\n", job.Result)
				}
				if job.Error != "" {
					fmt.Fprintf(out, "Error:       %s\n", job.Error)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable output")
	return cmd
}

func newJobsStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show per-lane queue counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				stats, err := c.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, stats)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderLaneTable(stats.Lanes))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable output")
	return cmd
}

func newJobsRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [job-id...]",
		Short: "Re-queue failed jobs (all of them when no ids are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				affected, err := c.RetryJobs(cmd.Context(), args...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Re-queued %d job(s)\n", affected)
				return nil
			})
		},
	}
}

func newJobsClearCommand(ctx *commandContext) *cobra.Command {
	var completed bool
	var failed bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove finished jobs from the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !completed && !failed {
				return fmt.Errorf("specify --completed, --failed, or both")
			}
			return ctx.withClient(func(c *client.Client) error {
				out := cmd.OutOrStdout()
				if completed {
					affected, err := c.ClearJobs(cmd.Context(), "completed")
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d completed job(s)\n", affected)
				}
				if failed {
					affected, err := c.ClearJobs(cmd.Context(), "failed")
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d failed job(s)\n", affected)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&completed, "completed", false, "Clear completed jobs")
	cmd.Flags().BoolVar(&failed, "failed", false, "Clear failed jobs")
	return cmd
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}

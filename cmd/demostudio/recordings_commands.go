package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"demostudio/internal/api"
	"demostudio/internal/client"
)

func newRecordingsCommand(ctx *commandContext) *cobra.Command {
	recordingsCmd := &cobra.Command{
		Use:   "recordings",
		Short: "Manage recordings",
	}

	recordingsCmd.AddCommand(newRecordingsAddCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsShowCommand(ctx))

	return recordingsCmd
}

func newRecordingsAddCommand(ctx *commandContext) *cobra.Command {
	var title string
	var duration float64
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "add <source-url>",
		Short: "Register a recording with the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sourceURL := strings.TrimSpace(args[0])
			if sourceURL == "" {
				return fmt.Errorf("source url is required")
			}
			return ctx.withClient(func(c *client.Client) error {
				rec, err := c.CreateRecording(cmd.Context(), api.CreateRecordingRequest{
					Title:            title,
					OriginalVideoURL: sourceURL,
					Duration:         duration,
				})
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.RecordingResponse{Recording: rec})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered recording %s\n", rec.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Recording title")
	cmd.Flags().Float64Var(&duration, "duration", 0, "Source duration in seconds")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable output")
	return cmd
}

func newRecordingsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <recording-id>",
		Short: "Show one recording in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				rec, err := c.Recording(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if rec == nil {
					return fmt.Errorf("recording %s not found", args[0])
				}
				if jsonOutput {
					return writeJSON(cmd, api.RecordingResponse{Recording: *rec})
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:          %s\n", rec.ID)
				if rec.Title != "" {
					fmt.Fprintf(out, "Title:       %s\n", rec.Title)
				}
				fmt.Fprintf(out, "Source:      %s\n", rec.OriginalVideoURL)
				fmt.Fprintf(out, "Status:      %s (%.0f%%)\n", rec.ProcessingStatus, rec.ProcessingProgress)
				if rec.Duration > 0 {
					fmt.Fprintf(out, "Duration:    %.1fs\n", rec.Duration)
				}
				if rec.ThumbnailURL != "" {
					fmt.Fprintf(out, "Thumbnail:   %s\n", rec.ThumbnailURL)
				}
				if rec.AudioURL != "" {
					fmt.Fprintf(out, "Audio:       %s\n", rec.AudioURL)
				}
				fmt.Fprintf(out, "Effects:     %d\n", len(rec.VisualEffects))
				fmt.Fprintf(out, "Subtitles:   %d\n", len(rec.Subtitles))
				fmt.Fprintf(out, "Segments:    %d\n", len(rec.ScriptSegments))
				if rec.ErrorMessage != "" {
					fmt.Fprintf(out, "Error:       %s\n", rec.ErrorMessage)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine-readable output")
	return cmd
}

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"demostudio/internal/api"
	"demostudio/internal/client"
	"demostudio/internal/records"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var sourceURL string

	cmd := &cobra.Command{
		Use:   "process <recording-id>",
		Short: "Queue post-upload processing for a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				accepted, err := c.Process(cmd.Context(), args[0], sourceURL)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s job %s\n", accepted.Lane, accepted.JobID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sourceURL, "source", "", "Source video URL (defaults to the recording's stored source)")
	return cmd
}

func newVoiceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "voice <recording-id>",
		Short: "Queue narration synthesis for a recording's script",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				accepted, err := c.Voice(cmd.Context(), args[0], nil)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s job %s\n", accepted.Lane, accepted.JobID)
				return nil
			})
		},
	}
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	var format string
	var resolution string
	var frameRate int
	var quality string
	var subtitles bool
	var audio bool
	var watermark string
	var follow bool

	cmd := &cobra.Command{
		Use:   "export <recording-id>",
		Short: "Queue an export render",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			options := records.ExportOptions{
				Resolution:       resolution,
				FrameRate:        frameRate,
				Quality:          quality,
				IncludeSubtitles: subtitles,
				IncludeAudio:     audio,
			}
			if watermark != "" {
				options.Watermark = records.WatermarkOptions{Enabled: true, Text: watermark}
			}
			return ctx.withClient(func(c *client.Client) error {
				accepted, err := c.Export(cmd.Context(), args[0], format, options)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queued %s job %s\n", accepted.Lane, accepted.JobID)
				if !follow {
					return nil
				}
				return followProgress(cmd, c, "export:"+accepted.JobID)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", string(records.FormatContainerVideo), "Export format (container-video, looping-animation, streaming-video)")
	cmd.Flags().StringVar(&resolution, "resolution", "", `Override output resolution, e.g. "1280x720"`)
	cmd.Flags().IntVar(&frameRate, "fps", 0, "Override output frame rate")
	cmd.Flags().StringVar(&quality, "quality", "", "Encode quality (low, medium, high)")
	cmd.Flags().BoolVar(&subtitles, "subtitles", true, "Burn in subtitles")
	cmd.Flags().BoolVar(&audio, "audio", true, "Include the audio track")
	cmd.Flags().StringVar(&watermark, "watermark", "", "Watermark text")
	cmd.Flags().BoolVar(&follow, "follow", false, "Stream progress until the job finishes")
	return cmd
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <channel>",
		Short: "Stream live progress events from a channel",
		Long: `Stream live progress events from a channel such as
processing:<recording-id> or export:<job-id>. Interrupt to stop.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(c *client.Client) error {
				return followProgress(cmd, c, args[0])
			})
		},
	}
}

// followProgress long-polls a channel and prints events until a terminal
// broadcast arrives or the command context is cancelled.
func followProgress(cmd *cobra.Command, c *client.Client, channel string) error {
	out := cmd.OutOrStdout()
	for {
		events, err := c.Progress(cmd.Context(), channel, 25*time.Second)
		if err != nil {
			return err
		}
		for _, event := range events {
			printProgressEvent(out, event)
			if event.Status == "completed" || event.Status == "failed" {
				return nil
			}
		}
		if cmd.Context() != nil && cmd.Context().Err() != nil {
			return cmd.Context().Err()
		}
	}
}

func printProgressEvent(out io.Writer, event api.ProgressEvent) {
	line := fmt.Sprintf("%6.1f%%  %s", event.Percent, event.Status)
	if event.Stage != "" {
		line += "  " + event.Stage
	}
	if event.Message != "" {
		line += "  " + event.Message
	}
	fmt.Fprintln(out, line)
}

package transform

import (
	"strconv"
	"strings"

	"demostudio/internal/records"
)

// Profile fixes the encode parameters for one export format.
type Profile struct {
	Container   string
	VideoCodec  string
	AudioCodec  string
	Width       int
	Height      int
	FrameRate   int
	PixelFormat string
	HasAudio    bool
}

// ProfileFor returns the encode profile for a format.
func ProfileFor(format records.ExportFormat) (Profile, bool) {
	switch format {
	case records.FormatContainerVideo:
		return Profile{
			Container:   "mp4",
			VideoCodec:  "libx264",
			AudioCodec:  "aac",
			Width:       1920,
			Height:      1080,
			FrameRate:   30,
			PixelFormat: "yuv420p",
			HasAudio:    true,
		}, true
	case records.FormatLoopingAnimation:
		return Profile{
			Container:  "gif",
			VideoCodec: "gif",
			Width:      800,
			Height:     600,
			FrameRate:  15,
		}, true
	case records.FormatStreamingVideo:
		return Profile{
			Container:   "webm",
			VideoCodec:  "libvpx-vp9",
			AudioCodec:  "libopus",
			Width:       1920,
			Height:      1080,
			FrameRate:   30,
			PixelFormat: "yuv420p",
			HasAudio:    true,
		}, true
	}
	return Profile{}, false
}

// Apply overlays per-job options onto the profile defaults. Malformed
// resolutions are ignored; audio can be dropped but never added to a
// format without an audio track.
func (p Profile) Apply(opts records.ExportOptions) Profile {
	if width, height, ok := parseResolution(opts.Resolution); ok {
		p.Width = width
		p.Height = height
	}
	if opts.FrameRate > 0 {
		p.FrameRate = opts.FrameRate
	}
	if !opts.IncludeAudio {
		p.HasAudio = false
	}
	return p
}

// OutputName returns the artifact file name for this profile.
func (p Profile) OutputName() string {
	return "export." + p.Container
}

// QualityArgs maps a quality tier onto encoder rate-control flags. The GIF
// profile has no rate control.
func (p Profile) QualityArgs(quality string) []string {
	if p.VideoCodec == "gif" {
		return nil
	}
	crf := p.crfFor(quality)
	args := []string{"-crf", strconv.Itoa(crf)}
	if p.VideoCodec == "libvpx-vp9" {
		// VP9 constant-quality mode requires a zero bitrate cap.
		args = append(args, "-b:v", "0")
	}
	return args
}

func (p Profile) crfFor(quality string) int {
	tier := strings.ToLower(strings.TrimSpace(quality))
	if p.VideoCodec == "libvpx-vp9" {
		switch tier {
		case "low":
			return 36
		case "high":
			return 28
		default:
			return 32
		}
	}
	switch tier {
	case "low":
		return 28
	case "high":
		return 18
	default:
		return 23
	}
}

func parseResolution(value string) (int, int, bool) {
	widthStr, heightStr, found := strings.Cut(strings.ToLower(strings.TrimSpace(value)), "x")
	if !found {
		return 0, 0, false
	}
	width, err := strconv.Atoi(widthStr)
	if err != nil || width <= 0 {
		return 0, 0, false
	}
	height, err := strconv.Atoi(heightStr)
	if err != nil || height <= 0 {
		return 0, 0, false
	}
	return width, height, true
}

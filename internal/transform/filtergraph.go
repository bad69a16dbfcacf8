package transform

import (
	"fmt"
	"strconv"
	"strings"

	"demostudio/internal/records"
)

// graphInput collects everything that contributes video filters to an export.
type graphInput struct {
	Effects      []records.VisualEffect
	SubtitlePath string
	Watermark    records.WatermarkOptions
	Profile      Profile
}

const defaultZoomScale = 1.5

// buildFilterGraph assembles the -filter_complex expression for an export.
// Effects are chained in array order; each stage consumes the previous
// stage's labeled stream, so later entries stack on earlier ones by
// construction order rather than by time. Effects without coordinates are
// dropped silently. Returns ok=false when no filtering is needed at all.
func buildFilterGraph(in graphInput) (graph string, outLabel string, ok bool) {
	var stages []string
	current := "0:v"
	stageIndex := 0

	nextLabel := func() string {
		stageIndex++
		return fmt.Sprintf("v%d", stageIndex)
	}

	for _, effect := range in.Effects {
		if effect.Coordinates == nil {
			continue
		}
		coords := *effect.Coordinates
		window := fmt.Sprintf("enable='between(t,%s,%s)'", formatSeconds(effect.StartTime), formatSeconds(effect.EndTime))

		switch effect.Type {
		case records.EffectBlur:
			out := nextLabel()
			stages = append(stages, fmt.Sprintf(
				"[%s]split[%sa][%sb];[%sb]crop=%d:%d:%d:%d,boxblur=luma_radius=10:luma_power=2[%sblur];[%sa][%sblur]overlay=%d:%d:%s[%s]",
				current, out, out, out, coords.Width, coords.Height, coords.X, coords.Y,
				out, out, out, coords.X, coords.Y, window, out,
			))
			current = out
		case records.EffectZoom:
			scale := defaultZoomScale
			if v, found := effect.Properties["scale"]; found && v > 0 {
				scale = v
			}
			scaledW := int(float64(coords.Width) * scale)
			scaledH := int(float64(coords.Height) * scale)
			// Overlay centered on the source rectangle's center.
			overlayX := coords.X + coords.Width/2 - scaledW/2
			overlayY := coords.Y + coords.Height/2 - scaledH/2
			out := nextLabel()
			stages = append(stages, fmt.Sprintf(
				"[%s]split[%sa][%sb];[%sb]crop=%d:%d:%d:%d,scale=%d:%d[%szoom];[%sa][%szoom]overlay=%d:%d:%s[%s]",
				current, out, out, out, coords.Width, coords.Height, coords.X, coords.Y,
				scaledW, scaledH, out, out, out, overlayX, overlayY, window, out,
			))
			current = out
		case records.EffectHighlight:
			out := nextLabel()
			stages = append(stages, fmt.Sprintf(
				"[%s]drawbox=x=%d:y=%d:w=%d:h=%d:color=yellow@0.4:t=4:%s[%s]",
				current, coords.X, coords.Y, coords.Width, coords.Height, window, out,
			))
			current = out
		}
	}

	if in.SubtitlePath != "" {
		out := nextLabel()
		stages = append(stages, fmt.Sprintf("[%s]subtitles='%s'[%s]", current, escapeFilterPath(in.SubtitlePath), out))
		current = out
	}

	if in.Watermark.Enabled && strings.TrimSpace(in.Watermark.Text) != "" {
		opacity := in.Watermark.Opacity
		if opacity <= 0 || opacity > 1 {
			opacity = 0.5
		}
		out := nextLabel()
		stages = append(stages, fmt.Sprintf(
			"[%s]drawtext=text='%s':fontsize=24:fontcolor=white@%s:%s[%s]",
			current, escapeDrawtext(in.Watermark.Text), formatSeconds(opacity), watermarkPosition(in.Watermark.Position), out,
		))
		current = out
	}

	if len(stages) == 0 && !needsPalette(in.Profile) {
		return "", "", false
	}

	// Conform to the target geometry after all effects.
	out := nextLabel()
	stages = append(stages, fmt.Sprintf("[%s]scale=%d:%d[%s]", current, in.Profile.Width, in.Profile.Height, out))
	current = out

	if needsPalette(in.Profile) {
		stages = append(stages, fmt.Sprintf(
			"[%s]split[pal1][pal2];[pal1]palettegen[palette];[pal2][palette]paletteuse[vout]", current,
		))
		current = "vout"
	}

	return strings.Join(stages, ";"), current, true
}

func needsPalette(p Profile) bool {
	return p.VideoCodec == "gif"
}

// watermarkPosition maps a corner name onto drawtext x/y expressions with a
// fixed margin. Unknown values land bottom-right.
func watermarkPosition(position string) string {
	const margin = 20
	switch strings.ToLower(strings.TrimSpace(position)) {
	case "top-left":
		return fmt.Sprintf("x=%d:y=%d", margin, margin)
	case "top-right":
		return fmt.Sprintf("x=w-tw-%d:y=%d", margin, margin)
	case "bottom-left":
		return fmt.Sprintf("x=%d:y=h-th-%d", margin, margin)
	default:
		return fmt.Sprintf("x=w-tw-%d:y=h-th-%d", margin, margin)
	}
}

func formatSeconds(value float64) string {
	return strconv.FormatFloat(value, 'g', -1, 64)
}

func escapeFilterPath(path string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`)
	return replacer.Replace(path)
}

func escapeDrawtext(text string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`, `%`, `\%`)
	return replacer.Replace(text)
}

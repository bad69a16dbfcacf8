package transform

import (
	"fmt"
	"math"
	"os"
	"strings"

	"demostudio/internal/records"
)

// FormatTimestamp renders seconds as an SRT timestamp: hours, minutes, and
// seconds zero-padded to two digits, milliseconds to three.
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	totalMillis := int64(math.Round(seconds * 1000))
	hours := totalMillis / 3_600_000
	minutes := totalMillis % 3_600_000 / 60_000
	secs := totalMillis % 60_000 / 1000
	millis := totalMillis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// WriteSubtitleFile serializes cues to an SRT file at path. Cues are written
// in input order with 1-based indices.
func WriteSubtitleFile(path string, cues []records.SubtitleCue) error {
	var builder strings.Builder
	for i, cue := range cues {
		if i > 0 {
			builder.WriteString("\n")
		}
		fmt.Fprintf(&builder, "%d\n", i+1)
		fmt.Fprintf(&builder, "%s --> %s\n", FormatTimestamp(cue.StartTime), FormatTimestamp(cue.EndTime))
		builder.WriteString(strings.TrimSpace(cue.Text))
		builder.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(builder.String()), 0o644); err != nil {
		return fmt.Errorf("write subtitle file: %w", err)
	}
	return nil
}
